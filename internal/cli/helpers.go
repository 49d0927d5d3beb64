package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"exam-session/internal/exam"
	"exam-session/internal/examclient"
)

var errInterrupted = errors.New("input interrupted")

// lineReader feeds input lines through a channel so a session can wait on
// the keyboard and the deadline at the same time.
type lineReader struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
	err   error
}

func newLineReader(in io.Reader) *lineReader {
	r := &lineReader{
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	go r.pump(in)
	return r
}

func (r *lineReader) pump(in io.Reader) {
	defer close(r.lines)
	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			select {
			case r.lines <- line:
			case <-r.done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			return
		}
	}
}

// next returns the next trimmed line. It gives up with errInterrupted when
// interrupt is closed first; a nil interrupt never fires.
func (r *lineReader) next(ctx context.Context, interrupt <-chan struct{}) (string, error) {
	select {
	case line, ok := <-r.lines:
		if !ok {
			if r.err != nil {
				return "", r.err
			}
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	case <-interrupt:
		return "", errInterrupted
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *lineReader) close() {
	r.once.Do(func() { close(r.done) })
}

// syncWriter serializes writes from the prompt loop and from timer callbacks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func parsePositiveLimit(args []string, index int, defaultValue int) (int, error) {
	if len(args) <= index {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(args[index])
	if err != nil || value <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	return value, nil
}

func parseSignedLimit(args []string, index int, defaultValue int) (int, error) {
	if len(args) <= index {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(args[index])
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	return value, nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func promptYesNo(ctx context.Context, lines *lineReader, out io.Writer, prompt string, interrupt <-chan struct{}) (bool, error) {
	for {
		fmt.Fprint(out, prompt)
		line, err := lines.next(ctx, interrupt)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please answer yes or no.")
		}
	}
}

// choiceForLetter maps "A", "b", ... onto the question's choices in order.
func choiceForLetter(question exam.Question, letter string) (exam.Choice, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) != 1 || letter[0] < 'A' {
		return exam.Choice{}, false
	}
	idx := int(letter[0] - 'A')
	if idx >= len(question.Choices) {
		return exam.Choice{}, false
	}
	return question.Choices[idx], true
}

func choiceLetter(idx int) string {
	if idx < 0 || idx >= 26 {
		return "?"
	}
	return string(rune('A' + idx))
}

func describeClientError(err error, serverURL string) error {
	if errors.Is(err, examclient.ErrServiceUnavailable) {
		return fmt.Errorf("exam service unavailable at %s", serverURL)
	}
	return err
}
