package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"exam-session/internal/session"
)

// runTake drives one exam attempt until it is submitted or the student
// quits. Quitting keeps saved drafts; the deadline still applies server side.
func (a *app) runTake(ctx context.Context, enrollmentID string) error {
	finished := make(chan struct{})
	var finishOnce sync.Once

	ctrl := session.New(a.svc, enrollmentID, session.Options{
		PageSize: a.cfg.PageSize,
		Clock:    a.cfg.Clock,
		Logger:   a.cfg.Logger,
		Drafts:   a.cfg.Drafts,
		OnSubmitted: func(session.Outcome) {
			finishOnce.Do(func() { close(finished) })
		},
		OnSubmitError: func(err error, trigger session.Trigger) {
			if trigger == session.TriggerTimeout {
				a.colors.bad.Fprintf(a.out, "\nautomatic submission failed: %v (retrying)\n", err)
			}
		},
	})
	defer ctrl.Close()

	if err := ctrl.Load(ctx); err != nil {
		if errors.Is(err, session.ErrAlreadySubmitted) {
			if outcome, ok := ctrl.Outcome(); ok {
				renderOutcome(a.out, outcome, a.colors)
			}
			return nil
		}
		return describeClientError(err, a.cfg.ServerURL)
	}

	renderPage(a.out, ctrl.View(), a.colors)
	printSessionHelp(a.out)

	for {
		fmt.Fprintf(a.out, "\n[%s] exam> ", ctrl.View().FormattedTime)
		line, err := a.lines.next(ctx, finished)
		if errors.Is(err, errInterrupted) {
			fmt.Fprintln(a.out)
			a.finish(ctrl)
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		command := strings.ToLower(args[0])

		switch command {
		case "help":
			printSessionHelp(a.out)
		case "status":
			renderStatus(a.out, ctrl.View(), a.colors)
		case "next":
			if !ctrl.NextPage() {
				fmt.Fprintln(a.out, "already on the last page.")
				continue
			}
			renderPage(a.out, ctrl.View(), a.colors)
		case "prev":
			if !ctrl.PrevPage() {
				fmt.Fprintln(a.out, "already on the first page.")
				continue
			}
			renderPage(a.out, ctrl.View(), a.colors)
		case "goto":
			if len(args) != 2 {
				fmt.Fprintln(a.out, "usage: goto <question>")
				continue
			}
			index, ok := a.questionIndex(ctrl, args[1])
			if !ok {
				continue
			}
			ctrl.JumpToQuestion(index)
			renderPage(a.out, ctrl.View(), a.colors)
		case "answer":
			if len(args) != 3 {
				fmt.Fprintln(a.out, "usage: answer <question> <letter>")
				continue
			}
			a.answer(ctrl, args[1], args[2])
		case "submit":
			done, err := a.confirmSubmit(ctx, ctrl, finished)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case "quit", "exit":
			fmt.Fprintf(a.out, "Leaving without submitting. %d answers are kept for enrollment %s.\n",
				ctrl.AnsweredCount(), enrollmentID)
			return nil
		default:
			if len(args) == 2 {
				if _, err := strconv.Atoi(args[0]); err == nil {
					a.answer(ctrl, args[0], args[1])
					continue
				}
			}
			fmt.Fprintln(a.out, "unknown command. type 'help' for exam commands.")
		}
	}
}

func (a *app) questionIndex(ctrl *session.Controller, raw string) (int, bool) {
	count := len(ctrl.Enrollment().Questions)
	number, err := strconv.Atoi(raw)
	if err != nil || number < 1 || number > count {
		fmt.Fprintf(a.out, "question must be between 1 and %d.\n", count)
		return 0, false
	}
	return number - 1, true
}

func (a *app) answer(ctrl *session.Controller, rawNumber, letter string) {
	index, ok := a.questionIndex(ctrl, rawNumber)
	if !ok {
		return
	}
	question := ctrl.Enrollment().Questions[index]
	choice, ok := choiceForLetter(question, letter)
	if !ok {
		fmt.Fprintf(a.out, "choose a letter between A and %s.\n", choiceLetter(len(question.Choices)-1))
		return
	}

	if err := ctrl.SelectAnswer(question.ID, choice.ID); err != nil {
		if errors.Is(err, session.ErrNotReady) {
			fmt.Fprintf(a.out, "answers are locked while the exam is %s.\n", ctrl.State())
			return
		}
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}

	ctrl.JumpToQuestion(index)
	renderPage(a.out, ctrl.View(), a.colors)
}

// confirmSubmit asks before submitting. It reports true once the attempt is
// over, whether this call or the deadline submitted it.
func (a *app) confirmSubmit(ctx context.Context, ctrl *session.Controller, finished <-chan struct{}) (bool, error) {
	view := ctrl.View()
	prompt := fmt.Sprintf("submit %d of %d answers? (yes/no): ", view.AnsweredCount, view.QuestionCount)
	if unanswered := view.QuestionCount - view.AnsweredCount; unanswered > 0 {
		a.colors.warn.Fprintf(a.out, "%d questions are unanswered.\n", unanswered)
	}

	confirmed, err := promptYesNo(ctx, a.lines, a.out, prompt, finished)
	if errors.Is(err, errInterrupted) {
		fmt.Fprintln(a.out)
		a.finish(ctrl)
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !confirmed {
		fmt.Fprintln(a.out, "Submission cancelled.")
		return false, nil
	}

	outcome, err := ctrl.Submit(ctx)
	switch {
	case err == nil:
		renderOutcome(a.out, outcome, a.colors)
		return true, nil
	case errors.Is(err, session.ErrSubmitInFlight):
		fmt.Fprintln(a.out, "a submission is already in progress.")
		return false, nil
	case errors.Is(err, session.ErrAlreadySubmitted):
		a.finish(ctrl)
		return true, nil
	default:
		a.colors.bad.Fprintf(a.out, "%v\n", describeClientError(err, a.cfg.ServerURL))
		fmt.Fprintln(a.out, "Your answers are kept. Try 'submit' again.")
		return false, nil
	}
}

func (a *app) finish(ctrl *session.Controller) {
	if outcome, ok := ctrl.Outcome(); ok {
		renderOutcome(a.out, outcome, a.colors)
	}
}
