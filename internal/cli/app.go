// Package cli is the interactive terminal front end for taking exams.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/benbjohnson/clock"

	"exam-session/internal/exam"
	"exam-session/internal/gpa"
	"exam-session/internal/logsvc"
	"exam-session/internal/session"
)

const (
	defaultServer           = "http://127.0.0.1:8000"
	defaultLeaderboardLimit = 10
)

// Service is everything the front end needs from the exam backend.
type Service interface {
	session.DataService
	ListEnrollments(ctx context.Context) ([]exam.Enrollment, error)
	Leaderboard(ctx context.Context, courseID string, limit int) ([]exam.LeaderboardEntry, error)
}

type Config struct {
	Username         string
	ServerURL        string
	PageSize         int
	LeaderboardLimit int
	NoColor          bool

	Clock  clock.Clock
	Logger logsvc.Logger
	Drafts session.DraftStore
}

type app struct {
	svc    Service
	cfg    Config
	out    io.Writer
	lines  *lineReader
	colors palette
}

func Run(ctx context.Context, in io.Reader, out io.Writer, svc Service, cfg Config) error {
	if svc == nil {
		return errors.New("exam service is required")
	}
	if strings.TrimSpace(cfg.ServerURL) == "" {
		cfg.ServerURL = defaultServer
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = exam.DefaultPageSize
	}
	if cfg.LeaderboardLimit == 0 {
		cfg.LeaderboardLimit = defaultLeaderboardLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logsvc.Discard()
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "anonymous"
	}

	a := &app{
		svc:    svc,
		cfg:    cfg,
		out:    &syncWriter{w: out},
		lines:  newLineReader(in),
		colors: newPalette(cfg.NoColor),
	}
	defer a.lines.close()

	fmt.Fprintf(a.out, "exam-client\nuser=%s\nserver=%s\n\n", username, cfg.ServerURL)
	printHelp(a.out)

	for {
		fmt.Fprint(a.out, "\n> ")
		line, err := a.lines.next(ctx, nil)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		command := strings.ToLower(args[0])

		switch command {
		case "help":
			printHelp(a.out)
		case "exit", "quit":
			return nil
		case "enrollments":
			limit, parseErr := parsePositiveLimit(args, 1, 0)
			if parseErr != nil {
				fmt.Fprintf(a.out, "invalid enrollments limit: %v\n", parseErr)
				continue
			}
			if err := a.runEnrollments(ctx, limit); err != nil {
				fmt.Fprintf(a.out, "error: %v\n", err)
			}
		case "leaderboard":
			if len(args) < 2 {
				fmt.Fprintln(a.out, "usage: leaderboard <course_id> [limit]")
				continue
			}
			limit, parseErr := parseSignedLimit(args, 2, cfg.LeaderboardLimit)
			if parseErr != nil {
				fmt.Fprintf(a.out, "invalid leaderboard limit: %v\n", parseErr)
				continue
			}
			if err := a.runLeaderboard(ctx, args[1], limit); err != nil {
				fmt.Fprintf(a.out, "error: %v\n", err)
			}
		case "gpa":
			if err := a.runGPA(args[1:]); err != nil {
				fmt.Fprintf(a.out, "error: %v\n", err)
			}
		case "take":
			if len(args) != 2 {
				fmt.Fprintln(a.out, "usage: take <enrollment_id>")
				continue
			}
			if err := a.runTake(ctx, args[1]); err != nil {
				if errors.Is(err, io.EOF) {
					fmt.Fprintln(a.out)
					return nil
				}
				if errors.Is(err, context.Canceled) {
					return err
				}
				fmt.Fprintf(a.out, "error: %v\n", err)
			}
		default:
			fmt.Fprintln(a.out, "unknown command. type 'help' for usage.")
		}
	}
}

// runEnrollments lists enrollments; a positive limit keeps only the first ones.
func (a *app) runEnrollments(ctx context.Context, limit int) error {
	enrollments, err := a.svc.ListEnrollments(ctx)
	if err != nil {
		return describeClientError(err, a.cfg.ServerURL)
	}
	if len(enrollments) == 0 {
		fmt.Fprintln(a.out, "No enrollments.")
		return nil
	}
	if limit > 0 && len(enrollments) > limit {
		enrollments = enrollments[:limit]
	}
	renderEnrollments(a.out, enrollments, a.cfg.Clock.Now())
	return nil
}

func (a *app) runLeaderboard(ctx context.Context, courseID string, limit int) error {
	entries, err := a.svc.Leaderboard(ctx, courseID, limit)
	if err != nil {
		return describeClientError(err, a.cfg.ServerURL)
	}
	if len(entries) == 0 {
		fmt.Fprintf(a.out, "No leaderboard entries for course %s.\n", courseID)
		return nil
	}
	fmt.Fprintf(a.out, "Leaderboard for %s:\n", courseID)
	renderLeaderboard(a.out, entries)
	return nil
}

func (a *app) runGPA(entries []string) error {
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "usage: gpa <credits>:<grade> ... (for example: gpa MTH101:3:A 2:B)")
		return nil
	}
	courses, err := gpa.ParseCourses(entries)
	if err != nil {
		return err
	}
	result, err := gpa.Calculate(courses, gpa.FivePoint)
	if err != nil {
		return err
	}
	renderGPA(a.out, courses, result)
	return nil
}
