package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"exam-session/internal/exam"
	"exam-session/internal/gpa"
	"exam-session/internal/session"
)

type palette struct {
	title *color.Color
	good  *color.Color
	warn  *color.Color
	bad   *color.Color
	faint *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		title: color.New(color.FgCyan, color.Bold),
		good:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		bad:   color.New(color.FgRed),
		faint: color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.title, p.good, p.warn, p.bad, p.faint} {
			c.DisableColor()
		}
	}
	return p
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  help")
	fmt.Fprintln(out, "  enrollments [limit]")
	fmt.Fprintln(out, "  take <enrollment_id>")
	fmt.Fprintln(out, "  leaderboard <course_id> [limit]")
	fmt.Fprintln(out, "  gpa [credits:grade | code:credits:grade]...")
	fmt.Fprintln(out, "  exit")
}

func printSessionHelp(out io.Writer) {
	fmt.Fprintln(out, "Exam commands:")
	fmt.Fprintln(out, "  next | prev")
	fmt.Fprintln(out, "  goto <question>")
	fmt.Fprintln(out, "  <question> <letter>   (or: answer <question> <letter>)")
	fmt.Fprintln(out, "  status")
	fmt.Fprintln(out, "  submit")
	fmt.Fprintln(out, "  quit                  (leave without submitting)")
}

func renderPage(out io.Writer, view session.View, colors palette) {
	fmt.Fprintln(out)
	colors.title.Fprintln(out, view.Course.Title)
	renderStatus(out, view, colors)

	for _, item := range view.Questions {
		fmt.Fprintln(out)
		marker := colors.faint.Sprint("[ ]")
		picked := ""
		if item.Answered {
			marker = colors.good.Sprint("[x]")
			if idx := item.Question.ChoiceIndex(item.ChoiceID); idx >= 0 {
				picked = " (" + choiceLetter(idx) + ")"
			}
		}
		fmt.Fprintf(out, "%s Q%d%s. %s\n", marker, item.Index+1, picked, item.Question.Text)
		for idx, choice := range item.Question.Choices {
			line := fmt.Sprintf("   %s. %s", choiceLetter(idx), choice.Text)
			if item.Answered && choice.ID == item.ChoiceID {
				fmt.Fprintln(out, colors.good.Sprint(line+"  <"))
				continue
			}
			fmt.Fprintln(out, line)
		}
	}

	fmt.Fprintln(out)
	var nav []string
	if view.HasPrev {
		nav = append(nav, "prev")
	}
	if view.HasNext {
		nav = append(nav, "next")
	}
	if len(nav) > 0 {
		fmt.Fprintf(out, "more pages: %v\n", nav)
	}
}

func renderStatus(out io.Writer, view session.View, colors palette) {
	page := 0
	if view.TotalPages > 0 {
		page = view.Page + 1
	}
	timeLeft := colors.good.Sprint(view.FormattedTime)
	if view.TimeUp {
		timeLeft = colors.bad.Sprint(view.FormattedTime)
	}
	fmt.Fprintf(out, "Page %d/%d | Answered %d/%d | Time left %s\n",
		page, view.TotalPages, view.AnsweredCount, view.QuestionCount, timeLeft)
	if view.Err != nil {
		colors.bad.Fprintf(out, "last error: %v\n", view.Err)
	}
}

func renderOutcome(out io.Writer, outcome session.Outcome, colors palette) {
	switch outcome.Trigger {
	case session.TriggerTimeout:
		colors.warn.Fprintln(out, "Time is up. Your answers were submitted automatically.")
	case session.TriggerPriorAttempt:
		colors.warn.Fprintln(out, "This exam was already submitted.")
	default:
		colors.good.Fprintln(out, "Exam submitted.")
	}
	if !outcome.Result.SubmittedAt.IsZero() {
		fmt.Fprintf(out, "Submitted at %s\n", outcome.Result.SubmittedAt.Format(time.RFC3339))
	}
	if outcome.Result.Score != nil {
		fmt.Fprintf(out, "Score: %s\n", formatScore(*outcome.Result.Score))
	}
}

func enrollmentStatus(enrollment exam.Enrollment, now time.Time) string {
	course := enrollment.Course
	switch {
	case enrollment.Submitted:
		return "submitted"
	case !course.StartTime.IsZero() && now.Before(course.StartTime):
		return "upcoming"
	case !course.EndTime.IsZero() && !now.Before(course.EndTime):
		return "closed"
	default:
		return "open"
	}
}

func renderEnrollments(out io.Writer, enrollments []exam.Enrollment, now time.Time) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Enrollment", "Course", "Starts", "Ends", "Status", "Score"})
	for _, enrollment := range enrollments {
		score := "-"
		if enrollment.Score != nil {
			score = formatScore(*enrollment.Score)
		}
		table.Append([]string{
			enrollment.ID,
			enrollment.Course.Title,
			formatTime(enrollment.Course.StartTime),
			formatTime(enrollment.Course.EndTime),
			enrollmentStatus(enrollment, now),
			score,
		})
	}
	table.Render()
}

func renderLeaderboard(out io.Writer, entries []exam.LeaderboardEntry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Rank", "Username", "Score"})
	for _, entry := range entries {
		table.Append([]string{
			strconv.Itoa(entry.Rank),
			entry.Username,
			formatScore(entry.Score),
		})
	}
	table.Render()
}

func renderGPA(out io.Writer, courses []gpa.Course, result gpa.Result) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Course", "Credits", "Grade"})
	for _, course := range courses {
		table.Append([]string{course.Code, strconv.Itoa(course.Credits), course.Grade})
	}
	table.SetFooter([]string{"Total", strconv.Itoa(result.TotalCredits), ""})
	table.Render()
	fmt.Fprintf(out, "GPA: %s (%s)\n", result.GPA.StringFixed(2), result.Class)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
