package session

import (
	"context"
	"errors"

	"exam-session/internal/exam"
)

type State int

const (
	StateLoading State = iota
	StateReady
	StateSubmitting
	StateSubmitted
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Trigger records what started a submission.
type Trigger int

const (
	TriggerUser Trigger = iota
	TriggerTimeout
	// TriggerPriorAttempt marks an enrollment that was already submitted
	// when it was loaded.
	TriggerPriorAttempt
)

func (t Trigger) String() string {
	switch t {
	case TriggerUser:
		return "user"
	case TriggerTimeout:
		return "timeout"
	case TriggerPriorAttempt:
		return "prior_attempt"
	default:
		return "unknown"
	}
}

var (
	ErrLoadFailure      = errors.New("failed to load enrollment")
	ErrSubmitFailure    = errors.New("failed to submit exam")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrNotReady         = errors.New("session is not accepting input")
	ErrAlreadySubmitted = errors.New("enrollment already submitted")
	ErrNotStarted       = errors.New("test has not started yet")
	ErrClosed           = errors.New("session closed")
)

// DataService is the remote side of an exam attempt.
type DataService interface {
	FetchEnrollment(ctx context.Context, enrollmentID string) (exam.Enrollment, error)
	// SubmitExam sends the answers. Every retry of one attempt carries the
	// same idempotencyKey so the backend can drop duplicates.
	SubmitExam(ctx context.Context, enrollmentID string, answers []exam.Answer, idempotencyKey string) (exam.SubmitResult, error)
}

// DraftStore persists selections locally until the attempt is submitted.
type DraftStore interface {
	Load(ctx context.Context, enrollmentID string) (map[string]string, error)
	Save(ctx context.Context, enrollmentID, questionID, choiceID string) error
	Clear(ctx context.Context, enrollmentID string) error
}

type Outcome struct {
	Trigger Trigger
	Result  exam.SubmitResult
}

// TimedOut reports whether the attempt was submitted by the deadline
// rather than by the student.
func (o Outcome) TimedOut() bool {
	return o.Trigger == TriggerTimeout
}

type QuestionView struct {
	// Index is the question's position in the whole exam, starting at 0.
	Index    int
	Question exam.Question
	Answered bool
	ChoiceID string
}

// View is a point-in-time copy of everything a front end renders.
type View struct {
	State         State
	Course        exam.Course
	Page          int
	TotalPages    int
	HasPrev       bool
	HasNext       bool
	Questions     []QuestionView
	QuestionCount int
	AnsweredCount int
	FormattedTime string
	TimeUp        bool
	Outcome       *Outcome
	Err           error
}
