package exam

import (
	"errors"
	"time"
)

var (
	ErrInvalidChoice = errors.New("choice does not belong to question")
)

type Course struct {
	ID              string    `json:"id" validate:"required"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time" validate:"omitempty,gtfield=StartTime"`
	DurationMinutes int       `json:"duration_minutes" validate:"gte=0"`
}

type Choice struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text"`
}

type Question struct {
	ID      string   `json:"id" validate:"required"`
	Text    string   `json:"text"`
	Choices []Choice `json:"choices" validate:"required,min=1,dive"`
}

// HasChoice reports whether choiceID is one of the question's choices.
func (q Question) HasChoice(choiceID string) bool {
	for _, choice := range q.Choices {
		if choice.ID == choiceID {
			return true
		}
	}
	return false
}

// ChoiceIndex returns the position of choiceID in the question's choice
// list, or -1.
func (q Question) ChoiceIndex(choiceID string) int {
	for idx, choice := range q.Choices {
		if choice.ID == choiceID {
			return idx
		}
	}
	return -1
}

// Enrollment is one student's registration in one timed course.
type Enrollment struct {
	ID          string `validate:"required"`
	Course      Course
	Questions   []Question `validate:"dive"`
	Submitted   bool
	SubmittedAt *time.Time
	Score       *float64

	// ServerTime is the backend's clock at the moment the enrollment was
	// served, when the backend reports it.
	ServerTime *time.Time
}

type Answer struct {
	Question string `json:"question"`
	Choice   string `json:"choice"`
}

type SubmitResult struct {
	SubmittedAt time.Time
	Score       *float64
}

type LeaderboardEntry struct {
	Rank     int
	Username string
	Score    float64
}
