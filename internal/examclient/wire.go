package examclient

import (
	"bytes"
	"encoding/json"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"exam-session/internal/exam"
)

// flexID accepts identifiers sent either as JSON numbers or strings.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "invalid id %s", data)
	}
	*id = flexID(n.String())
	return nil
}

// MarshalJSON sends numeric identifiers back as numbers.
func (id flexID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type choicePayload struct {
	ID   flexID `json:"id"`
	Text string `json:"text"`
}

type questionPayload struct {
	ID      flexID          `json:"id"`
	Text    string          `json:"text"`
	Choices []choicePayload `json:"choices"`
}

type coursePayload struct {
	ID              flexID     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
}

type enrollmentPayload struct {
	ID          flexID            `json:"id"`
	Course      coursePayload     `json:"course"`
	Questions   []questionPayload `json:"questions"`
	Submitted   bool              `json:"submitted"`
	SubmittedAt *time.Time        `json:"submitted_at"`
	Score       *float64          `json:"score"`
	ServerTime  *time.Time        `json:"server_time"`
}

type answerPayload struct {
	Question flexID `json:"question"`
	Choice   flexID `json:"choice"`
}

type submitRequest struct {
	Enrollment flexID          `json:"enrollment"`
	Answers    []answerPayload `json:"answers"`
}

type submitResponse struct {
	SubmittedAt *time.Time `json:"submitted_at"`
	Score       *float64   `json:"score"`
}

type leaderboardEntryPayload struct {
	Rank     int     `json:"rank"`
	Username string  `json:"username"`
	Score    float64 `json:"score"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (e errorResponse) message() string {
	if msg := strings.TrimSpace(e.Error); msg != "" {
		return msg
	}
	return strings.TrimSpace(e.Detail)
}

// decodeList accepts both a bare JSON array and a paginated
// {"results": [...]} envelope.
func decodeList[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope struct {
		Results *[]T `json:"results"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if envelope.Results == nil {
		return nil, errors.New("response is neither a list nor a results envelope")
	}
	return *envelope.Results, nil
}

func toEnrollment(payload enrollmentPayload) exam.Enrollment {
	enrollment := exam.Enrollment{
		ID:          string(payload.ID),
		Course:      toCourse(payload.Course),
		Questions:   make([]exam.Question, 0, len(payload.Questions)),
		Submitted:   payload.Submitted,
		SubmittedAt: payload.SubmittedAt,
		Score:       payload.Score,
		ServerTime:  payload.ServerTime,
	}
	for _, question := range payload.Questions {
		enrollment.Questions = append(enrollment.Questions, toQuestion(question))
	}
	return enrollment
}

func toCourse(payload coursePayload) exam.Course {
	course := exam.Course{
		ID:              string(payload.ID),
		Title:           html.UnescapeString(payload.Title),
		Description:     html.UnescapeString(payload.Description),
		DurationMinutes: payload.DurationMinutes,
	}
	if payload.StartTime != nil {
		course.StartTime = *payload.StartTime
	}
	if payload.EndTime != nil {
		course.EndTime = *payload.EndTime
	}
	return course
}

func toQuestion(payload questionPayload) exam.Question {
	question := exam.Question{
		ID:      string(payload.ID),
		Text:    html.UnescapeString(payload.Text),
		Choices: make([]exam.Choice, 0, len(payload.Choices)),
	}
	for _, choice := range payload.Choices {
		question.Choices = append(question.Choices, exam.Choice{
			ID:   string(choice.ID),
			Text: html.UnescapeString(choice.Text),
		})
	}
	return question
}

func toAnswerPayloads(answers []exam.Answer) []answerPayload {
	payloads := make([]answerPayload, 0, len(answers))
	for _, answer := range answers {
		payloads = append(payloads, answerPayload{
			Question: flexID(answer.Question),
			Choice:   flexID(answer.Choice),
		})
	}
	return payloads
}
