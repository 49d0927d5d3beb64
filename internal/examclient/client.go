package examclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"exam-session/internal/auth"
	"exam-session/internal/exam"
)

const defaultBaseURL = "http://127.0.0.1:8000"

var (
	ErrServiceUnavailable = errors.New("exam service unavailable")
	ErrInvalidPayload     = errors.New("invalid payload from exam service")
)

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Client talks to the exam backend over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       auth.Context
	validate   *validator.Validate
	now        func() time.Time
}

func New(baseURL string, httpClient *http.Client, authCtx auth.Context) *Client {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		auth:       authCtx,
		validate:   validator.New(),
		now:        time.Now,
	}
}

func (c *Client) FetchEnrollment(ctx context.Context, enrollmentID string) (exam.Enrollment, error) {
	if strings.TrimSpace(enrollmentID) == "" {
		return exam.Enrollment{}, errors.New("enrollment id is required")
	}

	var payload enrollmentPayload
	path := "/api/enrollments/" + url.PathEscape(enrollmentID) + "/"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &payload); err != nil {
		return exam.Enrollment{}, err
	}

	enrollment := toEnrollment(payload)
	if err := c.validateEnrollment(enrollment); err != nil {
		return exam.Enrollment{}, err
	}
	return enrollment, nil
}

// SubmitExam posts the answers under idempotencyKey. An empty key gets a
// fresh one, which only suits callers that never retry.
func (c *Client) SubmitExam(ctx context.Context, enrollmentID string, answers []exam.Answer, idempotencyKey string) (exam.SubmitResult, error) {
	if strings.TrimSpace(enrollmentID) == "" {
		return exam.SubmitResult{}, errors.New("enrollment id is required")
	}

	request := submitRequest{
		Enrollment: flexID(enrollmentID),
		Answers:    toAnswerPayloads(answers),
	}
	headers := http.Header{}
	if strings.TrimSpace(idempotencyKey) == "" {
		idempotencyKey = uuid.NewString()
	}
	headers.Set("Idempotency-Key", idempotencyKey)

	var payload submitResponse
	path := "/api/enrollments/" + url.PathEscape(enrollmentID) + "/submit/"
	if err := c.doJSON(ctx, http.MethodPost, path, headers, request, &payload); err != nil {
		return exam.SubmitResult{}, err
	}

	result := exam.SubmitResult{Score: payload.Score}
	if payload.SubmittedAt != nil {
		result.SubmittedAt = *payload.SubmittedAt
	} else {
		result.SubmittedAt = c.now().UTC()
	}
	return result, nil
}

func (c *Client) ListEnrollments(ctx context.Context) ([]exam.Enrollment, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, "/api/enrollments/", nil, nil)
	if err != nil {
		return nil, err
	}

	payloads, err := decodeList[enrollmentPayload](raw)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}

	enrollments := make([]exam.Enrollment, 0, len(payloads))
	for _, payload := range payloads {
		enrollments = append(enrollments, toEnrollment(payload))
	}
	return enrollments, nil
}

func (c *Client) Leaderboard(ctx context.Context, courseID string, limit int) ([]exam.LeaderboardEntry, error) {
	if strings.TrimSpace(courseID) == "" {
		return nil, errors.New("course id is required")
	}

	path := "/api/courses/" + url.PathEscape(courseID) + "/leaderboard/"
	if limit > 0 {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(limit))
		path += "?" + query.Encode()
	}

	raw, err := c.doRaw(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	payloads, err := decodeList[leaderboardEntryPayload](raw)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}

	entries := make([]exam.LeaderboardEntry, 0, len(payloads))
	for idx, item := range payloads {
		rank := item.Rank
		if rank <= 0 {
			rank = idx + 1
		}
		entries = append(entries, exam.LeaderboardEntry{
			Rank:     rank,
			Username: item.Username,
			Score:    item.Score,
		})
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (c *Client) validateEnrollment(enrollment exam.Enrollment) error {
	if err := c.validate.Struct(enrollment); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return errors.Wrapf(ErrInvalidPayload, "enrollment %s: %s failed on %q",
				enrollment.ID, fieldErrs[0].Namespace(), fieldErrs[0].Tag())
		}
		return errors.Wrap(ErrInvalidPayload, err.Error())
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, headers http.Header, requestBody any, responseBody any) error {
	raw, err := c.doRaw(ctx, method, path, headers, requestBody)
	if err != nil {
		return err
	}
	if responseBody == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, responseBody); err != nil {
		return errors.Wrap(ErrInvalidPayload, err.Error())
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, headers http.Header, requestBody any) ([]byte, error) {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	c.auth.Apply(request)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.Unmarshal(raw, &payload); err == nil {
			apiErr.Message = payload.message()
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return nil, &apiErr
	}
	return raw, nil
}
