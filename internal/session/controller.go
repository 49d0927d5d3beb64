// Package session drives one exam attempt from loading the enrollment to
// submitting the answers, by hand or when the deadline passes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"exam-session/internal/countdown"
	"exam-session/internal/exam"
	"exam-session/internal/logsvc"
)

const draftTimeout = 2 * time.Second

type Options struct {
	PageSize int
	Clock    clock.Clock
	Logger   logsvc.Logger
	Drafts   DraftStore

	OnChange      func(View)
	OnSubmitted   func(Outcome)
	OnSubmitError func(error, Trigger)
}

type Controller struct {
	svc          DataService
	enrollmentID string
	submitKey    string
	opts         Options
	clock        clock.Clock
	logger       logsvc.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// draftMu orders draft writes against the clear that follows a
	// successful submission. Lock it before mu.
	draftMu sync.Mutex

	mu         sync.Mutex
	state      State
	loading    bool
	closed     bool
	inFlight   bool
	enrollment exam.Enrollment
	answers    *exam.AnswerStore
	pager      *exam.Paginator
	timer      *countdown.Countdown
	outcome    *Outcome
	lastErr    error
}

func New(svc DataService, enrollmentID string, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logsvc.Discard()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = exam.DefaultPageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		svc:          svc,
		enrollmentID: enrollmentID,
		submitKey:    uuid.NewString(),
		opts:         opts,
		clock:        opts.Clock,
		logger:       opts.Logger,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateLoading,
	}
}

// Load fetches the enrollment and, on success, starts the countdown against
// the course end time. It may only run once per controller.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.loading || c.state != StateLoading {
		c.mu.Unlock()
		return ErrNotReady
	}
	c.loading = true
	c.mu.Unlock()

	enrollment, err := c.svc.FetchEnrollment(ctx, c.enrollmentID)
	fetchedAt := c.clock.Now()
	if err != nil {
		return c.failLoad(fmt.Errorf("%w: %w", ErrLoadFailure, err))
	}

	if enrollment.Submitted {
		return c.loadSubmitted(enrollment)
	}

	offset := serverOffset(enrollment.ServerTime, fetchedAt)
	start := enrollment.Course.StartTime
	if !start.IsZero() && fetchedAt.Add(offset).Before(start) {
		return c.failLoad(fmt.Errorf("%w: %w (starts %s)", ErrLoadFailure, ErrNotStarted, start.Format(time.RFC3339)))
	}

	answers := exam.NewAnswerStore(enrollment.Questions)
	c.restoreDrafts(ctx, answers)

	var target *time.Time
	if end := enrollment.Course.EndTime; !end.IsZero() {
		target = &end
	}
	timer := countdown.New(c.clock, target,
		countdown.WithOffset(offset),
		countdown.WithOnTick(c.handleTick),
	)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.enrollment = enrollment
	c.answers = answers
	c.pager = exam.NewPaginator(len(enrollment.Questions), c.opts.PageSize)
	c.timer = timer
	c.state = StateReady
	c.mu.Unlock()

	c.logger.Debug("exam session ready", map[string]interface{}{
		"enrollment": c.enrollmentID,
		"questions":  len(enrollment.Questions),
		"restored":   answers.Count(),
		"offset":     offset.String(),
	})

	timer.Start(c.ctx)
	c.notifyChange()
	return nil
}

func (c *Controller) failLoad(err error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = StateError
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Error("exam session load failed", err, map[string]interface{}{"enrollment": c.enrollmentID})
	c.notifyChange()
	return err
}

func (c *Controller) loadSubmitted(enrollment exam.Enrollment) error {
	outcome := Outcome{
		Trigger: TriggerPriorAttempt,
		Result:  exam.SubmitResult{Score: enrollment.Score},
	}
	if enrollment.SubmittedAt != nil {
		outcome.Result.SubmittedAt = *enrollment.SubmittedAt
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.enrollment = enrollment
	c.answers = exam.NewAnswerStore(enrollment.Questions)
	c.pager = exam.NewPaginator(len(enrollment.Questions), c.opts.PageSize)
	c.state = StateSubmitted
	c.outcome = &outcome
	c.mu.Unlock()

	c.notifyChange()
	return ErrAlreadySubmitted
}

func (c *Controller) restoreDrafts(ctx context.Context, answers *exam.AnswerStore) {
	if c.opts.Drafts == nil {
		return
	}
	saved, err := c.opts.Drafts.Load(ctx, c.enrollmentID)
	if err != nil {
		c.logger.Warn("could not restore answer drafts", err)
		return
	}
	if restored := answers.Restore(saved); restored != len(saved) {
		c.logger.Warn("dropped stale answer drafts", map[string]interface{}{
			"enrollment": c.enrollmentID,
			"saved":      len(saved),
			"restored":   restored,
		})
	}
}

// SelectAnswer records a selection. Selections are only accepted while the
// session is ready.
func (c *Controller) SelectAnswer(questionID, choiceID string) error {
	if err := c.recordAnswer(questionID, choiceID); err != nil {
		return err
	}
	c.notifyChange()
	return nil
}

// recordAnswer sets the selection and saves its draft under draftMu, so a
// submission that completes meanwhile clears drafts only after this save.
func (c *Controller) recordAnswer(questionID, choiceID string) error {
	c.draftMu.Lock()
	defer c.draftMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	if err := c.answers.Set(questionID, choiceID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if c.opts.Drafts != nil {
		ctx, cancel := context.WithTimeout(c.ctx, draftTimeout)
		defer cancel()
		if err := c.opts.Drafts.Save(ctx, c.enrollmentID, questionID, choiceID); err != nil {
			c.logger.Warn("could not save answer draft", err)
		}
	}
	return nil
}

func (c *Controller) NextPage() bool {
	return c.navigate(func(p *exam.Paginator) bool { return p.Next() })
}

func (c *Controller) PrevPage() bool {
	return c.navigate(func(p *exam.Paginator) bool { return p.Prev() })
}

// JumpToQuestion selects the page holding the question at index.
func (c *Controller) JumpToQuestion(index int) bool {
	return c.navigate(func(p *exam.Paginator) bool { return p.JumpTo(index) })
}

func (c *Controller) navigate(move func(*exam.Paginator) bool) bool {
	c.mu.Lock()
	if c.closed || c.pager == nil {
		c.mu.Unlock()
		return false
	}
	moved := move(c.pager)
	c.mu.Unlock()

	if moved {
		c.notifyChange()
	}
	return moved
}

// Submit sends the current answers on the student's behalf. Confirmation is
// left to the caller.
func (c *Controller) Submit(ctx context.Context) (Outcome, error) {
	answers, err := c.beginSubmit()
	if err != nil {
		return Outcome{}, err
	}
	c.notifyChange()
	return c.finishSubmit(ctx, TriggerUser, answers)
}

func (c *Controller) handleTick(snap countdown.Snapshot) {
	if snap.TimeUp {
		// Every tick past the deadline retries until a submission is in
		// flight or has succeeded; beginSubmit is the only guard.
		if answers, err := c.beginSubmit(); err == nil {
			c.logger.Info("time is up, submitting automatically", map[string]interface{}{
				"enrollment": c.enrollmentID,
				"answered":   len(answers),
			})
			go func() {
				_, _ = c.finishSubmit(c.ctx, TriggerTimeout, answers)
			}()
		}
	}
	c.notifyChange()
}

func (c *Controller) beginSubmit() ([]exam.Answer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return nil, ErrClosed
	case c.inFlight:
		return nil, ErrSubmitInFlight
	case c.state == StateSubmitted:
		return nil, ErrAlreadySubmitted
	case c.state != StateReady:
		return nil, ErrNotReady
	}

	c.inFlight = true
	c.state = StateSubmitting
	c.lastErr = nil
	return c.answers.Export(), nil
}

func (c *Controller) finishSubmit(ctx context.Context, trigger Trigger, answers []exam.Answer) (Outcome, error) {
	result, err := c.svc.SubmitExam(ctx, c.enrollmentID, answers, c.submitKey)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	c.inFlight = false

	if err != nil {
		submitErr := fmt.Errorf("%w: %w", ErrSubmitFailure, err)
		c.state = StateReady
		c.lastErr = submitErr
		c.mu.Unlock()

		c.logger.Error("exam submission failed", submitErr, map[string]interface{}{
			"enrollment": c.enrollmentID,
			"trigger":    trigger.String(),
		})
		if c.opts.OnSubmitError != nil {
			c.opts.OnSubmitError(submitErr, trigger)
		}
		c.notifyChange()
		return Outcome{}, submitErr
	}

	outcome := Outcome{Trigger: trigger, Result: result}
	c.state = StateSubmitted
	c.outcome = &outcome
	timer := c.timer
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	c.clearDrafts()

	c.logger.Info("exam submitted", map[string]interface{}{
		"enrollment": c.enrollmentID,
		"trigger":    trigger.String(),
		"answered":   len(answers),
	})
	if c.opts.OnSubmitted != nil {
		c.opts.OnSubmitted(outcome)
	}
	c.notifyChange()
	return outcome, nil
}

func (c *Controller) clearDrafts() {
	if c.opts.Drafts == nil {
		return
	}
	c.draftMu.Lock()
	defer c.draftMu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, draftTimeout)
	defer cancel()
	if err := c.opts.Drafts.Clear(ctx, c.enrollmentID); err != nil {
		c.logger.Warn("could not clear answer drafts", err)
	}
}

// Close tears the session down. Responses still in flight are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	timer := c.timer
	c.mu.Unlock()

	c.cancel()
	if timer != nil {
		timer.Stop()
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) Outcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return Outcome{}, false
	}
	return *c.outcome, true
}

func (c *Controller) Enrollment() exam.Enrollment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enrollment
}

func (c *Controller) IsAnswered(questionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers != nil && c.answers.IsAnswered(questionID)
}

func (c *Controller) AnsweredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answers == nil {
		return 0
	}
	return c.answers.Count()
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := View{
		State:         c.state,
		Course:        c.enrollment.Course,
		QuestionCount: len(c.enrollment.Questions),
		FormattedTime: countdown.FormatHMS(0),
		Err:           c.lastErr,
	}
	if c.outcome != nil {
		outcome := *c.outcome
		view.Outcome = &outcome
	}
	if c.timer != nil {
		snap := c.timer.Snapshot()
		view.FormattedTime = snap.Formatted()
		view.TimeUp = snap.TimeUp
	}
	if c.answers != nil {
		view.AnsweredCount = c.answers.Count()
	}
	if c.pager == nil {
		return view
	}

	view.Page = c.pager.Page()
	view.TotalPages = c.pager.TotalPages()
	view.HasPrev = c.pager.HasPrev()
	view.HasNext = c.pager.HasNext()

	start, _ := c.pager.Bounds(view.Page)
	page := exam.PageItems(c.enrollment.Questions, view.Page, c.pager.Size())
	view.Questions = make([]QuestionView, 0, len(page))
	for offset, question := range page {
		choiceID, answered := c.answers.Get(question.ID)
		view.Questions = append(view.Questions, QuestionView{
			Index:    start + offset,
			Question: question,
			Answered: answered,
			ChoiceID: choiceID,
		})
	}
	return view
}

func (c *Controller) notifyChange() {
	if c.opts.OnChange == nil {
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.opts.OnChange(c.View())
}

// serverOffset is how far the server's clock runs ahead of ours.
func serverOffset(serverTime *time.Time, localTime time.Time) time.Duration {
	if serverTime == nil || serverTime.IsZero() {
		return 0
	}
	return serverTime.Sub(localTime)
}
