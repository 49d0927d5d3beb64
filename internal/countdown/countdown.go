// Package countdown derives the whole seconds left until a target instant,
// recomputed once per second from the clock rather than accumulated.
package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const tickInterval = time.Second

type Snapshot struct {
	Active    bool
	Remaining int
	TimeUp    bool
}

func (s Snapshot) Formatted() string {
	if !s.Active || s.TimeUp {
		return FormatHMS(0)
	}
	return FormatHMS(s.Remaining)
}

type Option func(*Countdown)

// WithOnTick registers a callback receiving every recomputed snapshot.
func WithOnTick(fn func(Snapshot)) Option {
	return func(c *Countdown) {
		c.onTick = fn
	}
}

// WithOnTimeUp registers a callback fired once, on the tick that first
// observes zero seconds left.
func WithOnTimeUp(fn func()) Option {
	return func(c *Countdown) {
		c.onTimeUp = fn
	}
}

// WithOffset shifts the local clock, e.g. by the difference between the
// server's clock and ours.
func WithOffset(offset time.Duration) Option {
	return func(c *Countdown) {
		c.offset = offset
	}
}

type Countdown struct {
	clock    clock.Clock
	offset   time.Duration
	onTick   func(Snapshot)
	onTimeUp func()

	mu        sync.Mutex
	target    *time.Time
	remaining int
	timeUp    bool
	running   bool
	parent    context.Context
	cancel    context.CancelFunc
	gen       uint64
}

// New returns a stopped countdown. A nil target disables it.
func New(clk clock.Clock, target *time.Time, opts ...Option) *Countdown {
	if clk == nil {
		clk = clock.New()
	}
	c := &Countdown{
		clock:  clk,
		target: copyTime(target),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start computes the first value immediately and then once per second until
// Stop is called or ctx is done.
func (c *Countdown) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.parent = ctx
	if c.target == nil {
		c.mu.Unlock()
		return
	}
	c.startLocked()
	snap, fire := c.recomputeLocked()
	c.mu.Unlock()

	c.notify(snap, fire)
}

// Stop ends periodic recomputation. It is safe to call more than once.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.running = false
}

// SetTarget replaces the target instant. The running loop, if any, is torn
// down and restarted against the new target with a fresh time-up latch.
func (c *Countdown) SetTarget(target *time.Time) {
	c.mu.Lock()
	c.stopLocked()
	c.target = copyTime(target)
	c.remaining = 0
	c.timeUp = false
	if !c.running || c.target == nil {
		c.mu.Unlock()
		return
	}
	c.startLocked()
	snap, fire := c.recomputeLocked()
	c.mu.Unlock()

	c.notify(snap, fire)
}

// Tick recomputes the snapshot now, outside the periodic schedule.
func (c *Countdown) Tick() Snapshot {
	c.mu.Lock()
	snap, fire := c.recomputeLocked()
	c.mu.Unlock()

	c.notify(snap, fire)
	return snap
}

func (c *Countdown) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Countdown) Remaining() int {
	return c.Snapshot().Remaining
}

func (c *Countdown) IsTimeUp() bool {
	return c.Snapshot().TimeUp
}

func (c *Countdown) Formatted() string {
	return c.Snapshot().Formatted()
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && c.cancel != nil
}

func (c *Countdown) startLocked() {
	ctx, cancel := context.WithCancel(c.parent)
	c.cancel = cancel
	c.gen++
	// The ticker is created here rather than in the goroutine so that a
	// mock clock advanced right after Start already sees it.
	ticker := c.clock.Ticker(tickInterval)
	go c.run(ctx, c.gen, ticker)
}

func (c *Countdown) stopLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Countdown) run(ctx context.Context, gen uint64, ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			snap, fire := c.recomputeLocked()
			c.mu.Unlock()

			c.notify(snap, fire)
		}
	}
}

func (c *Countdown) recomputeLocked() (Snapshot, bool) {
	if c.target == nil || c.timeUp {
		return c.snapshotLocked(), false
	}

	c.remaining = remainingSeconds(*c.target, c.clock.Now().Add(c.offset))
	if c.remaining > 0 {
		return c.snapshotLocked(), false
	}
	c.timeUp = true
	return c.snapshotLocked(), true
}

func (c *Countdown) snapshotLocked() Snapshot {
	if c.target == nil {
		return Snapshot{}
	}
	if c.timeUp {
		return Snapshot{Active: true, TimeUp: true}
	}
	return Snapshot{Active: true, Remaining: c.remaining}
}

func (c *Countdown) notify(snap Snapshot, timeUpFired bool) {
	if timeUpFired && c.onTimeUp != nil {
		c.onTimeUp()
	}
	if snap.Active && c.onTick != nil {
		c.onTick(snap)
	}
}

func remainingSeconds(target, now time.Time) int {
	left := target.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// FormatHMS renders seconds as zero-padded HH:MM:SS. Non-positive input
// renders as 00:00:00.
func FormatHMS(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := *t
	return &value
}
