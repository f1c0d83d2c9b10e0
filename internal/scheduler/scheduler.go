// Package scheduler provides the rate-limited task queue that serializes
// calls to the embedding provider. Exactly one task runs at a time, no
// more than WindowCap tasks may start within any WindowDuration, and
// transient failures are retried with exponential backoff. One task's
// terminal failure never stops the queue.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/semlink/semlink/internal/embeddings"
)

// ErrClosed is reported for tasks enqueued after Close.
var ErrClosed = errors.New("scheduler: closed")

// Config tunes the queue. Zero values fall back to defaults.
type Config struct {
	// WindowCap is the maximum number of task starts per window.
	WindowCap int
	// WindowDuration is the fixed rate window length.
	WindowDuration time.Duration
	// MaxAttempts is the total number of executions a task gets before
	// a transient failure becomes terminal.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff between retries.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.WindowCap <= 0 {
		c.WindowCap = 20
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithEventFunc registers an observer for task state transitions.
func WithEventFunc(fn func(Event)) Option {
	return func(s *Scheduler) { s.onEvent = fn }
}

// WithRetryClassifier overrides how failures are split into transient and
// terminal. The default is embeddings.IsTransient.
func WithRetryClassifier(fn func(error) bool) Option {
	return func(s *Scheduler) { s.retryable = fn }
}

// Scheduler is a bounded-rate, single-worker task queue.
type Scheduler struct {
	cfg       Config
	onEvent   func(Event)
	retryable func(error) bool

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []*task
	outstanding int // pending + running + awaiting backoff
	windowStart time.Time
	started     int // task starts in the current window
	closed      bool
	succeeded   int
	failed      int
}

// New creates a Scheduler and starts its worker.
func New(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:       cfg.withDefaults(),
		retryable: embeddings.IsTransient,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	go s.worker()
	return s
}

// Enqueue appends a task to the queue and returns a handle for waiting on
// its terminal state.
func (s *Scheduler) Enqueue(label string, run func() error) *Handle {
	return s.enqueue(label, run, false)
}

// EnqueueFront puts a task ahead of all pending work. Used for the
// interactive single-note path so it is not stuck behind a backfill.
func (s *Scheduler) EnqueueFront(label string, run func() error) *Handle {
	return s.enqueue(label, run, true)
}

func (s *Scheduler) enqueue(label string, run func() error, front bool) *Handle {
	h := &Handle{done: make(chan struct{})}
	t := &task{
		id:     uuid.New().String(),
		label:  label,
		run:    run,
		handle: h,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.err = ErrClosed
		close(h.done)
		return h
	}
	s.mu.Unlock()

	// Emit before the worker can see the task; its attempt counter is
	// not stable afterwards.
	s.emit(t, StatePending, nil)

	s.mu.Lock()
	if front {
		s.queue = append([]*task{t}, s.queue...)
	} else {
		s.queue = append(s.queue, t)
	}
	s.outstanding++
	s.mu.Unlock()
	s.cond.Broadcast()

	return h
}

// OnIdle blocks until no task is pending, running, or awaiting a retry,
// or until ctx is done. Tasks that ended Failed still count as settled.
func (s *Scheduler) OnIdle(ctx context.Context) error {
	// The waiter records how it exited; cancellation and idleness can
	// race, and only the waiter knows which one actually won.
	waited := make(chan struct{})
	var cancelled bool
	go func() {
		defer close(waited)
		s.mu.Lock()
		defer s.mu.Unlock()
		for s.outstanding > 0 {
			select {
			case <-ctx.Done():
				cancelled = true
				return
			default:
			}
			s.cond.Wait()
		}
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		// Wake the waiter so its goroutine exits.
		s.cond.Broadcast()
		<-waited
	}
	if cancelled {
		return ctx.Err()
	}
	return nil
}

// Stats returns the number of tasks that reached Succeeded and Failed.
func (s *Scheduler) Stats() (succeeded, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded, s.failed
}

// Close stops accepting new tasks. Already queued work is drained.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Scheduler) worker() {
	for {
		t := s.next()
		if t == nil {
			return
		}

		s.awaitBudget()

		s.mu.Lock()
		t.attempt++
		attempt := t.attempt
		s.mu.Unlock()

		s.emit(t, StateRunning, nil)
		err := t.run()

		switch {
		case err == nil:
			s.finish(t, StateSucceeded, nil)

		case s.retryable(err) && attempt < s.cfg.MaxAttempts:
			s.emit(t, StateRetrying, err)
			delay := s.backoff(attempt)
			log.Debug().
				Str("task", t.label).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("transient failure, retry scheduled")
			time.AfterFunc(delay, func() { s.requeue(t) })

		default:
			s.finish(t, StateFailed, err)
		}
	}
}

// next pops the head of the queue, blocking while it is empty. Returns
// nil once the scheduler is closed and fully drained.
func (s *Scheduler) next() *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if len(s.queue) > 0 {
			t := s.queue[0]
			s.queue = s.queue[1:]
			return t
		}
		if s.closed && s.outstanding == 0 {
			return nil
		}
		s.cond.Wait()
	}
}

// awaitBudget blocks until a task start fits inside the current rate
// window. Dispatch is delayed, never dropped.
func (s *Scheduler) awaitBudget() {
	for {
		s.mu.Lock()
		now := time.Now()
		if now.Sub(s.windowStart) >= s.cfg.WindowDuration {
			s.windowStart = now
			s.started = 0
		}
		if s.started < s.cfg.WindowCap {
			s.started++
			s.mu.Unlock()
			return
		}
		wait := s.cfg.WindowDuration - now.Sub(s.windowStart)
		s.mu.Unlock()

		log.Debug().Dur("wait", wait).Msg("rate window exhausted, delaying dispatch")
		time.Sleep(wait)
	}
}

func (s *Scheduler) requeue(t *task) {
	s.mu.Lock()
	if s.closed {
		// Drain-time retries settle as failed so OnIdle can resolve.
		s.mu.Unlock()
		s.finish(t, StateFailed, ErrClosed)
		return
	}
	s.mu.Unlock()
	s.emit(t, StatePending, nil)

	s.mu.Lock()
	s.queue = append(s.queue, t)
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Scheduler) finish(t *task, state State, err error) {
	// The handle settles before the idle count drops so a caller woken by
	// OnIdle always observes every handle as done.
	t.handle.err = err
	close(t.handle.done)

	s.mu.Lock()
	s.outstanding--
	attempt := t.attempt
	if state == StateSucceeded {
		s.succeeded++
	} else {
		s.failed++
	}
	s.mu.Unlock()
	s.cond.Broadcast()

	if err != nil {
		log.Warn().Str("task", t.label).Int("attempt", attempt).Err(err).Msg("task failed")
	}
	s.emit(t, state, err)
}

// backoff computes min(MaxDelay, BaseDelay * 2^attempt).
func (s *Scheduler) backoff(attempt int) time.Duration {
	delay := s.cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	return delay
}

func (s *Scheduler) emit(t *task, state State, err error) {
	if s.onEvent == nil {
		return
	}
	ev := Event{
		TaskID:  t.id,
		Label:   t.label,
		State:   state.String(),
		Attempt: t.attempt,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.onEvent(ev)
}
