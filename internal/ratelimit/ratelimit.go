// Package ratelimit gates outbound calls to the text-generation service.
// It bounds how many tasks run at once and keeps a minimum gap between task
// starts, so the downstream API sees neither concurrency spikes nor bursts.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCancelled is returned for tasks rejected by Clear before they started.
var ErrCancelled = errors.New("ratelimit: task cancelled")

const (
	defaultMaxConcurrent = 2
	defaultMinInterval   = 3 * time.Second

	// Submissions beyond this block the caller until the queue drains.
	queueCapacity = 256
)

// Status is a point-in-time snapshot for observability.
type Status struct {
	Queued int
	Active int
}

type waiter struct {
	ctx context.Context
	// Unbuffered: an admission only counts once the caller receives it, so
	// a caller that gave up can never strand a slot.
	admit chan error
}

// Limiter serves tasks in submission order, at most maxConcurrent at a time,
// with at least minInterval between consecutive task starts. Construct one
// per process and inject it; there is no package-level instance.
type Limiter struct {
	minInterval time.Duration
	queue       chan *waiter
	slots       chan struct{}

	mu     sync.Mutex
	closed bool
	queued int
	active int

	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a Limiter and starts its dispatch loop. Non-positive arguments
// fall back to the defaults (2 concurrent, 3s interval).
func New(maxConcurrent int, minInterval time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}

	l := &Limiter{
		minInterval: minInterval,
		queue:       make(chan *waiter, queueCapacity),
		slots:       make(chan struct{}, maxConcurrent),
		now:         time.Now,
		sleep:       time.Sleep,
	}
	go l.dispatch()
	return l
}

// Do runs fn under the limiter's admission rules and returns its error.
// Sibling tasks are unaffected by fn failing. Waiting is aborted by ctx.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	w := &waiter{ctx: ctx, admit: make(chan error)}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrCancelled
	}
	l.queued++
	l.mu.Unlock()

	select {
	case l.queue <- w:
	case <-ctx.Done():
		l.dropQueued()
		return ctx.Err()
	}

	select {
	case err := <-w.admit:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		// The dispatcher sees the dead context and skips this waiter.
		return ctx.Err()
	}

	defer func() {
		<-l.slots
		l.mu.Lock()
		l.active--
		l.mu.Unlock()
	}()
	return fn()
}

// Submit runs fn under the limiter and returns its value, for callers that
// need a result rather than just an error.
func Submit[T any](ctx context.Context, l *Limiter, fn func() (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Clear rejects every task that has not started yet with ErrCancelled and
// makes subsequent submissions fail the same way. Running tasks finish
// normally. Used at process shutdown.
func (l *Limiter) Clear() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	for {
		select {
		case w := <-l.queue:
			l.reject(w)
		default:
			return
		}
	}
}

// Status reports current queue depth and running task count.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{Queued: l.queued, Active: l.active}
}

func (l *Limiter) dispatch() {
	var lastStart time.Time

	for w := range l.queue {
		if l.isClosed() {
			l.reject(w)
			continue
		}
		if w.ctx.Err() != nil {
			// Caller gave up while queued; don't burn an interval on it.
			l.dropQueued()
			continue
		}

		if !lastStart.IsZero() {
			if gap := l.minInterval - l.now().Sub(lastStart); gap > 0 {
				l.sleep(gap)
			}
		}

		l.slots <- struct{}{}

		select {
		case w.admit <- nil:
			lastStart = l.now()
			l.mu.Lock()
			l.queued--
			l.active++
			l.mu.Unlock()
		case <-w.ctx.Done():
			// Admission lost to a cancellation; put the slot back.
			<-l.slots
			l.dropQueued()
		}
	}
}

func (l *Limiter) reject(w *waiter) {
	select {
	case w.admit <- ErrCancelled:
	case <-w.ctx.Done():
	}
	l.dropQueued()
}

func (l *Limiter) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Limiter) dropQueued() {
	l.mu.Lock()
	l.queued--
	l.mu.Unlock()
}
