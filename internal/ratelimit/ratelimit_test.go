package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRunsSerialWithMinInterval(t *testing.T) {
	l := New(1, 100*time.Millisecond)
	defer l.Clear()

	var (
		mu     sync.Mutex
		starts []time.Time
		wg     sync.WaitGroup
	)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func() error {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil
			})
		}()
		// Stagger submissions so queue order is deterministic.
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, 80*time.Millisecond, "start %d followed too closely", i)
	}
}

func TestDoBoundsConcurrency(t *testing.T) {
	l := New(2, time.Millisecond)
	defer l.Clear()

	var (
		mu      sync.Mutex
		current int
		peak    int
		wg      sync.WaitGroup
	)

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func() error {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 2)
	assert.Greater(t, peak, 0)
}

func TestDoIsolatesTaskErrors(t *testing.T) {
	l := New(1, time.Millisecond)
	defer l.Clear()

	boom := errors.New("boom")
	err := l.Do(context.Background(), func() error { return boom })
	assert.ErrorIs(t, err, boom)

	err = l.Do(context.Background(), func() error { return nil })
	assert.NoError(t, err)
}

func TestSubmitReturnsValue(t *testing.T) {
	l := New(1, time.Millisecond)
	defer l.Clear()

	got, err := Submit(context.Background(), l, func() (string, error) {
		return "prijevod", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "prijevod", got)
}

func TestClearRejectsQueuedAndFutureTasks(t *testing.T) {
	l := New(1, 50*time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = l.Do(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	queuedErr := make(chan error, 1)
	go func() {
		queuedErr <- l.Do(context.Background(), func() error { return nil })
	}()

	// Give the queued task time to land in the queue, then shut down.
	time.Sleep(20 * time.Millisecond)
	l.Clear()
	close(release)

	assert.ErrorIs(t, <-queuedErr, ErrCancelled)
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return nil }), ErrCancelled)
}

func TestDoHonorsContextWhileQueued(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	defer l.Clear()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = l.Do(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Do(ctx, func() error { return nil })
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)
}

func TestStatusCounts(t *testing.T) {
	l := New(1, time.Millisecond)
	defer l.Clear()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = l.Do(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	go func() {
		_ = l.Do(context.Background(), func() error { return nil })
	}()
	time.Sleep(20 * time.Millisecond)

	st := l.Status()
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 1, st.Queued)

	close(release)
}
