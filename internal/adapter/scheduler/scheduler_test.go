package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	return New(slog.New(slog.DiscardHandler))
}

func TestAddJob_InvalidSpec(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()

	_, err := s.AddJob("not a cron spec", func(context.Context) error { return nil }, JobOptions{Name: "bad"})
	assert.Error(t, err)
}

func TestScheduler_RunsJob(t *testing.T) {
	s := newTestScheduler()

	var runs atomic.Int32
	done := make(chan struct{})
	_, err := s.AddJob("@every 10ms", func(context.Context) error {
		if runs.Add(1) == 1 {
			close(done)
		}
		return nil
	}, JobOptions{Name: "tick"})
	require.NoError(t, err)

	s.Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	s.Stop()
}

func TestScheduler_SkipIfRunning(t *testing.T) {
	s := newTestScheduler()

	var started atomic.Int32
	release := make(chan struct{})
	_, err := s.AddJob("@every 10ms", func(ctx context.Context) error {
		started.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, JobOptions{Name: "slow", OverlapPolicy: SkipIfRunning})
	require.NoError(t, err)

	s.Start()
	// Let several ticks fire while the first invocation is still blocked.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), started.Load())

	close(release)
	s.Stop()
}

func TestScheduler_JobTimeout(t *testing.T) {
	s := newTestScheduler()

	timedOut := make(chan struct{})
	var once atomic.Bool
	_, err := s.AddJob("@every 10ms", func(ctx context.Context) error {
		<-ctx.Done()
		if once.CompareAndSwap(false, true) {
			close(timedOut)
		}
		return ctx.Err()
	}, JobOptions{Name: "bounded", Timeout: 20 * time.Millisecond, OverlapPolicy: SkipIfRunning})
	require.NoError(t, err)

	s.Start()
	select {
	case <-timedOut:
	case <-time.After(2 * time.Second):
		t.Fatal("job context never expired")
	}
	s.Stop()
}

func TestScheduler_StopWaitsForJobs(t *testing.T) {
	s := newTestScheduler()

	finished := make(chan struct{})
	var once atomic.Bool
	_, err := s.AddJob("@every 10ms", func(ctx context.Context) error {
		if !once.CompareAndSwap(false, true) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return nil
	}, JobOptions{Name: "lingering"})
	require.NoError(t, err)

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the running job finished")
	}
}
