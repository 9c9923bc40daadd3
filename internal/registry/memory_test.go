package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour, logger.Nop())

	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Create(ctx, newJob("finished")))
	require.NoError(t, s.Create(ctx, newJob("running")))
	_, err := s.Update(ctx, "finished", complete)
	require.NoError(t, err)

	assert.Zero(t, s.Sweep())

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, "finished")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.Get(ctx, "running")
	assert.NoError(t, err)
}

func TestMemoryStore_SweepDisabled(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, logger.Nop())
	require.NoError(t, s.Create(ctx, newJob("a")))
	_, err := s.Update(ctx, "a", complete)
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	assert.Zero(t, s.Sweep())
}

func TestMemoryStore_RunJanitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore(time.Millisecond, logger.Nop())

	require.NoError(t, s.Create(ctx, newJob("a")))
	_, err := s.Update(ctx, "a", complete)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

// Readers interleave with a single writer; run with -race.
func TestMemoryStore_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour, logger.Nop())
	require.NoError(t, s.Create(ctx, newJob("a")))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for {
				select {
				case <-stop:
					return
				default:
				}
				job, err := s.Get(ctx, "a")
				if !assert.NoError(t, err) {
					return
				}
				if job.Status == model.JobStatusProcessing {
					assert.GreaterOrEqual(t, job.Progress, last)
					last = job.Progress
				}
			}
		}()
	}

	for p := 11; p <= 60; p++ {
		_, err := s.Update(ctx, "a", setProgress(model.StepGenerating, p))
		require.NoError(t, err)
	}
	_, err := s.Update(ctx, "a", complete)
	require.NoError(t, err)

	close(stop)
	wg.Wait()
}
