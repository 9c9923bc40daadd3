package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, time.Hour), mr
}

func newJob(id string) *model.Job {
	return model.NewJob(id, model.GenerationRequest{Concept: "Vaccine Immunity"}, time.Now().UTC().Truncate(time.Second))
}

func setProgress(step string, progress int) MutateFunc {
	return func(j *model.Job) error {
		j.SetStep(step)
		j.Progress = progress
		return nil
	}
}

func complete(j *model.Job) error {
	j.Status = model.JobStatusDone
	j.Progress = 100
	j.SetStep(model.StepCompleted)
	return nil
}

// runStoreContract exercises the behavior every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newJob("a")))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusProcessing, got.Status)
		assert.Equal(t, 10, got.Progress)
		require.NotNil(t, got.CurrentStep)
		assert.Equal(t, model.StepUnderstanding, *got.CurrentStep)
		assert.Equal(t, "Vaccine Immunity", got.Concept)
	})

	t.Run("duplicate create", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newJob("a")))
		assert.ErrorIs(t, s.Create(ctx, newJob("a")), ErrJobExists)
	})

	t.Run("missing job", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nonexistent")
		assert.ErrorIs(t, err, ErrJobNotFound)

		_, err = s.Update(ctx, "nonexistent", complete)
		assert.ErrorIs(t, err, ErrJobNotFound)

		assert.ErrorIs(t, s.Delete(ctx, "nonexistent"), ErrJobNotFound)
	})

	t.Run("progress is monotonic while processing", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newJob("a")))

		_, err := s.Update(ctx, "a", setProgress(model.StepPlanning, 20))
		require.NoError(t, err)

		_, err = s.Update(ctx, "a", setProgress(model.StepUnderstanding, 10))
		assert.ErrorIs(t, err, model.ErrProgressRegression)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 20, got.Progress)
	})

	t.Run("no mutation after done", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newJob("a")))

		done, err := s.Update(ctx, "a", complete)
		require.NoError(t, err)
		require.NotNil(t, done.CompletedAt)

		_, err = s.Update(ctx, "a", func(j *model.Job) error {
			j.Concept = "changed"
			return nil
		})
		assert.ErrorIs(t, err, ErrJobFinalized)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Vaccine Immunity", got.Concept)
		assert.Equal(t, model.JobStatusDone, got.Status)
	})

	t.Run("failure resets progress and is final", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newJob("a")))
		_, err := s.Update(ctx, "a", setProgress(model.StepGenerating, 40))
		require.NoError(t, err)

		failed, err := s.Update(ctx, "a", func(j *model.Job) error {
			msg := "plan: llm upstream unavailable"
			j.Status = model.JobStatusFailed
			j.Progress = 0
			j.SetStep("")
			j.Error = &msg
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 0, failed.Progress)
		assert.Nil(t, failed.CurrentStep)

		_, err = s.Update(ctx, "a", complete)
		assert.ErrorIs(t, err, ErrJobFinalized)
	})

	t.Run("illegal transition", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newJob("a")))
		_, err := s.Update(ctx, "a", func(j *model.Job) error {
			j.Status = model.JobStatusRendering
			j.Progress = 70
			return nil
		})
		require.NoError(t, err)

		_, err = s.Update(ctx, "a", func(j *model.Job) error {
			j.Status = model.JobStatusProcessing
			return nil
		})
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	})

	t.Run("snapshots are isolated", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newJob("a")))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		got.Progress = 99
		got.Concept = "mutated"

		again, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 10, again.Progress)
		assert.Equal(t, "Vaccine Immunity", again.Concept)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, newJob("a")))
		require.NoError(t, s.Delete(ctx, "a"))
		_, err := s.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore(time.Hour, logger.Nop())
	})
}

func TestRedisStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, _ := newRedisTestStore(t)
		return s
	})
}
