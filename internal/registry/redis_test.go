package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_ExpiryOnlyAfterFinish(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisTestStore(t)

	require.NoError(t, s.Create(ctx, newJob("a")))
	assert.Zero(t, mr.TTL("job:a"))

	_, err := s.Update(ctx, "a", setProgress("planning", 20))
	require.NoError(t, err)
	assert.Zero(t, mr.TTL("job:a"))

	_, err = s.Update(ctx, "a", complete)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("job:a"))

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRedisStore_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisTestStore(t)

	require.NoError(t, mr.Set("job:bad", "{not json"))
	_, err := s.Get(ctx, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrJobNotFound)
}
