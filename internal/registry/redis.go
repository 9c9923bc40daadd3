package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mentorboxai/api/internal/model"
	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 10

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps each job as JSON under job:<id>. Jobs in flight have no
// expiry; finished jobs expire after the TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore creates a Redis-backed registry
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

func (s *RedisStore) expiry(job *model.Job) time.Duration {
	if job.Status.IsTerminal() && s.ttl > 0 {
		return s.ttl
	}
	return 0
}

func (s *RedisStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, jobKey(job.ID), data, s.expiry(job)).Result()
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	return s.get(ctx, s.rdb, id)
}

func (s *RedisStore) get(ctx context.Context, c getter, id string) (*model.Job, error) {
	data, err := c.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// Update applies fn under WATCH so a concurrent writer forces a retry
// instead of a lost update.
func (s *RedisStore) Update(ctx context.Context, id string, fn MutateFunc) (*model.Job, error) {
	key := jobKey(id)
	var result *model.Job

	txf := func(tx *redis.Tx) error {
		prev, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}

		next, err := apply(prev, fn, s.now())
		if err != nil {
			return err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.expiry(next))
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("job %s: too many concurrent updates", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, jobKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}
