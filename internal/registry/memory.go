package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
)

// row holds the published snapshot of one job. Readers load the pointer
// without locking; writers serialize on mu.
type row struct {
	mu   sync.Mutex
	snap atomic.Pointer[model.Job]
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*row
	ttl  time.Duration
	now  func() time.Time
	log  logger.Logger
}

// NewMemoryStore creates an in-memory registry. Finished jobs older than ttl
// are removed by Sweep; ttl <= 0 keeps them forever.
func NewMemoryStore(ttl time.Duration, log logger.Logger) *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]*row),
		ttl:  ttl,
		now:  time.Now,
		log:  log,
	}
}

func (s *MemoryStore) Create(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	r := &row{}
	r.snap.Store(job.Clone())
	s.rows[job.ID] = r
	return nil
}

func (s *MemoryStore) lookup(id string) (*row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	return r, ok
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	r, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return r.snap.Load().Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn MutateFunc) (*model.Job, error) {
	r, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := apply(r.snap.Load(), fn, s.now())
	if err != nil {
		return nil, err
	}
	r.snap.Store(next)
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	delete(s.rows, id)
	return nil
}

// Len returns the number of stored jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Sweep removes finished jobs whose completion is older than the TTL and
// returns how many were removed. Jobs in flight are never removed.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, r := range s.rows {
		job := r.snap.Load()
		if !job.Status.IsTerminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(s.rows, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug().Int("removed", n).Msg("expired jobs swept")
			}
		}
	}
}
