package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mentorboxai/api/internal/model"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already exists")
	// ErrJobFinalized aliases the model error so callers can match either.
	ErrJobFinalized = model.ErrJobFinalized
)

// DefaultTTL is how long finished jobs stay queryable.
const DefaultTTL = 24 * time.Hour

// MutateFunc edits a private copy of a job. Returning an error aborts the update.
type MutateFunc func(job *model.Job) error

// Store is a keyed job registry. Get returns snapshots that callers may
// freely read; the stored record only changes through Update, which rejects
// illegal transitions, progress regressions and any write after a job
// finished.
type Store interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, id string, fn MutateFunc) (*model.Job, error)
	Delete(ctx context.Context, id string) error
}

// apply runs fn on a copy of prev and validates the result.
func apply(prev *model.Job, fn MutateFunc, now time.Time) (*model.Job, error) {
	if prev.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrJobFinalized, prev.ID, prev.Status)
	}

	next := prev.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := model.CheckUpdate(prev, next); err != nil {
		return nil, err
	}

	next.UpdatedAt = now
	if next.Status.IsTerminal() && next.CompletedAt == nil {
		completed := now
		next.CompletedAt = &completed
	}
	return next, nil
}
