package model

import (
	"errors"
	"fmt"
	"time"
)

// Document is an opaque structured artifact produced by an LLM stage
// (understanding, plan, validation metrics).
type Document map[string]any

var (
	// ErrJobFinalized is returned for any mutation of a job that already reached done or failed.
	ErrJobFinalized = errors.New("job already finalized")
	// ErrProgressRegression is returned when an in-flight job update lowers its progress.
	ErrProgressRegression = errors.New("job progress cannot decrease")
)

// Job represents one concept-to-animation generation run
type Job struct {
	ID                string     `json:"job_id"`
	Status            JobStatus  `json:"status"`
	Progress          int        `json:"progress"`
	CurrentStep       *string    `json:"current_step"`
	VideoURL          *string    `json:"video_url"`
	Error             *string    `json:"error"`
	Understanding     Document   `json:"understanding"`
	Plan              Document   `json:"plan"`
	Code              *string    `json:"manim_code"`
	ValidationPassed  *bool      `json:"validation_passed,omitempty"`
	ValidationMetrics Document   `json:"validation_metrics,omitempty"`
	Concept           string     `json:"concept"`
	FastMode          bool       `json:"fast_mode"`
	AutoRender        bool       `json:"auto_render"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// NewJob builds the initial record of a job that is about to start processing.
func NewJob(id string, req GenerationRequest, now time.Time) *Job {
	step := StepUnderstanding
	return &Job{
		ID:          id,
		Status:      JobStatusProcessing,
		Progress:    10,
		CurrentStep: &step,
		Concept:     req.Concept,
		FastMode:    req.FastMode,
		AutoRender:  req.AutoRender,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a shallow copy. Documents are never mutated once attached to a
// job, so sharing them between snapshots is safe.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}

// SetStep sets the current step label, or clears it when step is empty.
func (j *Job) SetStep(step string) {
	if step == "" {
		j.CurrentStep = nil
		return
	}
	j.CurrentStep = &step
}

// CheckUpdate validates that next is a legal successor of prev.
func CheckUpdate(prev, next *Job) error {
	if prev.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobFinalized, prev.ID, prev.Status)
	}
	if next.ID != prev.ID || !next.CreatedAt.Equal(prev.CreatedAt) {
		return fmt.Errorf("job identity cannot change")
	}
	if !prev.Status.CanTransition(next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.Status, next.Status)
	}
	if next.Progress < 0 || next.Progress > 100 {
		return fmt.Errorf("progress %d out of range", next.Progress)
	}
	if !next.Status.IsTerminal() && next.Progress < prev.Progress {
		return fmt.Errorf("%w: %d -> %d", ErrProgressRegression, prev.Progress, next.Progress)
	}
	return nil
}
