package model

import "errors"

// Job status
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusRendering  JobStatus = "rendering"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// ErrInvalidTransition is returned when a job update would move it along an edge
// the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid job status transition")

var allowedTransitions = map[JobStatus][]JobStatus{
	JobStatusProcessing: {JobStatusProcessing, JobStatusRendering, JobStatusDone, JobStatusFailed},
	JobStatusRendering:  {JobStatusRendering, JobStatusDone, JobStatusFailed},
}

// IsTerminal reports whether no further transition may leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// CanTransition reports whether a job in status s may move to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Step labels reported in Job.CurrentStep
const (
	StepUnderstanding = "understanding"
	StepPlanning      = "planning"
	StepVerifying     = "verifying"
	StepGenerating    = "generating"
	StepRefining      = "refining"
	StepValidating    = "validating"
	StepRendering     = "rendering"
	StepCompleted     = "completed"
)
