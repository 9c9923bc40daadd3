package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mentorboxai/api/internal/model"
)

const (
	TaskTypeGenerate = "generate:process"
	QueueGenerate    = "generate"
)

// GeneratePayload is the asynq payload of a generation task
type GeneratePayload struct {
	JobID   string                  `json:"job_id"`
	Request model.GenerationRequest `json:"request"`
}

// TaskEnqueuer is satisfied by *asynq.Client
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func newGenerateTask(jobID string, req model.GenerationRequest) (*asynq.Task, error) {
	data, err := json.Marshal(GeneratePayload{JobID: jobID, Request: req})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerate, data), nil
}

// ParseGeneratePayload decodes a generation task payload.
func ParseGeneratePayload(t *asynq.Task) (*GeneratePayload, error) {
	var p GeneratePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if p.JobID == "" {
		return nil, fmt.Errorf("task payload has no job id")
	}
	return &p, nil
}

// Generation tasks are never retried: a failed run is already recorded on the job.
func generateTaskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueGenerate),
		asynq.MaxRetry(0),
		asynq.Retention(24 * time.Hour),
	}
}
