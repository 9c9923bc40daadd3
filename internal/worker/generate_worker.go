package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
	"github.com/mentorboxai/api/internal/registry"
	"github.com/mentorboxai/api/internal/service"
)

// JobProcessor runs a queued job
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string, req model.GenerationRequest) error
}

// GenerateWorker processes generation tasks
type GenerateWorker struct {
	jobs JobProcessor
	log  logger.Logger
}

// NewGenerateWorker creates a new generate worker
func NewGenerateWorker(jobs JobProcessor, log logger.Logger) *GenerateWorker {
	return &GenerateWorker{
		jobs: jobs,
		log:  log,
	}
}

// ProcessTask handles generate task processing. Pipeline failures are already
// recorded on the job, so only undecodable tasks and unknown jobs are
// reported back to asynq, and neither is worth retrying.
func (w *GenerateWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := service.ParseGeneratePayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	w.log.Info().Str("job_id", payload.JobID).Msg("starting generate job")

	if err := w.jobs.ProcessJob(ctx, payload.JobID, payload.Request); err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.log.Info().Str("job_id", payload.JobID).Msg("generate job finished")
	return nil
}

// Register mounts the worker on an asynq mux.
func (w *GenerateWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(service.TaskTypeGenerate, w.ProcessTask)
}
