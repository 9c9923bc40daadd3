package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mentorboxai/api/internal/client"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/metrics"
	"github.com/mentorboxai/api/internal/model"
	"github.com/mentorboxai/api/internal/pipeline"
	"github.com/mentorboxai/api/internal/registry"
	"github.com/mentorboxai/api/pkg/response"
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid generation request")

const maxIDAttempts = 3

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context, req model.GenerationRequest, opts ...pipeline.RunOption) (*pipeline.Result, error)
}

// Notifier receives job updates for live subscribers
type Notifier interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, step string)
	BroadcastComplete(jobID string, result *model.StatusResponse)
	BroadcastError(jobID string, code, message string)
}

// JobGenerator defines the job operations exposed to handlers, workers and the CLI
type JobGenerator interface {
	CreateJob(ctx context.Context, req model.GenerationRequest) (*model.JobResponse, error)
	SubmitJob(ctx context.Context, req model.GenerationRequest) (*model.JobResponse, error)
	ProcessJob(ctx context.Context, jobID string, req model.GenerationRequest) error
	GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error)
}

// JobService drives generation jobs through their lifecycle
type JobService struct {
	store     registry.Store
	runner    Runner
	artifacts ArtifactStore
	renderer  client.Renderer
	notifier  Notifier
	enqueuer  TaskEnqueuer
	metrics   *metrics.Metrics
	validate  *validator.Validate
	log       logger.Logger
	now       func() time.Time
}

// Option configures optional JobService collaborators
type Option func(*JobService)

// WithRenderer enables video rendering for auto-render requests.
func WithRenderer(r client.Renderer) Option {
	return func(s *JobService) { s.renderer = r }
}

// WithNotifier publishes job updates.
func WithNotifier(n Notifier) Option {
	return func(s *JobService) { s.notifier = n }
}

// WithEnqueuer enables SubmitJob.
func WithEnqueuer(e TaskEnqueuer) Option {
	return func(s *JobService) { s.enqueuer = e }
}

// WithMetrics records job outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *JobService) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *JobService) { s.now = now }
}

// NewJobService creates a job service
func NewJobService(store registry.Store, runner Runner, artifacts ArtifactStore, log logger.Logger, opts ...Option) *JobService {
	s := &JobService{
		store:     store,
		runner:    runner,
		artifacts: artifacts,
		validate:  validator.New(),
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob creates a job and drives it to completion before returning.
// Pipeline failures are recorded on the job, never returned.
func (s *JobService) CreateJob(ctx context.Context, req model.GenerationRequest) (*model.JobResponse, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	job, err := s.newJob(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.ProcessJob(ctx, job.ID, req); err != nil {
		return nil, err
	}

	final, err := s.store.Get(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	return &model.JobResponse{
		JobID:                final.ID,
		Status:               final.Status,
		EstimatedTimeSeconds: req.EstimatedSeconds(),
	}, nil
}

// SubmitJob creates a job and queues it for a worker.
func (s *JobService) SubmitJob(ctx context.Context, req model.GenerationRequest) (*model.JobResponse, error) {
	if s.enqueuer == nil {
		return nil, fmt.Errorf("job queue not configured")
	}

	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	job, err := s.newJob(ctx, req)
	if err != nil {
		return nil, err
	}

	task, err := newGenerateTask(job.ID, req)
	if err != nil {
		s.fail(ctx, job.ID, fmt.Errorf("failed to create task: %w", err))
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if _, err := s.enqueuer.EnqueueContext(ctx, task, generateTaskOptions()...); err != nil {
		s.fail(ctx, job.ID, fmt.Errorf("failed to enqueue task: %w", err))
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.log.Info().Str("job_id", job.ID).Msg("job queued")

	return &model.JobResponse{
		JobID:                job.ID,
		Status:               job.Status,
		EstimatedTimeSeconds: req.EstimatedSeconds(),
	}, nil
}

// ProcessJob runs the pipeline for an existing job. Finished jobs are left
// untouched so a duplicate delivery is harmless.
func (s *JobService) ProcessJob(ctx context.Context, jobID string, req model.GenerationRequest) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		s.log.Warn().Str("job_id", jobID).Str("status", string(job.Status)).Msg("job already finished, skipping")
		return nil
	}

	s.metrics.JobStarted()
	status := s.run(ctx, jobID, req)
	s.metrics.JobFinished(string(status))
	return nil
}

// GetStatus returns a read-only view of a job.
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return model.NewStatusResponse(job), nil
}

func (s *JobService) run(ctx context.Context, jobID string, req model.GenerationRequest) (status model.JobStatus) {
	log := s.log.With().Str("job_id", jobID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job panicked")
			s.fail(ctx, jobID, fmt.Errorf("internal error: %v", r))
			status = model.JobStatusFailed
		}
	}()

	result, err := s.runner.Run(ctx, req, pipeline.WithProgress(func(step string, progress int) {
		s.progress(ctx, jobID, step, progress)
	}))
	if err != nil {
		s.fail(ctx, jobID, err)
		return model.JobStatusFailed
	}

	refs, err := s.artifacts.Save(ctx, jobID, Artifacts{
		Understanding: result.Understanding,
		Plan:          result.Plan,
		Code:          result.Code,
	})
	if err != nil {
		s.fail(ctx, jobID, fmt.Errorf("failed to save artifacts: %w", err))
		return model.JobStatusFailed
	}

	if !req.AutoRender {
		job, err := s.store.Update(ctx, jobID, func(j *model.Job) error {
			attachResult(j, result)
			finish(j)
			return nil
		})
		if err != nil {
			return s.finalizeFailed(ctx, jobID, err)
		}
		s.notifyComplete(job)
		return model.JobStatusDone
	}

	job, err := s.store.Update(ctx, jobID, func(j *model.Job) error {
		attachResult(j, result)
		j.Status = model.JobStatusRendering
		j.Progress = pipeline.ProgressRendering
		j.SetStep(model.StepRendering)
		return nil
	})
	if err != nil {
		return s.finalizeFailed(ctx, jobID, err)
	}
	s.notifyProgress(job)

	videoURL := s.render(ctx, jobID, refs.Code)

	job, err = s.store.Update(ctx, jobID, func(j *model.Job) error {
		if videoURL != "" {
			j.VideoURL = &videoURL
		}
		finish(j)
		return nil
	})
	if err != nil {
		return s.finalizeFailed(ctx, jobID, err)
	}
	s.notifyComplete(job)
	return model.JobStatusDone
}

// finalizeFailed marks the job failed after a result write was rejected.
// A job some other writer already finalized keeps its state.
func (s *JobService) finalizeFailed(ctx context.Context, jobID string, err error) model.JobStatus {
	if errors.Is(err, registry.ErrJobFinalized) {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("job finalized elsewhere")
		return model.JobStatusFailed
	}
	s.fail(ctx, jobID, fmt.Errorf("failed to finalize job: %w", err))
	return model.JobStatusFailed
}

// render returns the video URL, or "" when rendering is unavailable or fails.
func (s *JobService) render(ctx context.Context, jobID, codeRef string) string {
	if s.renderer == nil {
		s.log.Debug().Str("job_id", jobID).Msg("no renderer configured")
		return ""
	}
	url, err := s.renderer.Render(ctx, jobID, codeRef)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("render failed")
		return ""
	}
	return url
}

func (s *JobService) progress(ctx context.Context, jobID, step string, progress int) {
	job, err := s.store.Update(ctx, jobID, func(j *model.Job) error {
		if progress < j.Progress {
			return nil
		}
		j.Progress = progress
		j.SetStep(step)
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Str("step", step).Msg("failed to record progress")
		return
	}
	s.notifyProgress(job)
}

// fail records err on the job. It runs on a context detached from
// cancellation so a shutdown still leaves the job in a final state.
func (s *JobService) fail(ctx context.Context, jobID string, cause error) {
	msg := cause.Error()
	s.log.Error().Err(cause).Str("job_id", jobID).Msg("job failed")

	_, err := s.store.Update(context.WithoutCancel(ctx), jobID, func(j *model.Job) error {
		j.Status = model.JobStatusFailed
		j.Progress = 0
		j.SetStep("")
		j.Error = &msg
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("failed to record job failure")
		return
	}
	if s.notifier != nil {
		s.notifier.BroadcastError(jobID, response.CodeGenerationFailed, msg)
	}
}

func (s *JobService) notifyProgress(job *model.Job) {
	if s.notifier == nil {
		return
	}
	step := ""
	if job.CurrentStep != nil {
		step = *job.CurrentStep
	}
	s.notifier.BroadcastProgress(job.ID, job.Progress, job.Status, step)
}

func (s *JobService) notifyComplete(job *model.Job) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastComplete(job.ID, model.NewStatusResponse(job))
}

// newJob registers a fresh job, suffixing the id when the same concept was
// submitted within the same second.
func (s *JobService) newJob(ctx context.Context, req model.GenerationRequest) (*model.Job, error) {
	now := s.now()
	id := newJobID(req.Concept, now)

	for i := 0; i < maxIDAttempts; i++ {
		job := model.NewJob(id, req, now)
		err := s.store.Create(ctx, job)
		if err == nil {
			s.notifyProgress(job)
			return job, nil
		}
		if !errors.Is(err, registry.ErrJobExists) {
			return nil, fmt.Errorf("failed to create job: %w", err)
		}
		id = newJobID(req.Concept, now) + "_" + uuid.New().String()[:8]
	}
	return nil, fmt.Errorf("failed to allocate a unique job id for %q", req.Concept)
}

func (s *JobService) normalize(req model.GenerationRequest) (model.GenerationRequest, error) {
	req.Concept = strings.TrimSpace(req.Concept)
	req.Goal = strings.TrimSpace(req.Goal)
	req.ApplyDefaults()

	if err := s.validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}

func attachResult(j *model.Job, r *pipeline.Result) {
	code := r.Code
	passed := r.ValidationPassed
	j.Understanding = r.Understanding
	j.Plan = r.Plan
	j.Code = &code
	j.ValidationPassed = &passed
	j.ValidationMetrics = r.ValidationMetrics
}

func finish(j *model.Job) {
	j.Status = model.JobStatusDone
	j.Progress = pipeline.ProgressDone
	j.SetStep(model.StepCompleted)
}
