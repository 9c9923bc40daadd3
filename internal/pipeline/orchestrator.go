package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
)

// Progress percentages reported while a run advances.
const (
	ProgressUnderstanding = 10
	ProgressPlanning      = 20
	ProgressVerifying     = 30
	ProgressGenerating    = 40
	ProgressRefining      = 50
	ProgressValidating    = 60
	ProgressRendering     = 70
	ProgressDone          = 100
)

// Default validation budgets.
const (
	DefaultValidationAttempts     = 3
	DefaultFastValidationAttempts = 1
)

// StageRunner is the set of stage operations the orchestrator sequences.
type StageRunner interface {
	Understand(ctx context.Context, concept, goal string) (model.Document, error)
	Plan(ctx context.Context, understanding model.Document, duration, maxScenes int) (model.Document, error)
	Verify(ctx context.Context, concept, goal string, plan model.Document) (Verification, error)
	GenerateCode(ctx context.Context, plan model.Document, concept, goal string) (string, error)
	RefineCode(ctx context.Context, code string) (string, error)
	ValidateAndFix(ctx context.Context, code string, maxAttempts int, concept string) (ValidationOutcome, error)
}

// Result is the artifact bundle of one pipeline run
type Result struct {
	Understanding      model.Document `json:"understanding"`
	Plan               model.Document `json:"plan"`
	Code               string         `json:"manim_code"`
	ValidationPassed   bool           `json:"validation_passed"`
	ValidationAttempts int            `json:"validation_attempts"`
	ValidationMetrics  model.Document `json:"validation_metrics"`
}

// ProgressFunc receives the step label and percentage as a run advances.
type ProgressFunc func(step string, progress int)

type runOptions struct {
	progress ProgressFunc
}

// RunOption configures a single Run call
type RunOption func(*runOptions)

// WithProgress registers a callback invoked before each stage starts.
func WithProgress(fn ProgressFunc) RunOption {
	return func(o *runOptions) { o.progress = fn }
}

// Orchestrator sequences the stages of a run
type Orchestrator struct {
	stages       StageRunner
	attempts     int
	fastAttempts int
	log          logger.Logger
}

// NewOrchestrator creates an orchestrator. Non-positive budgets take the defaults.
func NewOrchestrator(stages StageRunner, attempts, fastAttempts int, log logger.Logger) *Orchestrator {
	if attempts <= 0 {
		attempts = DefaultValidationAttempts
	}
	if fastAttempts <= 0 {
		fastAttempts = DefaultFastValidationAttempts
	}
	return &Orchestrator{
		stages:       stages,
		attempts:     attempts,
		fastAttempts: fastAttempts,
		log:          log,
	}
}

// Run executes Understand, Plan, Verify, GenerateCode, RefineCode and the
// validation loop. Fast mode skips Verify and RefineCode and uses the fast
// validation budget. Stages degrade to their fallback values, so an error is
// returned only when a gateway failure escapes a stage.
func (o *Orchestrator) Run(ctx context.Context, req model.GenerationRequest, opts ...RunOption) (*Result, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	report := func(step string, progress int) {
		if ro.progress != nil {
			ro.progress(step, progress)
		}
	}

	log := o.log.With().Str("concept", req.Concept).Bool("fast_mode", req.FastMode).Logger()
	start := time.Now()

	report(model.StepUnderstanding, ProgressUnderstanding)
	understanding, err := o.stages.Understand(ctx, req.Concept, req.Goal)
	if err != nil {
		return nil, fmt.Errorf("understand: %w", err)
	}

	report(model.StepPlanning, ProgressPlanning)
	plan, err := o.stages.Plan(ctx, understanding, req.DurationSeconds, req.MaxScenes)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	finalPlan := plan
	if !req.FastMode {
		report(model.StepVerifying, ProgressVerifying)
		verification, err := o.stages.Verify(ctx, req.Concept, req.Goal, plan)
		if err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		finalPlan = verification.Select(plan)
		if !verification.Approved {
			log.Info().Bool("plan_replaced", len(verification.FinalPlan) > 0).Msg("plan not approved")
		}
	} else {
		log.Debug().Msg("verify skipped")
	}

	report(model.StepGenerating, ProgressGenerating)
	code, err := o.stages.GenerateCode(ctx, finalPlan, req.Concept, req.Goal)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	if !req.FastMode {
		report(model.StepRefining, ProgressRefining)
		code, err = o.stages.RefineCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("refine code: %w", err)
		}
	} else {
		log.Debug().Msg("refine skipped")
	}

	attempts := o.attempts
	if req.FastMode {
		attempts = o.fastAttempts
	}

	report(model.StepValidating, ProgressValidating)
	outcome, err := o.stages.ValidateAndFix(ctx, code, attempts, req.Concept)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	log.Info().
		Bool("validation_passed", outcome.Passed).
		Int("validation_attempts", outcome.Attempts).
		Dur("took", time.Since(start)).
		Msg("pipeline finished")

	result := &Result{
		Understanding:      understanding,
		Plan:               finalPlan,
		Code:               outcome.Code,
		ValidationPassed:   outcome.Passed,
		ValidationAttempts: outcome.Attempts,
	}
	if len(outcome.Metrics) > 0 {
		result.ValidationMetrics = outcome.Metrics
	}
	return result, nil
}
