package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/mentorboxai/api/internal/client"
	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/metrics"
	"github.com/mentorboxai/api/internal/model"
)

// Verification is the outcome of the Verify stage
type Verification struct {
	Approved  bool
	FinalPlan model.Document
}

// Select returns the plan that code generation should use.
func (v Verification) Select(plan model.Document) model.Document {
	if v.Approved || len(v.FinalPlan) == 0 {
		return plan
	}
	return v.FinalPlan
}

// Stages runs the individual pipeline stages against a TextGenerator.
// Each stage makes exactly one gateway call.
type Stages struct {
	gen     client.TextGenerator
	params  map[string]client.GenerationParams
	matcher ExampleMatcher
	metrics *metrics.Metrics
	log     logger.Logger
}

// StagesOption configures Stages
type StagesOption func(*Stages)

// WithStageParams sets per-stage generation overrides keyed by stage name.
func WithStageParams(params map[string]client.GenerationParams) StagesOption {
	return func(s *Stages) {
		for k, v := range params {
			s.params[k] = v
		}
	}
}

// WithMatcher replaces the worked-example matcher.
func WithMatcher(m ExampleMatcher) StagesOption {
	return func(s *Stages) { s.matcher = m }
}

// WithMetrics records stage durations and gateway outcomes.
func WithMetrics(m *metrics.Metrics) StagesOption {
	return func(s *Stages) { s.metrics = m }
}

// WithLogger sets the stage logger.
func WithLogger(l logger.Logger) StagesOption {
	return func(s *Stages) { s.log = l }
}

// NewStages creates the stage runner
func NewStages(gen client.TextGenerator, opts ...StagesOption) *Stages {
	s := &Stages{
		gen:     gen,
		params:  make(map[string]client.GenerationParams),
		matcher: DefaultMatcher(),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StageParamsFromConfig converts configured overrides into generation params.
func StageParamsFromConfig(cfg map[string]config.StageParams) map[string]client.GenerationParams {
	out := make(map[string]client.GenerationParams, len(cfg))
	for name, p := range cfg {
		out[name] = client.GenerationParams{
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			Model:       p.Model,
		}
	}
	return out
}

func (s *Stages) call(ctx context.Context, stage, prompt string) (string, error) {
	start := time.Now()
	text, err := s.gen.Generate(ctx, prompt, s.params[stage])
	s.metrics.ObserveStage(stage, time.Since(start))

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, client.ErrUpstreamMalformed):
		outcome = "malformed"
	case errors.Is(err, client.ErrUpstreamUnavailable):
		outcome = "unavailable"
	default:
		outcome = "error"
	}
	s.metrics.LLMCall(stage, outcome)

	if err != nil {
		s.log.Warn().Err(err).Str("stage", stage).Msg("llm call failed")
	} else {
		s.log.Debug().Str("stage", stage).Int("chars", len(text)).Dur("took", time.Since(start)).Msg("llm call")
	}
	return text, err
}

// callDocument runs a JSON-producing stage. A malformed upstream response
// degrades to the empty document; other failures propagate.
func (s *Stages) callDocument(ctx context.Context, stage, prompt string) (model.Document, error) {
	text, err := s.call(ctx, stage, prompt)
	if err != nil {
		if errors.Is(err, client.ErrUpstreamMalformed) {
			return model.Document{}, nil
		}
		return nil, err
	}
	return ParseJSON(text), nil
}

// Understand analyzes the concept and learning goal.
func (s *Stages) Understand(ctx context.Context, concept, goal string) (model.Document, error) {
	return s.callDocument(ctx, config.StageUnderstand, buildUnderstandPrompt(concept, goal))
}

// Plan turns the understanding into a scene plan for the requested duration.
func (s *Stages) Plan(ctx context.Context, understanding model.Document, duration, maxScenes int) (model.Document, error) {
	return s.callDocument(ctx, config.StagePlan, buildPlanPrompt(understanding, duration, maxScenes))
}

// Verify asks the model to check the plan. A missing "approved" field counts as approved.
func (s *Stages) Verify(ctx context.Context, concept, goal string, plan model.Document) (Verification, error) {
	doc, err := s.callDocument(ctx, config.StageVerify, buildVerifyPrompt(concept, goal, plan))
	if err != nil {
		return Verification{}, err
	}
	return Verification{
		Approved:  boolField(doc, "approved", true),
		FinalPlan: docField(doc, "final_plan"),
	}, nil
}

// GenerateCode writes the Manim script for plan.
func (s *Stages) GenerateCode(ctx context.Context, plan model.Document, concept, goal string) (string, error) {
	var example string
	if s.matcher != nil {
		example = s.matcher.Match(concept)
	}

	text, err := s.call(ctx, config.StageGenerate, buildGeneratePrompt(plan, concept, goal, example))
	if err != nil {
		if errors.Is(err, client.ErrUpstreamMalformed) {
			return "", nil
		}
		return "", err
	}
	return ExtractCode(text), nil
}

// RefineCode runs a quality pass over code. Empty or malformed output keeps code.
func (s *Stages) RefineCode(ctx context.Context, code string) (string, error) {
	text, err := s.call(ctx, config.StageRefine, buildRefinePrompt(code))
	if err != nil {
		if errors.Is(err, client.ErrUpstreamMalformed) {
			return code, nil
		}
		return "", err
	}
	if refined := ExtractCode(text); refined != "" {
		return refined, nil
	}
	return code, nil
}
