package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mentorboxai/api/internal/config"
)

// Sentinel errors returned by every TextGenerator implementation.
var (
	// ErrUpstreamUnavailable covers network, auth, throttling and non-2xx responses.
	ErrUpstreamUnavailable = errors.New("llm upstream unavailable")
	// ErrUpstreamMalformed covers envelopes that cannot be decoded or carry no text.
	ErrUpstreamMalformed = errors.New("llm upstream returned a malformed response")
)

// Defaults applied to zero-valued GenerationParams fields.
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.01
)

// GenerationParams are the per-call knobs of a text generation request.
// Zero values inherit the client defaults.
type GenerationParams struct {
	MaxTokens   int
	Temperature float64
	Model       string
}

// Merge returns p with zero fields taken from fallback.
func (p GenerationParams) Merge(fallback GenerationParams) GenerationParams {
	if p.MaxTokens == 0 {
		p.MaxTokens = fallback.MaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = fallback.Temperature
	}
	if p.Model == "" {
		p.Model = fallback.Model
	}
	return p
}

// TextGenerator sends one prompt to a remote model and returns its raw text.
// Implementations hold no per-call state and never retry.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

func clampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

func configDefaults(cfg *config.LLMConfig) GenerationParams {
	return GenerationParams{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Model:       cfg.Model,
	}.Merge(GenerationParams{MaxTokens: DefaultMaxTokens, Temperature: DefaultTemperature})
}

// NewTextGenerator builds the gateway selected by llm.provider.
func NewTextGenerator(ctx context.Context, cfg *config.Config) (TextGenerator, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "groq", "openai":
		c := NewChatClient(&cfg.LLM)
		if !c.IsConfigured() {
			return nil, fmt.Errorf("llm provider %q: api key not configured", cfg.LLM.Provider)
		}
		return c, nil
	case "bedrock":
		return NewBedrockClient(ctx, &cfg.LLM, &cfg.Bedrock)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
