package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mentorboxai/api/internal/config"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// bedrockInvoker is the subset of the Bedrock runtime API used here
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient calls Anthropic models hosted on AWS Bedrock
type BedrockClient struct {
	runtime  bedrockInvoker
	defaults GenerationParams
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content    []bedrockContent `json:"content"`
	StopReason string           `json:"stop_reason"`
}

// NewBedrockClient loads AWS credentials from the default chain
func NewBedrockClient(ctx context.Context, llm *config.LLMConfig, cfg *config.BedrockConfig) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	defaults := configDefaults(llm)
	defaults.Model = cfg.Model

	return &BedrockClient{
		runtime:  bedrockruntime.NewFromConfig(awsCfg),
		defaults: defaults,
	}, nil
}

// Generate invokes the model with a single user turn
func (c *BedrockClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	params = params.Merge(c.defaults)

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        params.MaxTokens,
		Temperature:      clampTemperature(params.Temperature),
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContent{{Type: "text", Text: prompt}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(params.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: bedrock invoke: %v", ErrUpstreamUnavailable, err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
	}

	var sb strings.Builder
	for _, part := range resp.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: empty content", ErrUpstreamMalformed)
	}

	return sb.String(), nil
}
