package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mentorboxai/api/internal/config"
)

// Renderer turns a stored animation script into a video
type Renderer interface {
	Render(ctx context.Context, jobID, codeRef string) (string, error)
}

// RenderClient implements Renderer for the Manim render microservice
type RenderClient struct {
	httpClient *http.Client
	baseURL    string
}

// RenderRequest represents the request for rendering a scene
type RenderRequest struct {
	RequestID string `json:"request_id"`
	JobID     string `json:"job_id"`
	CodeURL   string `json:"code_url"`
	SceneName string `json:"scene_name,omitempty"`
}

// RenderResponse represents the response from the render service
type RenderResponse struct {
	VideoURL string  `json:"video_url"`
	Duration float64 `json:"duration,omitempty"`
}

// NewRenderClient creates a new render service client
func NewRenderClient(cfg *config.RenderConfig) *RenderClient {
	return &RenderClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.ServiceURL, "/"),
	}
}

// Render asks the service to render the script at codeRef and returns the video URL
func (c *RenderClient) Render(ctx context.Context, jobID, codeRef string) (string, error) {
	var result RenderResponse
	req := &RenderRequest{
		RequestID: uuid.New().String(),
		JobID:     jobID,
		CodeURL:   codeRef,
	}
	if err := c.post(ctx, "/render", req, &result); err != nil {
		return "", err
	}
	if result.VideoURL == "" {
		return "", fmt.Errorf("render service returned no video url")
	}
	return result.VideoURL, nil
}

// HealthCheck checks if the render service is available
func (c *RenderClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("render service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// post sends a POST request with JSON body and parses the response
func (c *RenderClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("render service error (status %d): %s", resp.StatusCode, truncate(string(respBody), 512))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *RenderClient) IsConfigured() bool {
	return c.baseURL != ""
}
