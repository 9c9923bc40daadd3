package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mentorboxai/api/internal/auth"
	"github.com/mentorboxai/api/internal/client/clienttest"
	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/metrics"
	"github.com/mentorboxai/api/internal/pipeline"
	"github.com/mentorboxai/api/internal/registry"
	"github.com/mentorboxai/api/internal/server"
	"github.com/mentorboxai/api/internal/service"
	ws "github.com/mentorboxai/api/internal/websocket"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	model *clienttest.MockGenerator
	store registry.Store
	redis *miniredis.Miniredis
}

type appOption func(cfg *config.Config)

func withAuth() appOption {
	return func(cfg *config.Config) { cfg.Auth.Enabled = true }
}

func withRateLimit(perHour int) appOption {
	return func(cfg *config.Config) { cfg.RateLimit.GeneratePerHour = perHour }
}

// scriptedModel answers every pipeline stage with well-formed output.
func scriptedModel() *clienttest.MockGenerator {
	return &clienttest.MockGenerator{Respond: func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Analyze the concept"):
			return "```json\n{\"core_concepts\": [\"antigen\", \"antibody\"], \"key_insight\": \"memory cells\"}\n```", nil
		case strings.HasPrefix(prompt, "You are a Video Director"):
			return `{"title": "How Vaccines Work", "scenes": [{"id": 1, "duration": 20}, {"id": 2, "duration": 15}]}`, nil
		case strings.HasPrefix(prompt, "Verify this"):
			return `{"approved": true, "issues": []}`, nil
		case strings.HasPrefix(prompt, "You are a cinematic"), strings.HasPrefix(prompt, "You are reviewing"):
			return "```python\nfrom manim import *\n\nclass GeneratedScene(Scene):\n    def construct(self):\n        self.wait(1)\n```", nil
		default:
			return `{"validation_passed": true, "metrics": {"syntax_ok": true, "scene_count": 2}}`, nil
		}
	}}
}

// setupApp wires the same components as cmd/server, with a scripted model,
// a Redis registry on miniredis and artifacts in a temp dir.
func setupApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()

	cfg := &config.Config{
		Server:    config.ServerConfig{Env: "test", LogLevel: "error"},
		JWT:       config.JWTConfig{Secret: testJWTSecret},
		RateLimit: config.RateLimitConfig{GeneratePerHour: 10000},
		Pipeline:  config.PipelineConfig{ValidationAttempts: 3, FastValidationAttempts: 1},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	log := logger.Nop()
	m := metrics.New()
	model := scriptedModel()

	stages := pipeline.NewStages(model, pipeline.WithMetrics(m), pipeline.WithLogger(log))
	orchestrator := pipeline.NewOrchestrator(stages, cfg.Pipeline.ValidationAttempts, cfg.Pipeline.FastValidationAttempts, log)
	store := registry.NewRedisStore(redisClient, registry.DefaultTTL)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	jobService := service.NewJobService(store, orchestrator, service.NewLocalArtifactStore(t.TempDir()), log,
		service.WithNotifier(hub),
		service.WithMetrics(m),
	)

	app := server.NewApp(cfg, server.Deps{
		Jobs:     jobService,
		Hub:      hub,
		Metrics:  m,
		Redis:    redisClient,
		Services: map[string]bool{"llm": true, "renderer": false},
		Log:      log,
	})

	return &testApp{app: app, model: model, store: store, redis: mr}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.IssueToken("test-user-123", "test@example.com", testJWTSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts error.code from an error envelope.
func errorCode(body map[string]interface{}) interface{} {
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		return nil
	}
	return e["code"]
}
