package e2e

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/mentorboxai/api/internal/client"
	"github.com/mentorboxai/api/internal/model"
)

func TestGenerate_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", `{"concept": "Vaccine Immunity!!", "goal": "explain memory cells"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	jobID, _ := result["job_id"].(string)
	if !strings.HasPrefix(jobID, "vaccine_immunity_") {
		t.Errorf("expected job id prefixed with 'vaccine_immunity_', got %q", jobID)
	}
	if result["status"] != "done" {
		t.Errorf("expected status 'done', got %v", result["status"])
	}
	if result["estimated_time_seconds"] != float64(15) {
		t.Errorf("expected estimated_time_seconds 15, got %v", result["estimated_time_seconds"])
	}

	resp, err = doRequest(ta.app, http.MethodGet, "/api/status/"+jobID, "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	status := parseJSON(t, resp)
	if status["progress"] != float64(100) {
		t.Errorf("expected progress 100, got %v", status["progress"])
	}
	if status["current_step"] != "completed" {
		t.Errorf("expected current_step 'completed', got %v", status["current_step"])
	}
	if v, ok := status["video_url"]; !ok || v != nil {
		t.Errorf("expected null video_url, got %v", v)
	}
	if status["validation_passed"] != true {
		t.Errorf("expected validation_passed true, got %v", status["validation_passed"])
	}
	code, _ := status["manim_code"].(string)
	if !strings.HasPrefix(code, "from manim import *") {
		t.Errorf("expected fenced code to be extracted, got %q", code)
	}
	plan, _ := status["plan"].(map[string]interface{})
	if plan["title"] != "How Vaccines Work" {
		t.Errorf("expected plan title, got %v", plan["title"])
	}
	understanding, _ := status["understanding"].(map[string]interface{})
	if understanding["key_insight"] != "memory cells" {
		t.Errorf("expected understanding to be parsed from fenced JSON, got %v", understanding)
	}
}

func TestGenerate_PersistsInRedis(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", `{"concept": "photosynthesis"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	jobID, _ := parseJSON(t, resp)["job_id"].(string)

	job, err := ta.store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if job.Status != model.JobStatusDone {
		t.Errorf("expected stored job to be done, got %s", job.Status)
	}
	if job.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	if ttl := ta.redis.TTL("job:" + jobID); ttl <= 0 {
		t.Errorf("expected finished job to carry a TTL, got %v", ttl)
	}
}

func TestGenerate_FastMode(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", `{"concept": "pythagoras", "fast_mode": true}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	// understand, plan, generate, one validation attempt
	if n := ta.model.CallCount(); n != 4 {
		t.Errorf("expected 4 model calls in fast mode, got %d", n)
	}
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	ta := setupApp(t)
	ta.model.Err = fmt.Errorf("groq returned 503: %w", client.ErrUpstreamUnavailable)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", `{"concept": "entropy"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// Pipeline failures are recorded on the job, not returned
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["status"] != "failed" {
		t.Errorf("expected status 'failed', got %v", result["status"])
	}

	resp, err = doRequest(ta.app, http.MethodGet, fmt.Sprintf("/api/status/%s", result["job_id"]), "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	status := parseJSON(t, resp)
	if status["progress"] != float64(0) {
		t.Errorf("expected progress 0, got %v", status["progress"])
	}
	if status["current_step"] != nil {
		t.Errorf("expected current_step cleared, got %v", status["current_step"])
	}
	msg, _ := status["error"].(string)
	if !strings.Contains(msg, "understand") {
		t.Errorf("expected error to name the failing stage, got %q", msg)
	}
}

func TestGenerate_InvalidBody(t *testing.T) {
	ta := setupApp(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing concept", `{"goal": "teach"}`},
		{"blank concept", `{"concept": "   "}`},
		{"duration too long", `{"concept": "x", "duration_seconds": 9000}`},
		{"not json", `concept=x`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", tt.body, nil)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
			if code := errorCode(parseJSON(t, resp)); code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %v", code)
			}
		})
	}

	if n := ta.model.CallCount(); n != 0 {
		t.Errorf("expected no model calls for invalid requests, got %d", n)
	}
}

func TestStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/status/nonexistent", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
	if code := errorCode(parseJSON(t, resp)); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", code)
	}
}

func TestGenerate_Auth(t *testing.T) {
	ta := setupApp(t, withAuth())

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", `{"concept": "orbits"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/generate", `{"concept": "orbits"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
}

func TestGenerate_RateLimited(t *testing.T) {
	ta := setupApp(t, withAuth(), withRateLimit(2))

	for i := 0; i < 2; i++ {
		resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/generate", `{"concept": "tides"}`)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusOK)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/generate", `{"concept": "tides"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if !ta.redis.Exists("ratelimit:generate:test-user-123") {
		t.Error("expected the limiter to key on the authenticated user")
	}
}
