package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mentorboxai/api/internal/client"
	"github.com/mentorboxai/api/internal/client/clienttest"
	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptedModel() *clienttest.MockGenerator {
	return &clienttest.MockGenerator{Respond: func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Analyze the concept"):
			return `{"topic": "light"}`, nil
		case strings.HasPrefix(prompt, "You are a Video Director"):
			return `{"title": "Photosynthesis", "scenes": [{"id": 1}]}`, nil
		case strings.HasPrefix(prompt, "You are a cinematic"):
			return "from manim import *\nclass GeneratedScene(Scene): pass", nil
		default:
			return `{"validation_passed": true, "metrics": {}}`, nil
		}
	}}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Storage:  config.StorageConfig{Backend: "local", OutputDir: dir},
		Pipeline: config.PipelineConfig{ValidationAttempts: 3, FastValidationAttempts: 1},
	}
}

func TestRunGenerate(t *testing.T) {
	dir := t.TempDir()
	var out, progress bytes.Buffer

	err := runGenerate(context.Background(), testConfig(dir), scriptedModel(),
		model.GenerationRequest{Concept: "photosynthesis", FastMode: true}, &out, &progress, logger.Nop())
	require.NoError(t, err)

	var status model.StatusResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, model.JobStatusDone, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.ManimCode)
	assert.Contains(t, *status.ManimCode, "GeneratedScene")

	assert.FileExists(t, filepath.Join(dir, "manim", status.JobID+".py"))
	assert.FileExists(t, filepath.Join(dir, status.JobID+"_plan.json"))

	assert.Contains(t, progress.String(), "planning")
	assert.Contains(t, progress.String(), "complete")
}

func TestRunGenerate_Failure(t *testing.T) {
	var out, progress bytes.Buffer
	gen := &clienttest.MockGenerator{Err: fmt.Errorf("dial: %w", client.ErrUpstreamUnavailable)}

	err := runGenerate(context.Background(), testConfig(t.TempDir()), gen,
		model.GenerationRequest{Concept: "entropy"}, &out, &progress, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")

	var status model.StatusResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, model.JobStatusFailed, status.Status)
	assert.Contains(t, progress.String(), "GENERATION_FAILED")
}

func TestRunGenerate_InvalidRequest(t *testing.T) {
	var out bytes.Buffer
	err := runGenerate(context.Background(), testConfig(t.TempDir()), scriptedModel(),
		model.GenerationRequest{Concept: "  "}, &out, &out, logger.Nop())
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "animgen version "+Version)
}

func TestGenerateCommand_RequiresConcept(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"generate"})

	assert.Error(t, cmd.Execute())
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--user", "alice", "--ttl", "1h"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out.String()), "."))
}
