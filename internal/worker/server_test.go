package worker

import (
	"bytes"
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
	"github.com/mentorboxai/api/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsynqLogLevel(t *testing.T) {
	assert.Equal(t, asynq.DebugLevel, asynqLogLevel("DEBUG"))
	assert.Equal(t, asynq.WarnLevel, asynqLogLevel("warn"))
	assert.Equal(t, asynq.ErrorLevel, asynqLogLevel("error"))
	assert.Equal(t, asynq.InfoLevel, asynqLogLevel(""))
}

func TestAsynqLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newAsynqLogger(zerolog.New(&buf))

	l.Warn("queue ", "generate", " paused")

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"component":"asynq"`)
	assert.Contains(t, buf.String(), "queue generate paused")
}

func TestNewServeMux_RoutesGenerateTasks(t *testing.T) {
	proc := &fakeProcessor{}
	mux := NewServeMux(NewGenerateWorker(proc, logger.Nop()))

	task := newTask(t, service.GeneratePayload{JobID: "job_1", Request: model.GenerationRequest{Concept: "orbits"}})
	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Equal(t, "job_1", proc.jobID)

	err := mux.ProcessTask(context.Background(), asynq.NewTask("unknown:type", nil))
	assert.Error(t, err)
}
