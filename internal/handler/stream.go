package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
	"github.com/mentorboxai/api/internal/registry"
	ws "github.com/mentorboxai/api/internal/websocket"
	"github.com/mentorboxai/api/pkg/response"
)

const snapshotTimeout = 5 * time.Second

// StatusReader is the read side of the job service
type StatusReader interface {
	GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error)
}

type StreamHandler struct {
	jobs StatusReader
	hub  *ws.Hub
	log  logger.Logger
}

func NewStreamHandler(jobs StatusReader, hub *ws.Hub, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		jobs: jobs,
		hub:  hub,
		log:  log,
	}
}

// Upgrade rejects non-websocket requests and unknown jobs before the handshake.
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return response.Error(c, fiber.StatusUpgradeRequired, response.CodeUpgradeRequired, "WebSocket upgrade required", nil)
	}

	if _, err := h.jobs.GetStatus(c.UserContext(), c.Params("jobId")); err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return c.Next()
}

// Stream handles GET /ws/jobs/:jobId
func (h *StreamHandler) Stream() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		h.hub.HandleConnection(c, jobID, func() []byte {
			return h.snapshot(jobID)
		})
	})
}

// snapshot encodes the job's current state, or returns nil when it cannot be read.
func (h *StreamHandler) snapshot(jobID string) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	status, err := h.jobs.GetStatus(ctx, jobID)
	if err != nil {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to load job snapshot")
		return nil
	}
	data, err := ws.Snapshot(status)
	if err != nil {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to encode job snapshot")
		return nil
	}
	return data
}
