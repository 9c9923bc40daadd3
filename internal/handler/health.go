package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const healthCheckTimeout = 3 * time.Second

// HealthChecker is a backend that can report whether it is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	services map[string]bool
	checks   map[string]HealthChecker
	started  time.Time
}

// NewHealthHandler reports which optional backends are configured and probes
// the ones in checks on every request.
func NewHealthHandler(services map[string]bool, checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{
		services: services,
		checks:   checks,
		started:  time.Now(),
	}
}

// Health handles GET /health. A failing probe degrades the status but the
// endpoint still answers 200 so the process is not restarted for it.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := "ok"
	body := fiber.Map{
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"services":       h.services,
	}

	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
		defer cancel()

		results := make(map[string]string, len(h.checks))
		for name, checker := range h.checks {
			if err := checker.HealthCheck(ctx); err != nil {
				results[name] = err.Error()
				status = "degraded"
				continue
			}
			results[name] = "ok"
		}
		body["checks"] = results
	}

	body["status"] = status
	return c.JSON(body)
}
