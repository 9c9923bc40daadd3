package server

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/handler"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/metrics"
	"github.com/mentorboxai/api/internal/middleware"
	"github.com/mentorboxai/api/internal/service"
	ws "github.com/mentorboxai/api/internal/websocket"
	"github.com/mentorboxai/api/pkg/response"
	"github.com/redis/go-redis/v9"
)

// Deps are the components the HTTP layer is wired to
type Deps struct {
	Jobs    service.JobGenerator
	Hub     *ws.Hub
	Metrics *metrics.Metrics
	// Redis backs the rate limiter; nil disables limiting
	Redis *redis.Client
	// Services is reported by /health
	Services map[string]bool
	// Checks are probed on every /health request
	Checks map[string]handler.HealthChecker
	Log    logger.Logger
}

// NewApp builds the fiber application with every route mounted.
func NewApp(cfg *config.Config, d Deps) *fiber.App {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024, // 1MB
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
	}
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: logFormat,
		Output: d.Log,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	validate := validator.New()
	generateHandler := handler.NewGenerateHandler(d.Jobs, validate, cfg.Worker.Enabled, d.Log)
	streamHandler := handler.NewStreamHandler(d.Jobs, d.Hub, d.Log)
	healthHandler := handler.NewHealthHandler(d.Services, d.Checks)
	rateLimiter := middleware.NewRateLimiter(d.Redis, d.Log)

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", healthHandler.Health)
	app.Get("/metrics", d.Metrics.Handler())

	// API routes
	var apiMiddleware []fiber.Handler
	if cfg.Auth.Enabled {
		apiMiddleware = append(apiMiddleware, middleware.NewAuthMiddleware(cfg.JWT.Secret).Authenticate())
	}
	api := app.Group("/api", apiMiddleware...)
	api.Post("/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), generateHandler.Generate)
	api.Get("/status/:jobId", generateHandler.Status)

	// WebSocket routes
	app.Get("/ws/jobs/:jobId", streamHandler.Upgrade, streamHandler.Stream())

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	if code == fiber.StatusNotFound {
		errCode = response.CodeNotFound
	}

	return response.Error(c, code, errCode, message, nil)
}
