package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/mentorboxai/api/internal/client"
	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/handler"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/metrics"
	"github.com/mentorboxai/api/internal/pipeline"
	"github.com/mentorboxai/api/internal/registry"
	"github.com/mentorboxai/api/internal/server"
	"github.com/mentorboxai/api/internal/service"
	ws "github.com/mentorboxai/api/internal/websocket"
	"github.com/mentorboxai/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("production", "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	redisOK := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisOK = false
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not available")
	}

	m := metrics.New()

	// LLM gateway and pipeline
	gen, err := client.NewTextGenerator(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.LLM.Provider).Msg("failed to initialize llm client")
	}

	stages := pipeline.NewStages(gen,
		pipeline.WithStageParams(pipeline.StageParamsFromConfig(cfg.LLM.Stages)),
		pipeline.WithMatcher(pipeline.DefaultMatcher()),
		pipeline.WithMetrics(m),
		pipeline.WithLogger(log),
	)
	orchestrator := pipeline.NewOrchestrator(stages, cfg.Pipeline.ValidationAttempts, cfg.Pipeline.FastValidationAttempts, log)

	artifacts, err := service.NewArtifactStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to initialize artifact store")
	}

	// Job registry
	var store registry.Store
	switch cfg.Registry.Backend {
	case "redis":
		if !redisOK {
			log.Fatal().Msg("redis registry backend selected but redis is unavailable")
		}
		store = registry.NewRedisStore(redisClient, cfg.Registry.TTL)
	default:
		memStore := registry.NewMemoryStore(cfg.Registry.TTL, log)
		go memStore.RunJanitor(ctx, cfg.Registry.SweepInterval)
		store = memStore
	}

	// Initialize WebSocket hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	opts := []service.Option{
		service.WithNotifier(hub),
		service.WithMetrics(m),
	}

	renderClient := client.NewRenderClient(&cfg.Render)
	if renderClient.IsConfigured() {
		opts = append(opts, service.WithRenderer(renderClient))
	} else {
		log.Info().Msg("render service not configured, auto_render jobs finish without video")
	}

	var asynqClient *asynq.Client
	if cfg.Worker.Enabled {
		asynqClient = asynq.NewClient(worker.RedisOpt(&cfg.Redis))
		defer asynqClient.Close()
		opts = append(opts, service.WithEnqueuer(asynqClient))
	}

	jobService := service.NewJobService(store, orchestrator, artifacts, log, opts...)

	// Start Asynq worker server
	if cfg.Worker.Enabled {
		srv := worker.NewServer(cfg, log)
		mux := worker.NewServeMux(worker.NewGenerateWorker(jobService, log))
		if err := srv.Start(mux); err != nil {
			log.Fatal().Err(err).Msg("failed to start worker server")
		}
		defer srv.Shutdown()
		log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker server started")
	}

	checks := map[string]handler.HealthChecker{}
	if renderClient.IsConfigured() {
		checks["renderer"] = renderClient
	}

	var limiterRedis *redis.Client
	if redisOK {
		limiterRedis = redisClient
	}

	app := server.NewApp(cfg, server.Deps{
		Jobs:    jobService,
		Hub:     hub,
		Metrics: m,
		Redis:   limiterRedis,
		Services: map[string]bool{
			"llm":      true,
			"redis":    redisOK,
			"renderer": renderClient.IsConfigured(),
			"r2":       cfg.Storage.Backend == "r2",
			"worker":   cfg.Worker.Enabled,
			"auth":     cfg.Auth.Enabled,
		},
		Checks: checks,
		Log:    log,
	})

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Info().
		Str("addr", addr).
		Str("provider", cfg.LLM.Provider).
		Str("registry", cfg.Registry.Backend).
		Bool("async", cfg.Worker.Enabled).
		Msg("server starting")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server error")
		stop()
		os.Exit(1)
	}
}
