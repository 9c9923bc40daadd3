package worker

import (
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/service"
)

// RedisOpt builds the asynq connection options from the redis config.
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewServer creates the asynq server that consumes the generate queue.
func NewServer(cfg *config.Config, log logger.Logger) *asynq.Server {
	concurrency := cfg.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return asynq.NewServer(
		RedisOpt(&cfg.Redis),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				service.QueueGenerate: 1,
			},
			LogLevel: asynqLogLevel(cfg.Server.LogLevel),
			Logger:   newAsynqLogger(log),
		},
	)
}

// NewServeMux routes generation tasks to w.
func NewServeMux(w *GenerateWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	w.Register(mux)
	return mux
}

func asynqLogLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return asynq.DebugLevel
	case "warn":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}

// asynqLogger routes asynq's internal logging through zerolog
type asynqLogger struct {
	log logger.Logger
}

func newAsynqLogger(log logger.Logger) *asynqLogger {
	l := log.With().Str("component", "asynq").Logger()
	return &asynqLogger{log: l}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
