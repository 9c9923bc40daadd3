package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

// Pipeline stage names used for per-stage LLM overrides
const (
	StageUnderstand = "understand"
	StagePlan       = "plan"
	StageVerify     = "verify"
	StageGenerate   = "generate"
	StageRefine     = "refine"
	StageValidate   = "validate"
)

// Stages lists every stage that accepts llm.stages.<stage> overrides.
var Stages = []string{StageUnderstand, StagePlan, StageVerify, StageGenerate, StageRefine, StageValidate}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	LLM       LLMConfig
	Bedrock   BedrockConfig
	Pipeline  PipelineConfig
	Registry  RegistryConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	R2        R2Config
	Render    RenderConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type AuthConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	GeneratePerHour int
}

// StageParams overrides the LLM defaults for a single stage. Zero fields inherit.
type StageParams struct {
	MaxTokens   int
	Temperature float64
	Model       string
}

type LLMConfig struct {
	Provider    string // groq | openai | bedrock
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     int // seconds
	Stages      map[string]StageParams
}

type BedrockConfig struct {
	Region string
	Model  string
}

type PipelineConfig struct {
	ValidationAttempts     int
	FastValidationAttempts int
}

type RegistryConfig struct {
	Backend       string // memory | redis
	TTL           time.Duration
	SweepInterval time.Duration
}

type WorkerConfig struct {
	Enabled     bool
	Concurrency int
}

type StorageConfig struct {
	Backend   string // local | r2
	OutputDir string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type RenderConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

func Load() (*Config, error) {
	// Local development convenience; missing .env is fine
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("LLM_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("auth.enabled", "AUTH_ENABLED")
	_ = viper.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = viper.BindEnv("llm.provider", "LLM_PROVIDER")
	_ = viper.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = viper.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = viper.BindEnv("llm.model", "LLM_MODEL")
	_ = viper.BindEnv("llm.max_tokens", "LLM_MAX_TOKENS")
	_ = viper.BindEnv("llm.temperature", "LLM_TEMPERATURE")
	_ = viper.BindEnv("llm.timeout", "LLM_TIMEOUT")
	_ = viper.BindEnv("bedrock.region", "BEDROCK_REGION")
	_ = viper.BindEnv("bedrock.model", "BEDROCK_MODEL")
	_ = viper.BindEnv("pipeline.validation_attempts", "PIPELINE_VALIDATION_ATTEMPTS")
	_ = viper.BindEnv("pipeline.fast_validation_attempts", "PIPELINE_FAST_VALIDATION_ATTEMPTS")
	_ = viper.BindEnv("registry.backend", "REGISTRY_BACKEND")
	_ = viper.BindEnv("registry.ttl", "REGISTRY_TTL")
	_ = viper.BindEnv("registry.sweep_interval", "REGISTRY_SWEEP_INTERVAL")
	_ = viper.BindEnv("worker.enabled", "WORKER_ENABLED")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = viper.BindEnv("storage.output_dir", "STORAGE_OUTPUT_DIR")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("render.service_url", "RENDER_SERVICE_URL")
	_ = viper.BindEnv("render.timeout", "RENDER_SERVICE_TIMEOUT")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("ratelimit.generate_per_hour", 20)

	// LLM defaults
	viper.SetDefault("llm.provider", "groq")
	viper.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("llm.model", "llama-3.3-70b-versatile")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.temperature", 0.01)
	viper.SetDefault("llm.timeout", 120)
	viper.SetDefault("llm.stages.generate.temperature", 0.2)
	viper.SetDefault("llm.stages.generate.max_tokens", 8192)
	viper.SetDefault("llm.stages.refine.max_tokens", 8192)
	viper.SetDefault("llm.stages.validate.max_tokens", 8192)

	// Bedrock defaults
	viper.SetDefault("bedrock.region", "us-east-1")
	viper.SetDefault("bedrock.model", "anthropic.claude-3-sonnet-20240229-v1:0")

	// Pipeline defaults
	viper.SetDefault("pipeline.validation_attempts", 3)
	viper.SetDefault("pipeline.fast_validation_attempts", 1)

	// Registry defaults
	viper.SetDefault("registry.backend", "memory")
	viper.SetDefault("registry.ttl", "24h")
	viper.SetDefault("registry.sweep_interval", "10m")

	// Worker defaults
	viper.SetDefault("worker.enabled", false)
	viper.SetDefault("worker.concurrency", 4)

	// Storage defaults
	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.output_dir", "output")

	// Render service defaults
	viper.SetDefault("render.timeout", 300)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	stages := make(map[string]StageParams, len(Stages))
	for _, name := range Stages {
		prefix := "llm.stages." + name + "."
		stages[name] = StageParams{
			MaxTokens:   viper.GetInt(prefix + "max_tokens"),
			Temperature: viper.GetFloat64(prefix + "temperature"),
			Model:       viper.GetString(prefix + "model"),
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		Auth: AuthConfig{
			Enabled: viper.GetBool("auth.enabled"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
		},
		LLM: LLMConfig{
			Provider:    viper.GetString("llm.provider"),
			APIKey:      viper.GetString("llm.api_key"),
			BaseURL:     viper.GetString("llm.base_url"),
			Model:       viper.GetString("llm.model"),
			MaxTokens:   viper.GetInt("llm.max_tokens"),
			Temperature: viper.GetFloat64("llm.temperature"),
			Timeout:     viper.GetInt("llm.timeout"),
			Stages:      stages,
		},
		Bedrock: BedrockConfig{
			Region: viper.GetString("bedrock.region"),
			Model:  viper.GetString("bedrock.model"),
		},
		Pipeline: PipelineConfig{
			ValidationAttempts:     viper.GetInt("pipeline.validation_attempts"),
			FastValidationAttempts: viper.GetInt("pipeline.fast_validation_attempts"),
		},
		Registry: RegistryConfig{
			Backend:       viper.GetString("registry.backend"),
			TTL:           viper.GetDuration("registry.ttl"),
			SweepInterval: viper.GetDuration("registry.sweep_interval"),
		},
		Worker: WorkerConfig{
			Enabled:     viper.GetBool("worker.enabled"),
			Concurrency: viper.GetInt("worker.concurrency"),
		},
		Storage: StorageConfig{
			Backend:   viper.GetString("storage.backend"),
			OutputDir: viper.GetString("storage.output_dir"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Render: RenderConfig{
			ServiceURL: viper.GetString("render.service_url"),
			Timeout:    viper.GetInt("render.timeout"),
		},
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
