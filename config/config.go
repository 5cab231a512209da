package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	App struct {
		Name       string
		Port       string
		InstanceID string
		DevMode    bool
	}

	JWT struct {
		Secret string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Kafka struct {
		Brokers []string
		GroupID string
	}

	Platform struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	Judge struct {
		BaseURL string
		Timeout time.Duration
	}

	Session struct {
		TickInterval      time.Duration
		ExitSubmitTimeout time.Duration
		WorkspaceTTL      time.Duration
	}

	RateLimit struct {
		Limit  int
		Window time.Duration
	}
}

func Load(devMode bool) *Config {
	if devMode {
		if err := godotenv.Load(); err != nil {
			log.Warn().Err(err).Msg("Error loading .env file")
		}
	}

	cfg := &Config{}

	cfg.App.Name = getEnv("APP_NAME", "contest-service")
	cfg.App.Port = getEnv("PORT", "6001")
	cfg.App.InstanceID = getEnv("INSTANCE_ID", hostnameOr("contest-service-0"))
	cfg.App.DevMode = devMode

	cfg.JWT.Secret = getEnv("JWT_SECRET", "")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Kafka.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", "contest-service")

	cfg.Platform.BaseURL = getEnv("PLATFORM_API_URL", "http://localhost:8000/api")
	cfg.Platform.Token = getEnv("PLATFORM_API_TOKEN", "")
	cfg.Platform.Timeout = getEnvDuration("PLATFORM_API_TIMEOUT", 10*time.Second)

	cfg.Judge.BaseURL = getEnv("JUDGE_API_URL", cfg.Platform.BaseURL)
	cfg.Judge.Timeout = getEnvDuration("JUDGE_API_TIMEOUT", 30*time.Second)

	cfg.Session.TickInterval = getEnvDuration("SESSION_TICK_INTERVAL", time.Second)
	cfg.Session.ExitSubmitTimeout = getEnvDuration("SESSION_EXIT_SUBMIT_TIMEOUT", 3*time.Second)
	cfg.Session.WorkspaceTTL = getEnvDuration("WORKSPACE_TTL", 6*time.Hour)

	cfg.RateLimit.Limit = getEnvInt("RATE_LIMIT", 60)
	cfg.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", time.Minute)

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration in environment, using default")
		return fallback
	}
	return d
}

func hostnameOr(fallback string) string {
	name, err := os.Hostname()
	if err != nil {
		return fallback
	}
	return name
}
