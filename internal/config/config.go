package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr string

	DBDriver string // "mysql" or "sqlite"
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// External conversation engine (OpenAI Assistants API)
	OpenAIAPIKey      string
	OpenAIAssistantID string
	OpenAIBaseURL     string

	// Run polling
	RunPollInterval time.Duration
	RunTimeout      time.Duration

	// rabbitMQ (optional; empty URL disables event publishing)
	RabbitURL   string
	RabbitQueue string
}

// Load reads configuration from the environment. The engine credentials are
// required; everything else has a development default.
func Load() (Config, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return Config{}, errors.New("OPENAI_API_KEY is required")
	}
	assistantID := os.Getenv("OPENAI_ASSISTANT_ID")
	if assistantID == "" {
		return Config{}, errors.New("OPENAI_ASSISTANT_ID is required")
	}

	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":8080"
	}

	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "mysql"
	}
	if driver != "mysql" && driver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported DB_DRIVER=%q", driver)
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		switch driver {
		case "sqlite":
			dsn = "hilo.db"
		default:
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
				"app", "apppass", "127.0.0.1", "3306", "hilo",
			)
		}
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	pollInterval := 1 * time.Second
	if v := os.Getenv("RUN_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RUN_POLL_INTERVAL: %w", err)
		}
		pollInterval = d
	}

	runTimeout := 120 * time.Second
	if v := os.Getenv("RUN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RUN_TIMEOUT: %w", err)
		}
		runTimeout = d
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "chat_exchanges"
	}

	return Config{
		ListenAddr: listen,

		DBDriver: driver,
		DBDSN:    dsn,

		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		OpenAIAPIKey:      apiKey,
		OpenAIAssistantID: assistantID,
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),

		RunPollInterval: pollInterval,
		RunTimeout:      runTimeout,

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,
	}, nil
}
