package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// Document store
	StoreBackend  string        `yaml:"store_backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	DocumentTTL   time.Duration `yaml:"document_ttl"`

	// Resolver stats window
	StatsWindow time.Duration `yaml:"stats_window"`

	// PDF outline walk limit
	MaxOutlineItems int `yaml:"max_outline_items"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:            "8090",
		WorkerCount:     4,
		MaxQueueSize:    100,
		MaxUploadBytes:  52428800, // 50MB
		JobTTL:          1 * time.Hour,
		StoreBackend:    BackendMemory,
		RedisAddr:       "localhost:6379",
		DocumentTTL:     24 * time.Hour,
		StatsWindow:     1 * time.Hour,
		MaxOutlineItems: 65536,
	}
}

// Load reads the YAML file named by BOOKMARKD_CONFIG, if any, over the
// defaults. Environment variables override both.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("BOOKMARKD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("BOOKMARKD_API_KEY", cfg.APIKey)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	cfg.StoreBackend = envOr("STORE_BACKEND", cfg.StoreBackend)
	cfg.RedisAddr = envOr("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOr("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)
	cfg.DocumentTTL = envDuration("DOCUMENT_TTL", cfg.DocumentTTL)

	cfg.StatsWindow = envDuration("STATS_WINDOW", cfg.StatsWindow)
	cfg.MaxOutlineItems = envInt("MAX_OUTLINE_ITEMS", cfg.MaxOutlineItems)

	def := Default()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.DocumentTTL < 0 {
		cfg.DocumentTTL = 0
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = def.StatsWindow
	}
	if cfg.MaxOutlineItems <= 0 {
		cfg.MaxOutlineItems = def.MaxOutlineItems
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("BOOKMARKD_API_KEY is required")
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
