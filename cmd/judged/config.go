package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"arbiter/internal/common/cache"
	"arbiter/internal/common/db"
	"arbiter/internal/common/mq"
	"arbiter/internal/common/storage"
	"arbiter/internal/judge/model"
	"arbiter/internal/judge/sandbox"
	"arbiter/internal/judge/service"
	"arbiter/pkg/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8086"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultVerdictTopic    = "judge.verdict.final"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// EventsConfig holds verdict event publishing settings.
type EventsConfig struct {
	VerdictTopic string `yaml:"verdictTopic"`
}

// AppConfig holds judged config.
type AppConfig struct {
	Server    ServerConfig              `yaml:"server"`
	Logger    logger.Config             `yaml:"logger"`
	Database  db.MySQLConfig            `yaml:"database"`
	Redis     cache.RedisConfig         `yaml:"redis"`
	MinIO     storage.MinIOConfig       `yaml:"minio"`
	Kafka     mq.KafkaConfig            `yaml:"kafka"`
	Sandbox   sandbox.DockerConfig      `yaml:"sandbox"`
	Layout    model.Layout              `yaml:"layout"`
	Pool      service.PoolConfig        `yaml:"pool"`
	Events    EventsConfig              `yaml:"events"`
	Languages map[string]model.Language `yaml:"languages"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Sandbox.Image == "" {
		return nil, fmt.Errorf("sandbox image is required")
	}
	if cfg.Layout.SubmissionRoot == "" || cfg.Layout.TestcaseRoot == "" {
		return nil, fmt.Errorf("layout roots are required")
	}
	if len(cfg.Languages) == 0 {
		return nil, fmt.Errorf("at least one language is required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Pool.Workers <= 0 || cfg.Pool.QueueSize <= 0 {
		defaults := service.DefaultPoolConfig()
		if cfg.Pool.Workers <= 0 {
			cfg.Pool.Workers = defaults.Workers
		}
		if cfg.Pool.QueueSize <= 0 {
			cfg.Pool.QueueSize = defaults.QueueSize
		}
	}
	if cfg.Events.VerdictTopic == "" {
		cfg.Events.VerdictTopic = defaultVerdictTopic
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
}
