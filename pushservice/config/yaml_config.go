package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlStorageConfig struct {
	Driver         string `yaml:"driver"`
	DatabaseURL    string `yaml:"database_url"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleTime    string `yaml:"max_idle_time"`
	ConnectTimeout string `yaml:"connect_timeout"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
	TTL      string `yaml:"ttl"`
}

type YamlFirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// YamlConfig mirrors the raw local.yaml file.
type YamlConfig struct {
	ProjectID              string             `yaml:"project_id"`
	ListenAddr             string             `yaml:"listen_addr"`
	IdentityURL            string             `yaml:"identity_url"`
	TopicID                string             `yaml:"topic_id"`
	SubscriptionID         string             `yaml:"subscription_id"`
	SubscriptionDLQTopicID string             `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                `yaml:"num_pipeline_workers"`
	HistoryDefaultLimit    int                `yaml:"history_default_limit"`
	CorsConfig             YamlCorsConfig     `yaml:"cors"`
	StorageConfig          YamlStorageConfig  `yaml:"storage"`
	RedisConfig            YamlRedisConfig    `yaml:"redis"`
	FirebaseConfig         YamlFirebaseConfig `yaml:"firebase"`
}

// NewConfigFromYaml converts the YamlConfig into a base Config. Durations are
// Go duration strings ("30s"); an unparseable one is an error.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	maxIdle, err := parseDuration("storage.max_idle_time", baseCfg.StorageConfig.MaxIdleTime)
	if err != nil {
		return nil, err
	}
	connectTimeout, err := parseDuration("storage.connect_timeout", baseCfg.StorageConfig.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("redis.ttl", baseCfg.RedisConfig.TTL)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ProjectID:              baseCfg.ProjectID,
		ListenAddr:             baseCfg.ListenAddr,
		IdentityURL:            baseCfg.IdentityURL,
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
		HistoryDefaultLimit:    baseCfg.HistoryDefaultLimit,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Storage: StorageConfig{
			Driver:         baseCfg.StorageConfig.Driver,
			DatabaseURL:    baseCfg.StorageConfig.DatabaseURL,
			MaxOpenConns:   baseCfg.StorageConfig.MaxOpenConns,
			MaxIdleTime:    maxIdle,
			ConnectTimeout: connectTimeout,
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      cacheTTL,
		},
		Firebase: FirebaseConfig{
			CredentialsFile: baseCfg.FirebaseConfig.CredentialsFile,
		},
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"storage_driver", cfg.Storage.Driver,
		"subscription_id", cfg.SubscriptionID,
	)

	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
