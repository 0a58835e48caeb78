package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/recordkv/kv/minio"
	"github.com/hupe1980/recordkv/kv/redis"
)

// Config is the CLI configuration. It is read from a YAML file and
// overlaid by flags that were set explicitly.
type Config struct {
	Namespace   string `yaml:"namespace"`
	Area        string `yaml:"area"`
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	Codec       string `yaml:"codec"`
	CacheSize   int    `yaml:"cache_size"`
	NoQuota     bool   `yaml:"no_quota"`
	Ordered     bool   `yaml:"ordered_delete"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	// Backend specific settings.
	RedisConfig redis.Config `yaml:"redis"`
	MinIO       minio.Config `yaml:"minio"`
	S3          S3Config     `yaml:"s3"`
	DynamoDB    DynamoConfig `yaml:"dynamodb"`
}

// S3Config selects the bucket of the s3 backend. Credentials and region come
// from the default AWS configuration chain.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// DynamoConfig selects the table of the dynamodb backend.
type DynamoConfig struct {
	Table string `yaml:"table"`
}

func defaultConfig() Config {
	return Config{
		Namespace: "records",
		Area:      "local",
		Backend:   "memory",
		Dir:       "./data",
		Codec:     "go-json",
		LogLevel:  "info",
		RedisConfig: redis.Config{
			Address: "localhost:6379",
			Prefix:  "recordkv:",
		},
		MinIO: minio.Config{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "recordkv",
		},
		DynamoDB: DynamoConfig{Table: "recordkv"},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
