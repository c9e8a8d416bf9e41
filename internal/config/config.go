// Package config reads engine configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/CollabMarket/collab_engine/pkg/logger"
)

// Config is the full engine configuration.
type Config struct {
	Supabase Supabase
	Actor    Actor
	Server   Server
	Sync     Sync
	Fulfill  Fulfill
	Logging  logger.LoggingConfig

	// BucketMappingFile optionally points at a YAML file overriding the
	// content-type grouping used by the insights dashboard.
	BucketMappingFile string `env:"INSIGHTS_BUCKET_MAPPING_FILE"`
}

// Supabase locates the remote data store.
type Supabase struct {
	URL    string `env:"SUPABASE_URL,required"`
	APIKey string `env:"SUPABASE_ANON_KEY,required"`
}

// Actor identifies the local user the engine acts for.
type Actor struct {
	ID   string `env:"ACTOR_ID,required"`
	Role string `env:"ACTOR_ROLE,default=business"`
}

// Server configures the REST listener.
type Server struct {
	Addr string `env:"HTTP_ADDR,default=:8080"`
}

// Sync tunes the realtime synchronizer.
type Sync struct {
	ResyncSchedule string `env:"SYNC_RESYNC_SCHEDULE,default=@every 5m"`
}

// Fulfill tunes the paid-request completion runner.
type Fulfill struct {
	Delay       time.Duration `env:"FULFILL_DELAY,default=5s"`
	Interval    time.Duration `env:"FULFILL_INTERVAL,default=1s"`
	AutoFulfill bool          `env:"FULFILL_AUTO,default=false"`
}

// Load reads configuration from the environment. A .env file is honored when
// present but never required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Logging = logger.LoggingConfig{
		Level:  getenv("LOG_LEVEL", "info"),
		Format: getenv("LOG_FORMAT", "text"),
		Output: getenv("LOG_OUTPUT", "stdout"),
	}
	return &cfg, nil
}

// LoadBucketMapping parses the YAML content-type grouping file. Keys are
// service types, values are dashboard bucket names.
func LoadBucketMapping(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read bucket mapping: %w", err)
	}
	var doc struct {
		Buckets map[string]string `yaml:"buckets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse bucket mapping: %w", err)
	}
	if len(doc.Buckets) == 0 {
		return nil, fmt.Errorf("config: bucket mapping %s defines no buckets", path)
	}
	return doc.Buckets, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
