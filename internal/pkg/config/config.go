package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	// LivenessTTL is the maximum heartbeat age for an instance to count as
	// online. The boundary is inclusive.
	LivenessTTL time.Duration `env:"LIVENESS_TTL, default=300s"`

	// Outbound call budgets. Forward covers opaque pass-through traffic;
	// snapshot and access checks are short reads that must fail fast.
	ForwardTimeout  time.Duration `env:"FORWARD_TIMEOUT,  default=15s"`
	SnapshotTimeout time.Duration `env:"SNAPSHOT_TIMEOUT, default=4s"`
	AccessTimeout   time.Duration `env:"ACCESS_TIMEOUT,   default=3s"`

	// AccessDefault decides what happens when a backend's allow-list is empty
	// or unreachable: "allow" (fail-open, source-compatible) or "deny"
	// (fail-closed). This is a security policy choice; it is deliberately a
	// config default rather than a hard-coded one.
	AccessDefault string `env:"ACCESS_DEFAULT, default=allow"`

	// CacheTTL bounds how stale a Redis-cached instance record may be.
	CacheTTL time.Duration `env:"CACHE_TTL, default=5s"`

	Sweep SweepConfig
	Mongo MongoConfig
	Redis RedisConfig
}

// SweepConfig controls the optional background removal of long-dead records.
// The sweep is decoupled from any request path and disabled by default.
type SweepConfig struct {
	Enabled  bool          `env:"SWEEP_ENABLED,  default=false"`
	Interval time.Duration `env:"SWEEP_INTERVAL, default=10m"`
	After    time.Duration `env:"SWEEP_AFTER,    default=24h"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=expose_gateway"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
