// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreConfig selects an S3-compatible object store as the source for the
// tileset definition and the optional pre-authored SQL file. When Enabled is
// false both are read from the local filesystem.
type StoreConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Config holds everything the composition root needs to boot the service.
type Config struct {
	// HTTP
	ListenAddr string
	// PublicHost/PublicPort are advertised in the metadata document's
	// tiles URL template; they may differ from ListenAddr behind a proxy.
	PublicHost string
	PublicPort int

	// Database
	DSN             string
	PoolMaxConns    int32
	PoolMinConns    int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// Tileset / query source
	TilesetPath string
	SQLPath     string // optional: pre-authored tile query, skips generation
	MaskLayer   string
	MaskZoom    int

	Store StoreConfig

	// Observability
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

// FromEnv builds a Config from POSTSERVE_* environment variables,
// applying defaults suitable for local development.
func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:      getenv("POSTSERVE_ADDR", ":8090"),
		PublicHost:      getenv("POSTSERVE_PUBLIC_HOST", "localhost"),
		PublicPort:      getint("POSTSERVE_PUBLIC_PORT", 8090),
		DSN:             getenv("POSTSERVE_DSN", ""),
		PoolMaxConns:    int32(getint("POSTSERVE_POOL_MAX_CONNS", 25)),
		PoolMinConns:    int32(getint("POSTSERVE_POOL_MIN_CONNS", 5)),
		MaxConnLifetime: getduration("POSTSERVE_POOL_MAX_CONN_LIFETIME", 30*time.Minute),
		MaxConnIdleTime: getduration("POSTSERVE_POOL_MAX_CONN_IDLE_TIME", 5*time.Minute),
		ConnectTimeout:  getduration("POSTSERVE_CONNECT_TIMEOUT", 10*time.Second),
		TilesetPath:     getenv("POSTSERVE_TILESET", ""),
		SQLPath:         getenv("POSTSERVE_SQL_FILE", ""),
		MaskLayer:       getenv("POSTSERVE_MASK_LAYER", ""),
		MaskZoom:        getint("POSTSERVE_MASK_ZOOM", 8),
		Store: StoreConfig{
			Enabled:   getbool("POSTSERVE_STORE_ENABLED", false),
			Endpoint:  getenv("POSTSERVE_STORE_ENDPOINT", "localhost:9000"),
			AccessKey: getenv("POSTSERVE_STORE_ACCESS_KEY", ""),
			SecretKey: getenv("POSTSERVE_STORE_SECRET_KEY", ""),
			Bucket:    getenv("POSTSERVE_STORE_BUCKET", ""),
			UseSSL:    getbool("POSTSERVE_STORE_SSL", false),
		},
		LogLevel:       getenv("POSTSERVE_LOG_LEVEL", "info"),
		LogFormat:      getenv("POSTSERVE_LOG_FORMAT", "json"),
		MetricsEnabled: getbool("POSTSERVE_METRICS", true),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DSN == "" {
		return fmt.Errorf("POSTSERVE_DSN is required")
	}
	// The tileset definition is required even when a pre-authored SQL file is
	// supplied: metadata introspection walks the tileset's layers.
	if c.TilesetPath == "" {
		return fmt.Errorf("POSTSERVE_TILESET is required")
	}
	if c.Store.Enabled && c.Store.Bucket == "" {
		return fmt.Errorf("POSTSERVE_STORE_BUCKET is required when the object store is enabled")
	}
	if c.PoolMaxConns < 1 {
		return fmt.Errorf("POSTSERVE_POOL_MAX_CONNS must be at least 1")
	}
	return nil
}

// --- env helpers ---

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getint(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
