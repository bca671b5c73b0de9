package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-fulfillment/internal/events"
	"github.com/xenking/kart-fulfillment/internal/objectstore"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (FULFILL_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (FULFILL_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWT         JWTConfig
	ObjectStore objectstore.Config
	Kafka       events.Config
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// JWTConfig controls bearer token verification.
type JWTConfig struct {
	Secret string        `usage:"HS256 signing secret (FULFILL_JWT_SECRET)" flag:"jwt-secret"`
	Issuer string        `default:"kart-fulfillment" usage:"Expected iss claim; empty disables the check"`
	TTL    time.Duration `default:"24h" usage:"Lifetime of issued tokens"`
}

// RateLimitConfig controls the per-principal sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "FULFILL",
		Files:     []string{"config.yaml", "/etc/fulfill/config.yaml"},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	ac.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set FULFILL_DATABASE_URL or DATABASE_URL")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required: set FULFILL_JWT_SECRET")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps the platform-provided DATABASE_URL and PORT
// variables onto the FULFILL_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
