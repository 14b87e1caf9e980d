package opaqued

import (
	"errors"
	"time"
)

// RateLimitConfig tunes the per-(identifier, endpoint) sliding window.
type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

// Config holds engine tuning parameters. Zero values are rejected by Build;
// start from DefaultConfig and override.
type Config struct {
	// LoginStateTTL bounds the window between login start and finish. Long
	// enough for a network round trip, short enough to cap replay exposure
	// and state-store bloat.
	LoginStateTTL time.Duration

	RateLimit RateLimitConfig
}

// DefaultConfig returns the production defaults: 60-second login state TTL
// and 5 requests per 60-second window.
func DefaultConfig() Config {
	return Config{
		LoginStateTTL: 60 * time.Second,
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 5,
			Window:      60 * time.Second,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.LoginStateTTL < 5*time.Second || cfg.LoginStateTTL > 5*time.Minute {
		return errors.New("config: LoginStateTTL must be between 5s and 5m")
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.MaxRequests < 1 {
			return errors.New("config: RateLimit.MaxRequests must be at least 1")
		}
		if cfg.RateLimit.Window < time.Second {
			return errors.New("config: RateLimit.Window must be at least 1s")
		}
	}
	return nil
}
