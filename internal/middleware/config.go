package middleware

import (
	"log/slog"

	"github.com/brattlof/roster/internal/app/config"
)

// FromConfig builds a registry holding the middleware enabled in cfg.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry(logger)

	h := cfg.Middleware.Headers
	if h.Enabled {
		if err := reg.Register(NewHeaders(h.Add, h.Remove, h.Override)); err != nil {
			return nil, err
		}
	}

	rl := cfg.Middleware.RateLimit
	if rl.Enabled {
		if err := reg.Register(NewRateLimit(rl.Limit, cfg.RateLimitWindow(), cfg.RateLimitCleanup())); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
