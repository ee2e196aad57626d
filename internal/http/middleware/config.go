package middleware

import (
	"fmt"

	"github.com/jmehdipour/odoo-gateway/internal/config"
	"go.uber.org/zap"
)

// NewPipelineFromConfig builds the gates enabled in cfg in their fixed order:
// host, rate_limit, body_size, cors, security_headers. A nil store falls back
// to an in-process MemoryStore.
func NewPipelineFromConfig(cfg config.APIConfig, store Store, keyPrefix string, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var gates []Gate
	if hf := NewHostFilter(cfg.AllowedHosts); hf != nil {
		gates = append(gates, hf)
	}
	if cfg.EnableRateLimit {
		limit, err := ParseLimit(cfg.RateLimitDefault)
		if err != nil {
			return nil, fmt.Errorf("api.rate_limit_default: %w", err)
		}
		if store == nil {
			store = NewMemoryStore()
		}
		opts := []RateLimitOption{WithRateLimitLogger(log)}
		if keyPrefix != "" {
			opts = append(opts, WithKeyPrefix(keyPrefix))
		}
		gates = append(gates, NewRateLimit(limit, store, opts...))
	}
	if cfg.EnableMaxBodySize {
		if cfg.MaxRequestBodyBytes <= 0 {
			return nil, fmt.Errorf("api.max_request_body_bytes must be positive, got %d", cfg.MaxRequestBodyBytes)
		}
		gates = append(gates, NewBodySize(cfg.MaxRequestBodyBytes))
	}
	if len(cfg.CORSOrigins) > 0 {
		gates = append(gates, NewCORS(cfg.CORSOrigins))
	}
	if cfg.EnableSecurityHeaders {
		gates = append(gates, NewSecurityHeaders())
	}

	p := NewPipeline(log, gates...)
	log.Info("hardening pipeline", zap.Strings("gates", p.Names()))
	return p, nil
}
