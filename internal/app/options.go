package engine

import (
	"time"

	"github.com/podiumlabs/strata/internal/domain/retention"
	"github.com/podiumlabs/strata/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRetentionPolicy sets the subscription-tier retention policy.
func WithRetentionPolicy(p *retention.Policy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithMigrationBatchSize caps entries demoted per migration run.
func WithMigrationBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.migrationBatchSize = n
		}
	}
}

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
