package hot

import "github.com/podiumlabs/strata/pkg/logger"

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithKeyPrefix overrides the key namespace shared by record and rank keys.
func WithKeyPrefix(prefix string) Option {
	return func(a *Adapter) {
		if prefix != "" {
			a.prefix = prefix
		}
	}
}

// WithScanPageSize bounds the page size of cleanup/migration SCANs.
func WithScanPageSize(n int64) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.scanPageSize = n
		}
	}
}

// WithLogger sets a custom logger for the adapter.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}
