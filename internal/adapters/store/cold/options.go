package cold

import "github.com/podiumlabs/strata/pkg/logger"

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithLogger sets a custom logger for the adapter.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}
