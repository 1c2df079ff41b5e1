package mailbox

import "github.com/Iron-Ham/heist/internal/logging"

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity sets the limit of every mailbox the registry creates.
func WithCapacity(limit int) Option {
	return func(r *Registry) {
		r.capacity = limit
	}
}

// WithLogger sets the logger used to trace mailbox creation.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}
