package plan

import (
	"time"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/logging"
)

// Defaults for the batching loop.
const (
	DefaultMaxAwaits         = 1_000_000
	DefaultYieldInterval     = 20 * time.Millisecond
	DefaultPackRatio         = 0.5
	DefaultMaxHackCandidates = 1_000_000
)

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger for operator-facing planning messages.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

// WithScripts overrides the worker program names.
func WithScripts(scripts cluster.Scripts) Option {
	return func(p *Planner) {
		p.scripts = scripts
	}
}

// WithMaxAwaits stops batching once this many workers are planned.
func WithMaxAwaits(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxAwaits = n
		}
	}
}

// WithYieldInterval sets how long batching runs between yields.
func WithYieldInterval(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.yieldInterval = d
		}
	}
}

// WithPackRatio sets the share of total capacity one batch may need.
func WithPackRatio(r float64) Option {
	return func(p *Planner) {
		if r > 0 && r <= 1 {
			p.packRatio = r
		}
	}
}

// WithMaxHackCandidates bounds the hacks-per-batch search.
func WithMaxHackCandidates(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxHackCandidates = n
		}
	}
}
