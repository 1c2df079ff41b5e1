package cluster

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Filter matches hostnames against exclusion globs.
type Filter struct {
	patterns []string
	globs    []glob.Glob
}

// NewFilter compiles patterns. A nil Filter excludes nothing.
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{patterns: patterns}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

// Excluded reports whether hostname matches any pattern.
func (f *Filter) Excluded(hostname string) bool {
	if f == nil {
		return false
	}
	for _, g := range f.globs {
		if g.Match(hostname) {
			return true
		}
	}
	return false
}
