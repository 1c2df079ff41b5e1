package plan

import "fmt"

// Tally counts planning decisions in the order they were first made.
type Tally struct {
	keys   []string
	counts map[string]int
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// Add increments key by n.
func (t *Tally) Add(key string, n int) {
	if _, ok := t.counts[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.counts[key] += n
}

// Count returns key's count.
func (t *Tally) Count(key string) int {
	return t.counts[key]
}

// Len returns the number of distinct keys.
func (t *Tally) Len() int {
	return len(t.keys)
}

// Merge adds every count in other to t.
func (t *Tally) Merge(other *Tally) {
	for _, k := range other.keys {
		t.Add(k, other.counts[k])
	}
}

// Lines renders each entry as "key (Nx)".
func (t *Tally) Lines() []string {
	lines := make([]string, 0, len(t.keys))
	for _, k := range t.keys {
		lines = append(lines, fmt.Sprintf("%s (%dx)", k, t.counts[k]))
	}
	return lines
}
