package mailbox

import (
	"sort"
	"sync"

	"github.com/Iron-Ham/heist/internal/logging"
)

// DefaultCapacity is the limit used when no WithCapacity option is given.
const DefaultCapacity = 50

// Registry maps process identities to their mailboxes. Mailboxes are
// created on first use so a signal can be written before its receiver
// starts listening.
type Registry struct {
	mu        sync.Mutex
	capacity  int
	mailboxes map[int]*Mailbox
	logger    *logging.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		capacity:  DefaultCapacity,
		mailboxes: make(map[int]*Mailbox),
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle returns the mailbox owned by id, creating it if needed.
func (r *Registry) Handle(id int) *Mailbox {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mailboxes[id]
	if !ok {
		m = New(r.capacity)
		r.mailboxes[id] = m
		r.logger.Debug("mailbox created", "id", id, "limit", m.Limit())
	}
	return m
}

// Remove discards the mailbox owned by id, if any.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mailboxes, id)
}

// IDs returns the identities that currently own a mailbox, ascending.
func (r *Registry) IDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int, 0, len(r.mailboxes))
	for id := range r.mailboxes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
