package monitor

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/event"
	"github.com/Iron-Ham/heist/internal/logging"
	"github.com/Iron-Ham/heist/internal/protocol"
	"github.com/Iron-Ham/heist/internal/status"
)

// Script is one row of the board.
type Script struct {
	Name   string
	PID    int
	Status string
}

// Callback receives a board snapshot. The slice must not be modified.
type Callback func([]Script)

// Board tracks the latest status of every process that reported one.
type Board struct {
	store  *status.Store
	procs  cluster.Processes
	bus    *event.Bus
	logger *logging.Logger

	mu        sync.Mutex
	scripts   map[int]Script
	order     []int
	snapshot  []Script
	callbacks map[string]Callback
}

// Option configures a Board.
type Option func(*Board)

// WithBus publishes a StatusUpdatedEvent for every update.
func WithBus(bus *event.Bus) Option {
	return func(b *Board) { b.bus = bus }
}

// WithLogger sets the board's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Board) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBoard registers a STATUS handler on l. procs names the processes that
// report; it may be nil.
func NewBoard(l *protocol.Listener, store *status.Store, procs cluster.Processes, opts ...Option) (*Board, error) {
	b := &Board{
		store:     store,
		procs:     procs,
		logger:    logging.NopLogger(),
		scripts:   make(map[int]Script),
		callbacks: make(map[string]Callback),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent("monitor")

	if err := l.RegisterHandler(protocol.Status, b.update); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Board) update(pid int) {
	text, err := b.store.Read(pid)
	if err != nil {
		b.logger.Warn("cannot read status", "pid", pid, "error", err)
		return
	}

	b.mu.Lock()
	script := Script{Name: b.nameLocked(pid), PID: pid, Status: text}
	if _, ok := b.scripts[pid]; !ok {
		b.order = append(b.order, pid)
	}
	b.scripts[pid] = script
	snapshot := make([]Script, 0, len(b.order))
	for _, id := range b.order {
		snapshot = append(snapshot, b.scripts[id])
	}
	b.snapshot = snapshot
	callbacks := make([]Callback, 0, len(b.callbacks))
	for _, cb := range b.callbacks {
		callbacks = append(callbacks, cb)
	}
	b.mu.Unlock()

	for _, cb := range callbacks {
		cb(snapshot)
	}
	if b.bus != nil {
		b.bus.Publish(event.NewStatusUpdatedEvent(pid, script.Name, text))
	}
}

// nameLocked keeps the name a process was first shown under, so it
// survives the process exiting.
func (b *Board) nameLocked(pid int) string {
	if old, ok := b.scripts[pid]; ok {
		return old.Name
	}
	if b.procs != nil {
		if p, ok := b.procs.RunningScript(pid); ok {
			return fmt.Sprintf("%s - %d", p.Filename, pid)
		}
	}
	return fmt.Sprint(pid)
}

// Scripts returns the latest snapshot, in first-report order.
func (b *Board) Scripts() []Script {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.snapshot)
}

// Subscribe calls cb with every new snapshot. A second subscription under
// the same key replaces the first.
func (b *Board) Subscribe(key string, cb Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks[key] = cb
}

// Unsubscribe removes the callback registered under key.
func (b *Board) Unsubscribe(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.callbacks, key)
}
