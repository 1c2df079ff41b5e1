package mailbox

import "sync"

// NoLimit is the capacity of an unbounded mailbox.
const NoLimit = -1

// NullData is returned by Read and Peek on an empty mailbox.
const NullData = "NULL PORT DATA"

// Mailbox is a FIFO queue with an optional capacity limit.
type Mailbox struct {
	mu    sync.Mutex
	limit int
	data  []any
	next  chan struct{}
}

// New creates a Mailbox holding at most limit values, or any number of
// values when limit is NoLimit.
func New(limit int) *Mailbox {
	if limit < 0 {
		limit = NoLimit
	}
	return &Mailbox{limit: limit}
}

// Limit returns the capacity limit.
func (m *Mailbox) Limit() int { return m.limit }

// Len returns the number of queued values.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Empty reports whether no values are queued.
func (m *Mailbox) Empty() bool {
	return m.Len() == 0
}

// Full reports whether a TryWrite would fail.
func (m *Mailbox) Full() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullLocked()
}

func (m *Mailbox) fullLocked() bool {
	return m.limit != NoLimit && len(m.data) >= m.limit
}

// room returns how many values can be written without eviction.
func (m *Mailbox) room() int {
	if m.limit == NoLimit {
		return int(^uint(0) >> 1)
	}
	return m.limit - len(m.data)
}

// Write appends v, evicting the oldest values while the mailbox is full.
// It returns the evicted values in the order they were queued. A mailbox
// with limit 0 never holds anything; v itself is reported as evicted.
func (m *Mailbox) Write(v any) []any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limit == 0 {
		m.notifyLocked()
		return []any{v}
	}

	var evicted []any
	for m.fullLocked() {
		evicted = append(evicted, m.data[0])
		m.data[0] = nil
		m.data = m.data[1:]
	}
	m.data = append(m.data, v)
	m.notifyLocked()
	return evicted
}

// TryWrite appends v unless the mailbox is full.
func (m *Mailbox) TryWrite(v any) bool {
	return m.TryWriteAll(v)
}

// TryWriteAll appends every value, or none of them if they do not all fit.
// A single wake-up is delivered for the whole group.
func (m *Mailbox) TryWriteAll(vs ...any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(vs) > m.room() {
		return false
	}
	if len(vs) == 0 {
		return true
	}
	m.data = append(m.data, vs...)
	m.notifyLocked()
	return true
}

// Read removes and returns the oldest value.
func (m *Mailbox) Read() (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.data) == 0 {
		return NullData, false
	}
	v := m.data[0]
	m.data[0] = nil
	m.data = m.data[1:]
	return v, true
}

// Peek returns the oldest value without removing it.
func (m *Mailbox) Peek() (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.data) == 0 {
		return NullData, false
	}
	return m.data[0], true
}

// Clear drops every queued value. Pending NextWrite channels stay open.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
}

// NextWrite returns a channel closed by the next successful write.
func (m *Mailbox) NextWrite() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.next == nil {
		m.next = make(chan struct{})
	}
	return m.next
}

// notifyLocked wakes every NextWrite caller so far. Calls made after this
// point get a fresh channel and wait for the following write.
func (m *Mailbox) notifyLocked() {
	if m.next != nil {
		close(m.next)
		m.next = nil
	}
}
