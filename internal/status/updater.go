package status

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Iron-Ham/heist/internal/logging"
	"github.com/Iron-Ham/heist/internal/mailbox"
	"github.com/Iron-Ham/heist/internal/protocol"
)

// Updater keeps an ordered key/value status for one process and publishes
// it on every change.
type Updater struct {
	pid     int
	monitor int
	store   *Store
	reg     *mailbox.Registry
	logger  *logging.Logger

	mu     sync.Mutex
	keys   []string
	values map[string]string
}

// NewUpdater returns an Updater for pid. When monitor is not
// protocol.NoServer each change signals it; otherwise the status is logged.
// store may be nil, in which case nothing is written to disk.
func NewUpdater(pid int, store *Store, reg *mailbox.Registry, monitor int, logger *logging.Logger) *Updater {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Updater{
		pid:     pid,
		monitor: monitor,
		store:   store,
		reg:     reg,
		logger:  logger,
		values:  make(map[string]string),
	}
}

// Set updates key and publishes the whole status.
func (u *Updater) Set(key, value string) error {
	u.mu.Lock()
	if _, ok := u.values[key]; !ok {
		u.keys = append(u.keys, key)
	}
	u.values[key] = value
	text := u.textLocked()
	u.mu.Unlock()

	if u.store != nil {
		if err := u.store.Write(u.pid, text); err != nil {
			return err
		}
	}
	if u.monitor == protocol.NoServer {
		u.logger.Info(text)
		return nil
	}
	if u.store == nil {
		return fmt.Errorf("monitor %d needs a status store", u.monitor)
	}
	return protocol.WriteSignal(u.reg, u.monitor, u.pid, protocol.Status)
}

// Reset forgets every key.
func (u *Updater) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = nil
	u.values = make(map[string]string)
}

// String renders the status as "key: value" lines.
func (u *Updater) String() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.textLocked()
}

func (u *Updater) textLocked() string {
	lines := make([]string, 0, len(u.keys))
	for _, k := range u.keys {
		lines = append(lines, k+": "+u.values[k])
	}
	return strings.Join(lines, "\n")
}
