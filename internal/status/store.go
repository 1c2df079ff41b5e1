// Package status carries free-form status text from long-running processes
// to whoever displays it. The text lives in a side file keyed by the
// writer's identity; a STATUS signal only announces that it changed.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/heist/internal/errors"
)

// RunDir is the directory, under the store root, holding status files.
const RunDir = "run"

// Store reads and writes status side files.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore returns a Store rooted at root on fs.
func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// Dir returns the directory holding the status files.
func (s *Store) Dir() string {
	return filepath.Join(s.root, RunDir)
}

// Path returns pid's status file.
func (s *Store) Path(pid int) string {
	return filepath.Join(s.Dir(), strconv.Itoa(pid)+".txt")
}

// Write replaces pid's status text.
func (s *Store) Write(pid int, text string) error {
	if err := s.fs.MkdirAll(s.Dir(), 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.Path(pid), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write status for %d: %w", pid, err)
	}
	return nil
}

// Read returns pid's status text.
func (s *Store) Read(pid int) (string, error) {
	data, err := afero.ReadFile(s.fs, s.Path(pid))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFoundError("status", strconv.Itoa(pid)).WithCause(err)
		}
		return "", fmt.Errorf("read status for %d: %w", pid, err)
	}
	return string(data), nil
}

// Remove deletes pid's status file, if any.
func (s *Store) Remove(pid int) error {
	err := s.fs.Remove(s.Path(pid))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove status for %d: %w", pid, err)
	}
	return nil
}

// Entry is one status file.
type Entry struct {
	PID     int
	Text    string
	ModTime time.Time
}

// List returns every status file, ordered by pid.
func (s *Store) List() ([]Entry, error) {
	infos, err := afero.ReadDir(s.fs, s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list status dir: %w", err)
	}

	var entries []Entry
	for _, info := range infos {
		pid, ok := ParsePath(info.Name())
		if !ok || info.IsDir() {
			continue
		}
		text, err := s.Read(pid)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{PID: pid, Text: text, ModTime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PID < entries[j].PID })
	return entries, nil
}

// ParsePath returns the pid a status file name or path belongs to.
func ParsePath(path string) (int, bool) {
	name, ok := strings.CutSuffix(filepath.Base(path), ".txt")
	if !ok {
		return 0, false
	}
	pid, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return pid, true
}
