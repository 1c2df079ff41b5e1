package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/heist/internal/config"
	"github.com/Iron-Ham/heist/internal/monitor"
	"github.com/Iron-Ham/heist/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status reported by running processes",
	Long: `Print the status text every process last wrote to the status
directory. With --follow, reprint whenever a status file changes.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolP("follow", "f", false, "keep printing as status files change")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	follow, _ := cmd.Flags().GetBool("follow")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	store := status.NewStore(afero.NewOsFs(), cfg.Status.Dir)
	out := cmd.OutOrStdout()

	if !follow {
		return printStatus(out, store, false)
	}

	if err := os.MkdirAll(store.Dir(), 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(store.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", store.Dir(), err)
	}

	if err := printStatus(out, store, true); err != nil {
		return err
	}
	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, ok := status.ParsePath(ev.Name); !ok || ev.Has(fsnotify.Chmod) {
				continue
			}
			if err := printStatus(out, store, true); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch status dir: %w", err)
		}
	}
}

// printStatus renders every status file as a table, clearing the screen
// first when clear is set and out is a terminal.
func printStatus(out io.Writer, store *status.Store, clear bool) error {
	entries, err := store.List()
	if err != nil {
		return err
	}
	scripts := make([]monitor.Script, 0, len(entries))
	for _, e := range entries {
		scripts = append(scripts, monitor.Script{
			Name:   fmt.Sprintf("%d (%s)", e.PID, e.ModTime.Format(time.TimeOnly)),
			PID:    e.PID,
			Status: e.Text,
		})
	}

	width := 0
	fd := int(os.Stdout.Fd())
	tty := out == os.Stdout && term.IsTerminal(fd)
	if tty {
		if w, _, err := term.GetSize(fd); err == nil {
			width = w
		}
		if clear {
			fmt.Fprint(out, ansi.EraseEntireScreen+ansi.CursorHomePosition)
		}
	}
	fmt.Fprintln(out, monitor.Render(scripts, width))
	return nil
}
