package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/heist/internal/monitor"
	"github.com/Iron-Ham/heist/internal/protocol"
	"github.com/Iron-Ham/heist/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan and execute batches until stopped",
	Long: `Run the planner loop against the network.

Each iteration plans prep and HWGW batches for the best target, launches
every worker so they all finish together, and fills leftover capacity with
share workers while it waits. Press Ctrl+C once to stop after the current
iteration, twice to stop immediately.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolP("dry-run", "n", false, "plan one iteration without launching workers")
	runCmd.Flags().Bool("monitor", false, "show the status dashboard")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	_ = viper.BindPFlag("metrics.addr", runCmd.Flags().Lookup("metrics-addr"))
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	withMonitor, _ := cmd.Flags().GetBool("monitor")

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	pid := e.sim.Attach("heist")
	defer e.sim.Detach(pid)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if addr := e.cfg.Metrics.Addr; addr != "" {
		serveMetrics(ctx, addr, e)
	}

	monitorPID := protocol.NoServer
	var program *tea.Program
	if withMonitor {
		monitorPID = e.sim.Attach("monitor")
		defer e.sim.Detach(monitorPID)

		listener := protocol.NewListener(e.reg, monitorPID, protocol.WithBus(e.bus), protocol.WithLogger(e.logger))
		board, err := monitor.NewBoard(listener, e.store, e.sim, monitor.WithBus(e.bus), monitor.WithLogger(e.logger))
		if err != nil {
			return err
		}
		go func() {
			if err := listener.Listen(ctx); err != nil && ctx.Err() == nil {
				e.logger.Error("monitor stopped listening", "error", err)
			}
		}()
		program = tea.NewProgram(monitor.NewModel(board), tea.WithAltScreen(), tea.WithContext(ctx))
		defer board.Unsubscribe(monitor.ModelKey)
	}

	o, err := e.orchestrator(pid, dryRun, monitorPID)
	if err != nil {
		return err
	}

	// The first interrupt asks the planner to stop after this iteration; a
	// second one cancels it.
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		for n := 1; ; n++ {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if n > 1 {
					cancel()
					return
				}
				if err := worker.Stop(e.reg, pid, pid); err != nil {
					e.logger.Error("cannot send STOP", "error", err)
				}
			}
		}
	}()

	if program == nil {
		return o.Run(ctx)
	}

	var runErr error
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		runErr = o.Run(ctx)
		program.Quit()
	}()
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-runDone
		return err
	}
	// The dashboard closed; let the planner finish its iteration.
	if err := worker.Stop(e.reg, pid, monitorPID); err != nil {
		e.logger.Error("cannot send STOP", "error", err)
	}
	<-runDone
	return runErr
}
