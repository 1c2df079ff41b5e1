package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/event"
	"github.com/Iron-Ham/heist/internal/mailbox"
	"github.com/Iron-Ham/heist/internal/protocol"
	"github.com/Iron-Ham/heist/internal/sim"
	"github.com/Iron-Ham/heist/internal/status"
	"github.com/Iron-Ham/heist/internal/testutil"
	"github.com/Iron-Ham/heist/internal/worker"
)

type harness struct {
	sim   *sim.Sim
	store *status.Store
	bus   *event.Bus
	id    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := testutil.NewSim(t, testutil.SingleTargetWorld)
	return &harness{
		sim:   s,
		store: status.NewStore(afero.NewMemMapFs(), ""),
		bus:   event.NewBus(),
		id:    s.Attach("heist"),
	}
}

func (h *harness) orchestrator(cfg Config) *Orchestrator {
	cfg.HomeReserveGB = 0
	return New(h.sim, h.sim.Registry(), h.id, cfg, WithStore(h.store), WithBus(h.bus))
}

func TestIteration_DryRun(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.DryRun = true
	o := h.orchestrator(cfg)

	report, err := o.Iteration(context.Background())
	if err != nil {
		t.Fatalf("Iteration() error = %v", err)
	}
	if report.Plan.Target().Hostname != "n00dles" {
		t.Errorf("target = %s, want n00dles", report.Plan.Target().Hostname)
	}
	if report.HacksPerBatch < 1 || report.Plan.Batches() < 1 {
		t.Errorf("hacks per batch = %d, batches = %d", report.HacksPerBatch, report.Plan.Batches())
	}
	if report.RAMAfter >= report.RAMStart || report.RAMStart != 68 {
		t.Errorf("RAM free %v/%v", report.RAMAfter, report.RAMStart)
	}
	if report.Slept != 0 || report.MoneyPerSecond != 0 {
		t.Errorf("dry run executed: %+v", report)
	}
	if got := len(h.sim.Processes()); got != 1 {
		t.Errorf("%d processes after a dry run, want 1", got)
	}

	text, err := h.store.Read(h.id)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"Target: n00dles", "Hosts: 2", "RAM free: ", "Awaits: "} {
		if !strings.Contains(text, key) {
			t.Errorf("status missing %q:\n%s", key, text)
		}
	}
}

func TestIteration_Excluded(t *testing.T) {
	h := newHarness(t)
	exclude, err := cluster.NewFilter([]string{"n0*"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.DryRun = true
	cfg.Exclude = exclude

	var finished []event.IterationFinishedEvent
	h.bus.Subscribe(event.TypeIterationFinished, func(e event.Event) {
		finished = append(finished, e.(event.IterationFinishedEvent))
	})

	_, err = h.orchestrator(cfg).Iteration(context.Background())
	if !errors.Is(err, errors.ErrNoTarget) {
		t.Errorf("Iteration() error = %v, want ErrNoTarget", err)
	}
	if len(finished) != 1 || finished[0].Err == nil {
		t.Errorf("finished events = %+v", finished)
	}
}

func TestIteration_NeedsRun(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orchestrator(DefaultConfig()).Iteration(context.Background()); err == nil {
		t.Error("Iteration() without Run executed a plan")
	}
}

func TestRun_DryRunOnce(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.DryRun = true

	var started int
	h.bus.Subscribe(event.TypeIterationStarted, func(event.Event) { started++ })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.orchestrator(cfg).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if started != 1 {
		t.Errorf("%d iterations, want 1", started)
	}
}

func TestRun_StopsAfterIteration(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.Purchase = false

	var mu sync.Mutex
	var finished []event.IterationFinishedEvent
	h.bus.Subscribe(event.TypeIterationStarted, func(event.Event) {
		// STOP lands while the first iteration runs.
		if err := worker.Stop(h.sim.Registry(), h.id, 99); err != nil {
			t.Error(err)
		}
	})
	h.bus.Subscribe(event.TypeIterationFinished, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, e.(event.IterationFinishedEvent))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.orchestrator(cfg).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	h.sim.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(finished) != 1 {
		t.Fatalf("%d iterations finished, want 1", len(finished))
	}
	if finished[0].Err != nil {
		t.Errorf("iteration error = %v", finished[0].Err)
	}
	if finished[0].MoneyPerSecond <= 0 {
		t.Errorf("MoneyPerSecond = %v", finished[0].MoneyPerSecond)
	}
	if got := len(h.sim.Processes()); got != 1 {
		t.Errorf("%d processes left, want only the planner", got)
	}
	if h.sim.Player().Money <= 0 {
		t.Error("no money stolen")
	}
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.Purchase = false

	ctx, cancel := context.WithCancel(context.Background())
	h.bus.Subscribe(event.TypePlanCommitted, func(event.Event) { cancel() })

	done := make(chan error, 1)
	go func() { done <- h.orchestrator(cfg).Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancellation", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestIteration_MonitorMailboxFull(t *testing.T) {
	// Room for one STATUS frame; nobody drains the monitor.
	reg := mailbox.NewRegistry(mailbox.WithCapacity(protocol.FrameSize + 1))
	s := testutil.NewSim(t, testutil.SingleTargetWorld, sim.WithRegistry(reg))

	cfg := DefaultConfig()
	cfg.DryRun = true
	cfg.HomeReserveGB = 0
	cfg.Monitor = 777
	o := New(s, reg, s.Attach("heist"), cfg, WithStore(status.NewStore(afero.NewMemMapFs(), "")))

	_, err := o.Iteration(context.Background())
	if !errors.Is(err, errors.ErrBufferExhausted) {
		t.Fatalf("Iteration() error = %v, want ErrBufferExhausted", err)
	}
	if !errors.IsFatal(err) {
		t.Error("a full monitor mailbox should be fatal")
	}
}

func TestIteration_SideFileErrorsLogged(t *testing.T) {
	h := newHarness(t)
	h.store = status.NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "")
	cfg := DefaultConfig()
	cfg.DryRun = true

	if _, err := h.orchestrator(cfg).Iteration(context.Background()); err != nil {
		t.Fatalf("Iteration() error = %v, want nil when only the side file fails", err)
	}
}

func TestRun_IterationErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "infeasible plan is retried",
			err:       errors.NewPlanningError("0 hacks per batch", errors.ErrInfeasible),
			wantCalls: 2,
		},
		{
			name:      "discovery failure ends the run",
			err:       errors.NewDiscoveryError("no target", errors.ErrNoTarget),
			wantCalls: 1,
			wantErr:   errors.ErrNoTarget,
		},
		{
			name:      "protocol violation ends the run",
			err:       errors.NewProtocolError("ran out of space", errors.ErrBufferExhausted),
			wantCalls: 1,
			wantErr:   errors.ErrBufferExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			cfg := DefaultConfig()
			cfg.Purchase = false
			o := h.orchestrator(cfg)
			o.retryDelay = time.Millisecond

			calls := 0
			o.iterate = func(context.Context) (*Report, error) {
				calls++
				if calls == 1 {
					return nil, tt.err
				}
				o.Stop()
				return &Report{}, nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := o.Run(ctx)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Run() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("%d iterations, want %d", calls, tt.wantCalls)
			}
		})
	}
}
