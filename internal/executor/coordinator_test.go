package executor

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/event"
	"github.com/Iron-Ham/heist/internal/host"
	"github.com/Iron-Ham/heist/internal/mailbox"
	"github.com/Iron-Ham/heist/internal/plan"
	"github.com/Iron-Ham/heist/internal/protocol"
)

const selfPID = 1

type fixedOracle struct{}

func (fixedOracle) Player() cluster.Player                     { return cluster.Player{} }
func (fixedOracle) ScriptRAM(string, string) float64           { return 2 }
func (fixedOracle) HackAnalyze(string) float64                 { return 0.01 }
func (fixedOracle) GrowthAnalyze(string, float64, int) float64 { return 0 }
func (fixedOracle) GrowTime(string) time.Duration              { return 3200 * time.Millisecond }
func (fixedOracle) HackTime(string) time.Duration              { return time.Second }
func (fixedOracle) WeakenTime(string) time.Duration            { return 4 * time.Second }
func (fixedOracle) FileExists(string, string) bool             { return false }
func (fixedOracle) Formulas() (cluster.Formulas, bool)         { return nil, false }

// fakeSpawner records jobs and plays the part of the workers: the job
// asked to notify signals right away, share rounds signal until
// shareRounds is used up.
type fakeSpawner struct {
	reg         *mailbox.Registry
	shareRounds int
	// failAt makes the failAt-th Exec fail when positive.
	failAt int

	mu     sync.Mutex
	jobs   []cluster.Job
	killed []int
}

func (s *fakeSpawner) Exec(job cluster.Job) (int, error) {
	s.mu.Lock()
	if s.failAt > 0 && len(s.jobs)+1 == s.failAt {
		s.mu.Unlock()
		return 0, errors.New("not enough RAM")
	}
	s.jobs = append(s.jobs, job)
	pid := 100 + len(s.jobs)
	signal := protocol.Signal(0)
	if job.Notify != protocol.NoServer {
		if job.Script == "share.js" {
			if s.shareRounds > 0 {
				s.shareRounds--
				signal = protocol.ShareDone
			}
		} else {
			signal = protocol.StealDone
		}
	}
	s.mu.Unlock()

	if signal != 0 {
		go func() {
			time.Sleep(5 * time.Millisecond)
			_ = protocol.WriteSignal(s.reg, job.Notify, pid, signal)
		}()
	}
	return pid, nil
}

func (s *fakeSpawner) Kill(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killed = append(s.killed, pid)
	return true
}

func (s *fakeSpawner) snapshot() ([]cluster.Job, []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cluster.Job(nil), s.jobs...), append([]int(nil), s.killed...)
}

type recordingStatus struct {
	mu     sync.Mutex
	values []string
}

func (r *recordingStatus) Set(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, key+": "+value)
	return nil
}

// failingStatus rejects every update with err.
type failingStatus struct{ err error }

func (f failingStatus) Set(string, string) error { return f.err }

func batchPlan(t *testing.T, capacities ...float64) *plan.Plan {
	t.Helper()
	o := fixedOracle{}
	var hosts []*host.Host
	for i, c := range capacities {
		hosts = append(hosts, host.FromServer(cluster.Server{Hostname: string(rune('a' + i)), CPUCores: 1, MaxRAM: c}, o))
	}
	host.Sort(hosts)
	target := cluster.Server{Hostname: "joesguns", MoneyMax: 100_000, MoneyAvailable: 100_000}
	pl := plan.NewPlanner(o)
	p := pl.Base(o.Player(), hosts, target)

	// Hand-built batch: the oracle's growth estimate is flat.
	txn := p.Transaction()
	for _, k := range []plan.Kind{plan.KindHack, plan.KindWeaken, plan.KindGrow} {
		s := &plan.Script{Kind: k, Path: k.String() + ".js", Duration: p.Duration(k)}
		if _, err := s.ReserveFromStart(2, txn.Hosts); err != nil {
			t.Fatal(err)
		}
		txn.Scripts = append(txn.Scripts, s)
	}
	txn.Commit()
	return p
}

func startListener(t *testing.T, reg *mailbox.Registry) (*protocol.Listener, context.CancelFunc) {
	t.Helper()
	l := protocol.NewListener(reg, selfPID)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Listen(ctx) }()
	return l, cancel
}

func TestStartDelay(t *testing.T) {
	tests := []struct {
		deadline, d, want time.Duration
	}{
		{4 * time.Second, time.Second, 3 * time.Second},
		{4 * time.Second, 4 * time.Second, 0},
		{time.Second, 2 * time.Second, 0},
	}
	for _, tt := range tests {
		if got := StartDelay(tt.deadline, tt.d); got != tt.want {
			t.Errorf("StartDelay(%v, %v) = %v, want %v", tt.deadline, tt.d, got, tt.want)
		}
	}
}

func TestDeadline(t *testing.T) {
	p := batchPlan(t, 100)
	if got := Deadline(p); got != 4*time.Second {
		t.Errorf("Deadline() = %v, want 4s", got)
	}
}

func TestExec_SynchronizedFinish(t *testing.T) {
	reg := mailbox.NewRegistry()
	l, cancel := startListener(t, reg)
	defer cancel()

	spawner := &fakeSpawner{reg: reg}
	status := &recordingStatus{}
	bus := event.NewBus()
	var spawned []event.WorkersSpawnedEvent
	var mu sync.Mutex
	bus.Subscribe(event.TypeWorkersSpawned, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		spawned = append(spawned, e.(event.WorkersSpawnedEvent))
	})

	c, err := NewCoordinator(spawner, l, WithShare(false), WithStatus(status), WithBus(bus))
	if err != nil {
		t.Fatal(err)
	}

	p := batchPlan(t, 100)
	if err := c.Exec(context.Background(), p); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	jobs, _ := spawner.snapshot()
	if len(jobs) != 3 {
		t.Fatalf("spawned %d jobs, want 3", len(jobs))
	}
	for i, job := range jobs {
		dur := p.Duration([]plan.Kind{plan.KindHack, plan.KindWeaken, plan.KindGrow}[i])
		if job.Delay+dur != 4*time.Second {
			t.Errorf("%s finishes at %v, want 4s", job.Script, job.Delay+dur)
		}
		if job.Target != "joesguns" || job.Threads != 2 {
			t.Errorf("job = %+v", job)
		}
		wantNotify := protocol.NoServer
		if i == len(jobs)-1 {
			wantNotify = selfPID
		}
		if job.Notify != wantNotify {
			t.Errorf("job %d Notify = %d, want %d", i, job.Notify, wantNotify)
		}
	}

	status.mu.Lock()
	if len(status.values) == 0 || status.values[0] != "Left: 4 seconds" {
		t.Errorf("status = %q", status.values)
	}
	status.mu.Unlock()

	mu.Lock()
	if len(spawned) != 3 {
		t.Errorf("published %d spawn events, want 3", len(spawned))
	}
	mu.Unlock()
}

func TestExec_ShareRounds(t *testing.T) {
	reg := mailbox.NewRegistry()
	l, cancel := startListener(t, reg)
	defer cancel()

	// Share rounds finish twice before the plan does; the plan's notifier
	// is held back until then.
	spawner := &fakeSpawner{reg: reg, shareRounds: 2}
	gate := &gatedSpawner{fakeSpawner: spawner, release: 3}
	c, err := NewCoordinator(gate, l)
	if err != nil {
		t.Fatal(err)
	}

	p := batchPlan(t, 20, 40)
	if err := c.Exec(context.Background(), p); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	jobs, killed := spawner.snapshot()
	var shares []cluster.Job
	for _, job := range jobs {
		if job.Script == "share.js" {
			shares = append(shares, job)
		}
	}
	// Capacity left: a 8GB, b 40GB, so two share workers per round.
	if len(shares) != 6 {
		t.Fatalf("spawned %d share workers, want 6", len(shares))
	}
	if shares[0].Threads != 4 || shares[1].Threads != 20 {
		t.Errorf("share threads = %d, %d, want 4, 20", shares[0].Threads, shares[1].Threads)
	}
	if shares[0].Notify != protocol.NoServer || shares[1].Notify != selfPID {
		t.Error("only the last share worker of a round should notify")
	}
	if len(killed) != 2 {
		t.Errorf("killed %v, want the last round's 2 share workers", killed)
	}
}

// gatedSpawner delays the plan's completion signal until release share
// rounds have been spawned.
type gatedSpawner struct {
	*fakeSpawner
	release int

	mu      sync.Mutex
	rounds  int
	pending *cluster.Job
	pid     int
}

func (g *gatedSpawner) Exec(job cluster.Job) (int, error) {
	if job.Script != "share.js" && job.Notify != protocol.NoServer {
		g.fakeSpawner.mu.Lock()
		g.fakeSpawner.jobs = append(g.fakeSpawner.jobs, job)
		pid := 100 + len(g.fakeSpawner.jobs)
		g.fakeSpawner.mu.Unlock()

		g.mu.Lock()
		g.pending, g.pid = &job, pid
		g.mu.Unlock()
		return pid, nil
	}
	pid, err := g.fakeSpawner.Exec(job)
	if job.Script == "share.js" && job.Notify != protocol.NoServer {
		g.mu.Lock()
		g.rounds++
		if g.rounds == g.release && g.pending != nil {
			notify, from := g.pending.Notify, g.pid
			go func() {
				time.Sleep(5 * time.Millisecond)
				_ = protocol.WriteSignal(g.reg, notify, from, protocol.StealDone)
			}()
		}
		g.mu.Unlock()
	}
	return pid, err
}

func TestExec_EmptyPlan(t *testing.T) {
	reg := mailbox.NewRegistry()
	l := protocol.NewListener(reg, selfPID)
	spawner := &fakeSpawner{reg: reg}
	c, err := NewCoordinator(spawner, l)
	if err != nil {
		t.Fatal(err)
	}

	o := fixedOracle{}
	p := plan.NewPlanner(o).Base(o.Player(), nil, cluster.Server{Hostname: "n00dles"})
	if err := c.Exec(context.Background(), p); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if jobs, _ := spawner.snapshot(); len(jobs) != 0 {
		t.Errorf("spawned %d jobs for an empty plan", len(jobs))
	}
}

func TestExec_Cancelled(t *testing.T) {
	reg := mailbox.NewRegistry()
	l := protocol.NewListener(reg, selfPID)
	spawner := &fakeSpawner{reg: reg}
	c, err := NewCoordinator(spawner, l)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// No listener runs, so the completion signal is never dispatched.
	err = c.Exec(ctx, batchPlan(t, 20, 40))
	if err != context.DeadlineExceeded {
		t.Fatalf("Exec() error = %v, want context.DeadlineExceeded", err)
	}
	if _, killed := spawner.snapshot(); len(killed) != 2 {
		t.Errorf("killed %v, want both share workers", killed)
	}
}

func TestNewCoordinator_HandlerConflict(t *testing.T) {
	reg := mailbox.NewRegistry()
	l := protocol.NewListener(reg, selfPID)
	if err := l.RegisterHandler(protocol.ShareDone, func(int) {}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCoordinator(&fakeSpawner{reg: reg}, l); err == nil {
		t.Fatal("NewCoordinator() succeeded despite a conflicting handler")
	}
	if l.UnregisterHandler(protocol.StealDone) {
		t.Error("STEAL_DONE handler left behind after failed construction")
	}
}

func TestNewCoordinator_SharedListener(t *testing.T) {
	reg := mailbox.NewRegistry()
	l := protocol.NewListener(reg, selfPID)
	if _, err := NewCoordinator(&fakeSpawner{reg: reg}, l); err != nil {
		t.Fatalf("NewCoordinator() = %v", err)
	}
	_, err := NewCoordinator(&fakeSpawner{reg: reg}, l)
	if !errors.Is(err, errors.ErrHandlerConflict) {
		t.Fatalf("second NewCoordinator() on one listener = %v, want ErrHandlerConflict", err)
	}
}

func TestExec_SpawnFailureKillsSpawned(t *testing.T) {
	reg := mailbox.NewRegistry()
	l, cancel := startListener(t, reg)
	defer cancel()

	spawner := &fakeSpawner{reg: reg, failAt: 3}
	c, err := NewCoordinator(spawner, l, WithShare(false))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Exec(context.Background(), batchPlan(t, 100)); err == nil {
		t.Fatal("Exec() succeeded despite a failed spawn")
	}

	jobs, killed := spawner.snapshot()
	if len(jobs) != 2 {
		t.Fatalf("spawned %d jobs before the failure, want 2", len(jobs))
	}
	if want := []int{101, 102}; !slices.Equal(killed, want) {
		t.Errorf("killed %v, want %v", killed, want)
	}
}

func TestExec_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"full monitor mailbox", errors.NewProtocolError("ran out of space", errors.ErrBufferExhausted), true},
		{"side file", errors.New("disk full"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := mailbox.NewRegistry()
			l, cancel := startListener(t, reg)
			defer cancel()

			spawner := &fakeSpawner{reg: reg}
			c, err := NewCoordinator(spawner, l, WithShare(false), WithStatus(failingStatus{tt.err}))
			if err != nil {
				t.Fatal(err)
			}
			err = c.Exec(context.Background(), batchPlan(t, 100))
			if tt.wantErr {
				if !errors.Is(err, errors.ErrBufferExhausted) {
					t.Errorf("Exec() error = %v, want ErrBufferExhausted", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Exec() error = %v, want nil", err)
			}
		})
	}
}
