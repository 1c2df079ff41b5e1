package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/event"
	"github.com/Iron-Ham/heist/internal/executor"
	"github.com/Iron-Ham/heist/internal/format"
	"github.com/Iron-Ham/heist/internal/host"
	"github.com/Iron-Ham/heist/internal/logging"
	"github.com/Iron-Ham/heist/internal/mailbox"
	"github.com/Iron-Ham/heist/internal/plan"
	"github.com/Iron-Ham/heist/internal/protocol"
	"github.com/Iron-Ham/heist/internal/status"
	"github.com/Iron-Ham/heist/internal/target"
)

// Config controls an Orchestrator.
type Config struct {
	// DryRun plans a single iteration without spawning workers.
	DryRun bool
	// Home holds the port openers and worker programs.
	Home string
	// HomeReserveGB is never scheduled on Home.
	HomeReserveGB float64
	Scripts       cluster.Scripts
	// Files are copied to every rooted host. They must include Scripts.
	Files []string
	// Exclude keeps matching servers out of both hosts and targets.
	Exclude *cluster.Filter
	// Share fills leftover capacity with share workers during execution.
	Share bool
	// Purchase buys servers of at least MinRAMGB when capacity runs low.
	Purchase bool
	MinRAMGB float64
	// Monitor is the identity status updates are signalled to, or
	// protocol.NoServer.
	Monitor int
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	scripts := cluster.DefaultScripts()
	return Config{
		Home:          host.DefaultHome,
		HomeReserveGB: host.DefaultReserveGB,
		Scripts:       scripts,
		Files:         []string{scripts.Hack, scripts.Grow, scripts.Weaken, scripts.Share},
		Share:         true,
		Purchase:      true,
		MinRAMGB:      2,
		Monitor:       protocol.NoServer,
	}
}

// Orchestrator drives planning iterations against a cluster.
type Orchestrator struct {
	cluster  cluster.Cluster
	reg      *mailbox.Registry
	id       int
	cfg      Config
	planner  *plan.Planner
	store    *status.Store
	bus      *event.Bus
	logger   *logging.Logger
	planOpts []plan.Option

	updater *status.Updater
	coord   *executor.Coordinator
	stopped atomic.Bool

	// iterate is Iteration; tests swap it.
	iterate    func(context.Context) (*Report, error)
	retryDelay time.Duration
}

// RetryDelay is how long Run waits before replanning after an infeasible
// iteration.
const RetryDelay = time.Second

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore writes status text to store.
func WithStore(store *status.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithBus publishes iteration events on bus.
func WithBus(bus *event.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPlannerOptions passes opts to the planner.
func WithPlannerOptions(opts ...plan.Option) Option {
	return func(o *Orchestrator) { o.planOpts = append(o.planOpts, opts...) }
}

// New creates an Orchestrator that plans as identity id.
func New(c cluster.Cluster, reg *mailbox.Registry, id int, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cluster: c,
		reg:     reg,
		id:      id,
		cfg:     cfg,
		bus:     event.NewBus(),
		logger:  logging.NopLogger(),

		retryDelay: RetryDelay,
	}
	o.iterate = o.Iteration
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithComponent("orchestrator")

	planOpts := append([]plan.Option{plan.WithLogger(o.logger), plan.WithScripts(cfg.Scripts)}, o.planOpts...)
	o.planner = plan.NewPlanner(c, planOpts...)
	o.updater = status.NewUpdater(id, o.store, reg, cfg.Monitor, o.logger)
	return o
}

// Stop makes Run return after the current iteration.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
}

// Run iterates until stopped, ctx is cancelled, or an iteration fails. An
// infeasible plan is logged and replanned after RetryDelay; every other
// failure ends the run. A dry run iterates once. Cancellation is not an
// error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info(fmt.Sprintf("dry-run: %v", o.cfg.DryRun))

	listener := protocol.NewListener(o.reg, o.id, protocol.WithBus(o.bus), protocol.WithLogger(o.logger))
	err := listener.RegisterHandler(protocol.Stop, func(sender int) {
		o.logger.Info("Got STOP; quitting after next iteration", "sender", sender)
		o.Stop()
	})
	if err != nil {
		return err
	}
	if !o.cfg.DryRun {
		coord, err := executor.NewCoordinator(o.cluster, listener,
			executor.WithScripts(o.cfg.Scripts),
			executor.WithShare(o.cfg.Share),
			executor.WithStatus(o.updater),
			executor.WithBus(o.bus),
			executor.WithLogger(o.logger),
		)
		if err != nil {
			return err
		}
		o.coord = coord
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		err := listener.Listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	p.Go(func(ctx context.Context) error {
		// Ending the loop stops the listener.
		defer cancel()
		for {
			if _, err := o.iterate(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				o.logger.Warn("iteration failed", "severity", errors.GetSeverity(err).String(), "error", err)
				if errors.IsFatal(err) || !errors.IsInfeasible(err) || o.cfg.DryRun {
					return err
				}
				if !sleep(ctx, o.retryDelay) {
					return nil
				}
			}
			if o.cfg.DryRun || o.stopped.Load() || ctx.Err() != nil {
				return nil
			}
		}
	})
	err = p.Wait()
	o.logger.Info("Done!")
	return err
}

// sleep waits d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Report summarises one iteration.
type Report struct {
	RunID         string
	Plan          *plan.Plan
	HacksPerBatch int
	// RAMStart and RAMAfter are the free GB before and after planning.
	RAMStart float64
	RAMAfter float64
	// Slept is how long execution took; zero in a dry run.
	Slept          time.Duration
	MoneyPerSecond float64
}

// Iteration runs one planning cycle: discover, plan, execute, report.
func (o *Orchestrator) Iteration(ctx context.Context) (report *Report, err error) {
	runID := uuid.NewString()
	logger := o.logger.WithIteration(runID)
	started := time.Now()
	o.bus.Publish(event.NewIterationStartedEvent(runID, o.cfg.DryRun))
	o.updater.Reset()

	targetName := ""
	defer func() {
		mps := 0.0
		if report != nil {
			mps = report.MoneyPerSecond
		}
		o.bus.Publish(event.NewIterationFinishedEvent(runID, targetName, time.Since(started), mps, err))
	}()

	logger.Info("---")
	player := o.cluster.Player()
	base, err := o.base(player, logger)
	if err != nil {
		return nil, err
	}
	targetName = base.Target().Hostname
	logger = logger.WithTarget(targetName)

	ramToStart := base.RAMAvailable()
	for _, kv := range [][2]string{
		{"Target", targetName},
		{"Hosts", fmt.Sprint(len(base.Hosts()))},
		{"RAM free", format.RAM(ramToStart)},
	} {
		if err := o.setStatus(logger, kv[0], kv[1]); err != nil {
			return nil, err
		}
	}

	p, err := o.planner.Prep(base)
	if err != nil {
		return nil, fmt.Errorf("prep %s: %w", targetName, err)
	}
	hacks, err := o.planner.HacksPerBatch(p)
	if err != nil {
		return nil, fmt.Errorf("hacks per batch: %w", err)
	}
	if hacks == -1 {
		logger.Warn("Could not plan number of hacks per batch")
	} else {
		logger.Info(fmt.Sprintf("%d hacks per batch", hacks))
		batchCtx, stopBatch := context.WithCancel(ctx)
		var statusErr error
		progress := func(awaits int, elapsed time.Duration) {
			if statusErr != nil {
				return
			}
			statusErr = o.setStatus(logger, "Awaits", fmt.Sprintf("%d (%s)", awaits, format.Elapsed(elapsed)))
			if statusErr != nil {
				stopBatch()
			}
		}
		err := o.planner.Batch(batchCtx, p, hacks, progress)
		stopBatch()
		if statusErr != nil {
			return nil, statusErr
		}
		if err != nil {
			return nil, fmt.Errorf("batch: %w", err)
		}
	}
	for _, line := range p.Tally().Lines() {
		logger.Info(line)
	}

	ramAfter := p.RAMAvailable()
	if err := o.setStatus(logger, "RAM free", fmt.Sprintf("%s/%s", format.RAM(ramAfter), format.RAM(ramToStart))); err != nil {
		return nil, err
	}
	o.bus.Publish(event.NewPlanCommittedEvent(runID, targetName, p.Batches(), p.Awaits(), ramAfter))

	report = &Report{
		RunID:         runID,
		Plan:          p,
		HacksPerBatch: hacks,
		RAMStart:      ramToStart,
		RAMAfter:      ramAfter,
	}

	wait := time.Now()
	if !o.cfg.DryRun {
		if o.coord == nil {
			return report, errors.New("no coordinator; Iteration outside Run")
		}
		if err := o.coord.Exec(ctx, p); err != nil {
			return report, fmt.Errorf("exec: %w", err)
		}
		report.Slept = time.Since(wait)
	}
	logger.Info("Finished, slept " + format.Duration(report.Slept))

	if hacks > 0 && p.Batches() > 0 && report.Slept > 0 {
		report.MoneyPerSecond = p.HackMultiplier * float64(hacks) * float64(p.Batches()) *
			p.Target().MoneyMax / report.Slept.Seconds()
		logger.Info(format.Money(report.MoneyPerSecond) + "/s")
	}

	if ramAfter < ramToStart/2 {
		money := cluster.SuggestPorts(o.cluster, o.cfg.Home, player.Money, logger)
		if o.cfg.Purchase && !o.cfg.DryRun {
			if _, err := cluster.Purchase(o.cluster, money, o.cfg.MinRAMGB, logger); err != nil {
				logger.Warn("purchase failed", "error", err)
			}
		}
	}
	return report, nil
}

// base discovers the network, roots what it can and returns an empty plan
// against the best target.
func (o *Orchestrator) base(player cluster.Player, logger *logging.Logger) (*plan.Plan, error) {
	servers, err := cluster.Discover(o.cluster, o.cfg.Home)
	if err != nil {
		return nil, err
	}
	rooted, err := cluster.Root(o.cluster, o.cluster, player, servers, cluster.Rooting{
		Home:    o.cfg.Home,
		Files:   o.cfg.Files,
		Exclude: o.cfg.Exclude,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]cluster.Server, 0, len(servers))
	for _, s := range servers {
		if !o.cfg.Exclude.Excluded(s.Hostname) {
			candidates = append(candidates, s)
		}
	}
	best, err := target.Best(o.cluster, candidates, o.cfg.Scripts)
	if err != nil {
		return nil, err
	}

	hosts := make([]*host.Host, 0, len(rooted))
	reserve := host.WithReserve(o.cfg.Home, o.cfg.HomeReserveGB)
	for _, s := range rooted {
		hosts = append(hosts, host.FromServer(s, o.cluster, reserve))
	}
	host.Sort(hosts)
	return o.planner.Base(player, hosts, best), nil
}

// setStatus returns protocol violations, such as a monitor mailbox with no
// room left. Any other failure is logged.
func (o *Orchestrator) setStatus(logger *logging.Logger, key, value string) error {
	err := o.updater.Set(key, value)
	if err == nil || errors.IsProtocolViolation(err) {
		return err
	}
	logger.Warn("cannot update status", "key", key, "error", err)
	return nil
}
