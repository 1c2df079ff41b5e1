package cmd

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/config"
	"github.com/Iron-Ham/heist/internal/event"
	"github.com/Iron-Ham/heist/internal/logging"
	"github.com/Iron-Ham/heist/internal/mailbox"
	"github.com/Iron-Ham/heist/internal/orchestrator"
	"github.com/Iron-Ham/heist/internal/plan"
	"github.com/Iron-Ham/heist/internal/sim"
	"github.com/Iron-Ham/heist/internal/status"
)

// env is everything a command needs to talk to the network.
type env struct {
	cfg    *config.Config
	logger *logging.Logger
	bus    *event.Bus
	reg    *mailbox.Registry
	sim    *sim.Sim
	store  *status.Store
}

// newEnv loads the configuration and builds the simulated network.
func newEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Dir:    cfg.Logging.Dir,
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	})
	if err != nil {
		return nil, err
	}

	world, err := loadWorld(cfg.Sim.World)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	reg := mailbox.NewRegistry(mailbox.WithCapacity(cfg.Mailbox.Capacity), mailbox.WithLogger(logger))
	s := sim.New(world,
		sim.WithTimeScale(cfg.Sim.TimeScale),
		sim.WithRegistry(reg),
		sim.WithScripts(scripts(cfg)),
		sim.WithLogger(logger),
	)
	return &env{
		cfg:    cfg,
		logger: logger,
		bus:    event.NewBus(event.WithLogger(logger)),
		reg:    reg,
		sim:    s,
		store:  status.NewStore(afero.NewOsFs(), cfg.Status.Dir),
	}, nil
}

func loadWorld(path string) (*sim.World, error) {
	if path == "" {
		return sim.DefaultWorld()
	}
	return sim.LoadWorld(path)
}

// Close stops every simulated worker and flushes the log.
func (e *env) Close() {
	e.sim.Close()
	_ = e.logger.Close()
}

func scripts(cfg *config.Config) cluster.Scripts {
	return cluster.Scripts{
		Hack:   cfg.Scripts.Hack,
		Grow:   cfg.Scripts.Grow,
		Weaken: cfg.Scripts.Weaken,
		Share:  cfg.Scripts.Share,
	}
}

// orchestrator builds the planner loop for identity id. monitor is the
// dashboard's identity or protocol.NoServer.
func (e *env) orchestrator(id int, dryRun bool, monitor int) (*orchestrator.Orchestrator, error) {
	exclude, err := cluster.NewFilter(e.cfg.Hosts.Exclude)
	if err != nil {
		return nil, err
	}
	oc := orchestrator.Config{
		DryRun:        dryRun,
		Home:          e.cfg.Planner.HomeHost,
		HomeReserveGB: e.cfg.Planner.HomeReserveGB,
		Scripts:       scripts(e.cfg),
		Files:         e.cfg.Scripts.All(),
		Exclude:       exclude,
		Share:         e.cfg.Executor.Share,
		Purchase:      e.cfg.Purchase.Enabled,
		MinRAMGB:      e.cfg.Purchase.MinRAMGB,
		Monitor:       monitor,
	}
	return orchestrator.New(e.sim, e.reg, id, oc,
		orchestrator.WithStore(e.store),
		orchestrator.WithBus(e.bus),
		orchestrator.WithLogger(e.logger),
		orchestrator.WithPlannerOptions(
			plan.WithMaxAwaits(e.cfg.Planner.MaxAwaits),
			plan.WithYieldInterval(e.cfg.Planner.YieldInterval),
			plan.WithPackRatio(e.cfg.Planner.PackRatio),
			plan.WithMaxHackCandidates(e.cfg.Planner.MaxHackCandidates),
		),
	), nil
}
