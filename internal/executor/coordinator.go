package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/event"
	"github.com/Iron-Ham/heist/internal/format"
	"github.com/Iron-Ham/heist/internal/logging"
	"github.com/Iron-Ham/heist/internal/plan"
	"github.com/Iron-Ham/heist/internal/protocol"
)

// StatusSetter receives progress updates.
type StatusSetter interface {
	Set(key, value string) error
}

// Coordinator spawns plans and waits for them to finish.
type Coordinator struct {
	spawner  cluster.Spawner
	listener *protocol.Listener
	scripts  cluster.Scripts
	share    bool

	status StatusSetter
	bus    *event.Bus
	logger *logging.Logger
	now    func() time.Time

	stealDone chan struct{}
	shareDone chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithScripts overrides the worker program names.
func WithScripts(scripts cluster.Scripts) Option {
	return func(c *Coordinator) { c.scripts = scripts }
}

// WithShare enables or disables filling spare capacity with share workers.
func WithShare(enabled bool) Option {
	return func(c *Coordinator) { c.share = enabled }
}

// WithStatus reports the time left to s.
func WithStatus(s StatusSetter) Option {
	return func(c *Coordinator) { c.status = s }
}

// WithBus publishes spawn and share events to bus.
func WithBus(bus *event.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator returns a Coordinator that receives completion signals on
// listener. The listener must be running for Exec to ever return.
func NewCoordinator(spawner cluster.Spawner, listener *protocol.Listener, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		spawner:   spawner,
		listener:  listener,
		scripts:   cluster.DefaultScripts(),
		share:     true,
		logger:    logging.NopLogger(),
		now:       time.Now,
		stealDone: make(chan struct{}, 1),
		shareDone: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("executor")

	if err := listener.RegisterHandler(protocol.StealDone, notify(c.stealDone)); err != nil {
		return nil, err
	}
	if err := listener.RegisterHandler(protocol.ShareDone, notify(c.shareDone)); err != nil {
		listener.UnregisterHandler(protocol.StealDone)
		return nil, err
	}
	return c, nil
}

// notify never blocks the listener; one pending wake-up is enough.
func notify(ch chan struct{}) protocol.Handler {
	return func(int) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Deadline returns the longest duration among scripts with reservations.
func Deadline(p *plan.Plan) time.Duration {
	var deadline time.Duration
	for _, group := range p.Groups() {
		for _, s := range group {
			if len(s.Reservations) > 0 {
				deadline = max(deadline, s.Duration)
			}
		}
	}
	return deadline
}

// StartDelay returns how long an operation lasting d waits so that it
// finishes at deadline.
func StartDelay(deadline, d time.Duration) time.Duration {
	return max(deadline-d, 0)
}

// Exec spawns every reservation in p and blocks until the last one
// signals, keeping spare capacity busy with share workers meanwhile.
func (c *Coordinator) Exec(ctx context.Context, p *plan.Plan) error {
	drain(c.stealDone)
	drain(c.shareDone)

	if p.Awaits() == 0 {
		c.logger.Info("nothing to execute")
		return nil
	}

	deadline := Deadline(p)
	if err := c.spawnPlan(p, deadline); err != nil {
		return err
	}

	start := c.now()
	var sharePIDs []int
	defer func() {
		for _, pid := range sharePIDs {
			c.spawner.Kill(pid)
		}
	}()

	for round := 1; ; round++ {
		left := max(deadline-c.now().Sub(start), 0)
		if c.status != nil {
			if err := c.status.Set("Left", format.Duration(left)); err != nil {
				if errors.IsProtocolViolation(err) {
					return err
				}
				c.logger.Warn("failed to update status", "error", err)
			}
		}

		var shareDone <-chan struct{}
		if c.share {
			pids, err := c.spawnShare(p)
			if err != nil {
				return err
			}
			sharePIDs = pids
			if len(pids) > 0 {
				shareDone = c.shareDone
				c.bus.Publish(event.NewShareRoundEvent(round, len(pids)))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stealDone:
			return nil
		case <-shareDone:
			c.logger.Info("All share scripts finished: " + format.Elapsed(c.now().Sub(start)))
			sharePIDs = nil
		}
	}
}

func (c *Coordinator) spawnPlan(p *plan.Plan, deadline time.Duration) error {
	last := lastReservation(p)
	target := p.Target().Hostname
	self := c.listener.ID()

	n := 0
	pids := make([]int, 0, last)
	for _, group := range p.Groups() {
		for _, s := range group {
			delay := StartDelay(deadline, s.Duration)
			threads := 0
			for _, r := range s.Reservations {
				n++
				notify := protocol.NoServer
				if n == last {
					notify = self
				}
				job := cluster.Job{
					Script:   s.Path,
					Hostname: r.Host.Hostname,
					Threads:  r.Threads,
					Delay:    delay,
					Target:   target,
					Notify:   notify,
				}
				pid, err := c.spawner.Exec(job)
				if err != nil {
					// Nothing left will notify, so the rest would be orphaned.
					for _, pid := range pids {
						c.spawner.Kill(pid)
					}
					return fmt.Errorf("spawn %s on %s: %w", s.Path, r.Host.Hostname, err)
				}
				pids = append(pids, pid)
				threads += r.Threads
			}
			if len(s.Reservations) > 0 {
				c.bus.Publish(event.NewWorkersSpawnedEvent(s.Path, len(s.Reservations), threads))
			}
		}
	}
	return nil
}

// lastReservation counts the plan's reservations; the last one notifies.
func lastReservation(p *plan.Plan) int {
	n := 0
	for _, group := range p.Groups() {
		for _, s := range group {
			n += len(s.Reservations)
		}
	}
	return n
}

// spawnShare fills every host's spare capacity with share threads. Only the
// last worker spawned signals.
func (c *Coordinator) spawnShare(p *plan.Plan) ([]int, error) {
	type slot struct {
		hostname string
		threads  int
	}
	var slots []slot
	for _, h := range p.Hosts() {
		ram, err := h.CostOf(c.scripts.Share)
		if err != nil {
			return nil, err
		}
		threads := int(math.Floor(h.RAMAvailable / ram))
		if threads > 0 {
			slots = append(slots, slot{h.Hostname, threads})
		}
	}

	pids := make([]int, 0, len(slots))
	threads := 0
	for i, s := range slots {
		notify := protocol.NoServer
		if i == len(slots)-1 {
			notify = c.listener.ID()
		}
		pid, err := c.spawner.Exec(cluster.Job{
			Script:   c.scripts.Share,
			Hostname: s.hostname,
			Threads:  s.threads,
			Notify:   notify,
		})
		if err != nil {
			for _, pid := range pids {
				c.spawner.Kill(pid)
			}
			return nil, fmt.Errorf("spawn %s on %s: %w", c.scripts.Share, s.hostname, err)
		}
		pids = append(pids, pid)
		threads += s.threads
	}
	if len(pids) > 0 {
		c.bus.Publish(event.NewWorkersSpawnedEvent(c.scripts.Share, len(pids), threads))
	}
	return pids, nil
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
