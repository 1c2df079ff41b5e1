package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Iron-Ham/heist/internal/cluster"
)

// operator performs one worker process's operations.
type operator struct {
	sim      *Sim
	hostname string
	threads  int
}

// wait sleeps for additional plus the operation's duration, as measured
// when it starts.
func (o *operator) wait(ctx context.Context, target string, additional time.Duration, duration func(cluster.Server, cluster.Player) time.Duration) error {
	o.sim.mu.Lock()
	server, ok := o.sim.servers[target]
	if !ok {
		o.sim.mu.Unlock()
		return fmt.Errorf("unknown target %q", target)
	}
	d := duration(*server, o.sim.player)
	o.sim.mu.Unlock()

	timer := time.NewTimer(additional + d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *operator) cores() int {
	if server, ok := o.sim.servers[o.hostname]; ok {
		return server.CPUCores
	}
	return 1
}

func (o *operator) Hack(ctx context.Context, target string, additional time.Duration) error {
	if err := o.wait(ctx, target, additional, o.sim.f.HackTime); err != nil {
		return err
	}

	s := o.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	server := s.servers[target]
	if s.rng.Float64() >= s.f.HackChance(*server, s.player) {
		return nil
	}
	percent := math.Min(s.f.HackPercent(*server, s.player)*float64(o.threads), 1)
	stolen := math.Floor(server.MoneyAvailable * percent)
	server.MoneyAvailable -= stolen
	s.player.Money += stolen
	server.HackDifficulty = math.Min(server.HackDifficulty+cluster.SecurityPerHack*float64(o.threads), 100)
	return nil
}

func (o *operator) Grow(ctx context.Context, target string, additional time.Duration) error {
	if err := o.wait(ctx, target, additional, o.sim.f.GrowTime); err != nil {
		return err
	}

	s := o.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	server := s.servers[target]
	server.MoneyAvailable = s.f.GrowAmount(*server, s.player, o.threads, o.cores())
	server.HackDifficulty = math.Min(server.HackDifficulty+cluster.SecurityPerGrow*float64(o.threads), 100)
	return nil
}

func (o *operator) Weaken(ctx context.Context, target string, additional time.Duration) error {
	if err := o.wait(ctx, target, additional, o.sim.f.WeakenTime); err != nil {
		return err
	}

	s := o.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	server := s.servers[target]
	server.HackDifficulty = math.Max(server.HackDifficulty-weakenAmount(o.threads, o.cores()), server.MinDifficulty)
	return nil
}

func (o *operator) Share(ctx context.Context) error {
	timer := time.NewTimer(o.sim.shareTime)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
