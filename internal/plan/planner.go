package plan

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/host"
	"github.com/Iron-Ham/heist/internal/logging"
	"github.com/Iron-Ham/heist/internal/search"
)

// Planner builds plans against an oracle.
type Planner struct {
	oracle  cluster.Oracle
	scripts cluster.Scripts
	logger  *logging.Logger

	maxAwaits         int
	yieldInterval     time.Duration
	packRatio         float64
	maxHackCandidates int
}

// NewPlanner creates a Planner.
func NewPlanner(o cluster.Oracle, opts ...Option) *Planner {
	p := &Planner{
		oracle:            o,
		scripts:           cluster.DefaultScripts(),
		logger:            logging.NopLogger(),
		maxAwaits:         DefaultMaxAwaits,
		yieldInterval:     DefaultYieldInterval,
		packRatio:         DefaultPackRatio,
		maxHackCandidates: DefaultMaxHackCandidates,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Base returns an empty plan for target over hosts, which must already be
// sorted.
func (pl *Planner) Base(player cluster.Player, hosts []*host.Host, target cluster.Server) *Plan {
	p := &Plan{
		Player:         player,
		HackMultiplier: pl.oracle.HackAnalyze(target.Hostname),
		GrowTime:       pl.oracle.GrowTime(target.Hostname),
		HackTime:       pl.oracle.HackTime(target.Hostname),
		WeakenTime:     pl.oracle.WeakenTime(target.Hostname),
		oracle:         pl.oracle,
		scripts:        pl.scripts,
		hosts:          hosts,
		target:         target,
		tally:          NewTally(),
	}
	if f, ok := pl.oracle.Formulas(); ok {
		p.formulas = f
	}
	return p
}

// Prep weakens the target to minimum security, then grows it to maximum
// money. Partial progress is committed: when the weaken step cannot get
// every thread it wants, Prep returns right after it so the next cycle can
// carry on.
func (pl *Planner) Prep(p *Plan) (*Plan, error) {
	txn := p.Transaction()

	if excess := txn.Target.HackDifficulty - txn.Target.MinDifficulty; excess > 0 {
		weaken := p.newScript(KindWeaken)
		wanted := int(math.Ceil(excess / cluster.SecurityPerWeaken))
		got, err := weaken.ReserveFromStart(wanted, txn.Hosts)
		if err != nil {
			return nil, err
		}
		txn.Scripts = append(txn.Scripts, weaken)
		txn.Target.HackDifficulty -= cluster.SecurityPerWeaken * float64(got)
		txn.Tally.Add(fmt.Sprintf("%d weaken", got), 1)
		if got != wanted {
			return txn.Commit(), nil
		}
	}

	// The growth estimate is too coarse for multipliers this large.
	if !p.HasFormulas() && txn.Target.MoneyAvailable <= 1 {
		pl.logger.Error(fmt.Sprintf("%q < $1; if this repeats, stop the planner", txn.Target.Hostname),
			"target", txn.Target.Hostname)
		if err := pl.saturate(p, txn); err != nil {
			return nil, err
		}
		return txn.Commit(), nil
	}

	txn.Commit()

	candidates := make(map[int]*Transaction)
	var stepErr error
	grows, err := search.Exponential(1, func(threads int) bool {
		if stepErr != nil {
			return false
		}
		t, err := pl.Grow(p, threads)
		if err != nil {
			stepErr = err
			return false
		}
		if t == nil {
			return false
		}
		candidates[threads] = t
		return true
	})
	if stepErr != nil {
		return nil, stepErr
	}
	if err != nil {
		return nil, err
	}
	if grows > 0 {
		return candidates[grows].Commit(), nil
	}
	return p, nil
}

// saturate reserves every grow thread the largest host holds, plus the
// weakens offsetting them.
func (pl *Planner) saturate(p *Plan, txn *Transaction) error {
	if len(txn.Hosts) == 0 {
		return nil
	}
	grow := p.newScript(KindGrow)
	grows, err := grow.ReserveOnHost(Unlimited, txn.Hosts[len(txn.Hosts)-1])
	if err != nil {
		return err
	}
	txn.Scripts = append(txn.Scripts, grow)

	weaken := p.newScript(KindWeaken)
	weakens, err := weaken.ReserveFromStart(int(math.Ceil(float64(grows)*cluster.WeakensPerGrow)), txn.Hosts)
	if err != nil {
		return err
	}
	txn.Scripts = append(txn.Scripts, weaken)

	txn.Tally.Add(fmt.Sprintf("%d grow, %d weaken", grows, weakens), 1)
	return nil
}

// Grow tries to reserve grows grow threads, largest hosts first, plus the
// weakens offsetting them. It returns nil if they do not all fit or if a
// host would need more threads than are left to place.
func (pl *Planner) Grow(p *Plan, grows int) (*Transaction, error) {
	txn := p.Transaction()

	grow := p.newScript(KindGrow)
	left := grows
	for i := len(txn.Hosts) - 1; i >= 0 && left > 0; i-- {
		h := txn.Hosts[i]
		wanted := p.GrowThreads(txn.Target, h)
		if wanted < left {
			return nil, nil
		}
		got, err := grow.ReserveOnHost(wanted, h)
		if err != nil {
			return nil, err
		}
		if got == 0 {
			continue
		}
		left -= got
		money, err := p.GrowAmount(txn.Target, got, h)
		if err != nil {
			return nil, err
		}
		txn.Target.MoneyAvailable = money
	}
	if left > 0 {
		return nil, nil
	}
	txn.Scripts = append(txn.Scripts, grow)

	weaken := p.newScript(KindWeaken)
	weakens := int(math.Ceil(float64(grows) * cluster.WeakensPerGrow))
	got, err := weaken.ReserveFromStart(weakens, txn.Hosts)
	if err != nil {
		return nil, err
	}
	if got != weakens {
		return nil, nil
	}
	txn.Scripts = append(txn.Scripts, weaken)

	txn.Tally.Add(fmt.Sprintf("%d grow, %d weaken", grows, weakens), 1)
	return txn, nil
}

// HWGW plans one hack, weaken, grow, weaken batch of hacks hack threads and
// commits it. It reports false, leaving p untouched, if any of the four
// steps cannot get every thread it needs.
func (pl *Planner) HWGW(p *Plan, hacks int) (bool, error) {
	txn := p.Transaction()

	hack := p.newScript(KindHack)
	got, err := hack.ReserveFromStart(hacks, txn.Hosts)
	if err != nil || got != hacks {
		return false, err
	}
	txn.Scripts = append(txn.Scripts, hack)
	stolen := txn.Target.MoneyMax * p.HackMultiplier * float64(hacks)
	txn.Target.MoneyAvailable -= math.Min(stolen, txn.Target.MoneyAvailable)

	hackWeaken := p.newScript(KindWeaken)
	weakensHack := int(math.Ceil(cluster.WeakensPerHack * float64(hacks)))
	got, err = hackWeaken.ReserveFromStart(weakensHack, txn.Hosts)
	if err != nil || got != weakensHack {
		return false, err
	}
	txn.Scripts = append(txn.Scripts, hackWeaken)

	grow := p.newScript(KindGrow)
	growsTotal := 0
	for i := len(txn.Hosts) - 1; i >= 0 && txn.Target.MoneyAvailable < txn.Target.MoneyMax; i-- {
		h := txn.Hosts[i]
		got, err := grow.ReserveOnHost(p.GrowThreads(txn.Target, h), h)
		if err != nil {
			return false, err
		}
		if got == 0 {
			continue
		}
		growsTotal += got
		money, err := p.GrowAmount(txn.Target, got, h)
		if err != nil {
			return false, err
		}
		txn.Target.MoneyAvailable = money
	}
	if txn.Target.MoneyAvailable < txn.Target.MoneyMax {
		return false, nil
	}
	txn.Scripts = append(txn.Scripts, grow)

	growWeaken := p.newScript(KindWeaken)
	weakensGrow := int(math.Ceil(cluster.WeakensPerGrow * float64(growsTotal)))
	got, err = growWeaken.ReserveFromStart(weakensGrow, txn.Hosts)
	if err != nil || got != weakensGrow {
		return false, err
	}
	txn.Scripts = append(txn.Scripts, growWeaken)

	txn.Batches++
	txn.Tally.Add(fmt.Sprintf("%d hack, %d weaken, %d grow, %d weaken", hacks, weakensHack, growsTotal, weakensGrow), 1)
	txn.Commit()
	return true, nil
}

// HacksPerBatch picks the hack threads per batch that steal the most money
// per GB. The estimate uses the largest host for hack and weaken threads
// and the smallest for grow threads, and rejects batches needing more than
// the pack ratio of the plan's capacity. It returns -1 when no candidate
// fits or the hack multiplier is too small to search.
func (pl *Planner) HacksPerBatch(p *Plan) (int, error) {
	if p.HackMultiplier <= 0 || len(p.hosts) == 0 {
		return -1, nil
	}
	// More threads than this have nothing left to steal.
	limit := math.Floor(1 / p.HackMultiplier)
	if limit > float64(pl.maxHackCandidates) {
		return -1, nil
	}

	ramToStart := p.RAMAvailable()
	best := p.hosts[len(p.hosts)-1]
	worst := p.hosts[0]

	ramHack, err := best.CostOf(pl.scripts.Hack)
	if err != nil {
		return -1, err
	}
	ramWeaken, err := best.CostOf(pl.scripts.Weaken)
	if err != nil {
		return -1, err
	}
	ramGrow, err := worst.CostOf(pl.scripts.Grow)
	if err != nil {
		return -1, err
	}

	grows := p.GrowThreads(p.target, worst)
	weakensGrow := math.Ceil(cluster.WeakensPerGrow * float64(grows))

	bestEfficiency := 0.0
	bestHacks := -1
	for i := 1; i <= int(limit); i++ {
		weakensHack := math.Ceil(cluster.WeakensPerHack * float64(i))
		ramLowerBound := float64(i)*ramHack +
			weakensHack*ramWeaken +
			float64(grows)*ramGrow +
			weakensGrow*ramWeaken
		if ramLowerBound > ramToStart*pl.packRatio {
			continue
		}

		// Every batch finishes at the same time, so time drops out.
		money := math.Min(p.HackMultiplier*float64(i), p.target.MoneyAvailable)
		efficiency := money / ramLowerBound
		if efficiency <= bestEfficiency {
			continue
		}
		bestEfficiency = efficiency
		bestHacks = i
	}
	return bestHacks, nil
}

// Progress receives the number of planned workers while batching.
type Progress func(awaits int, elapsed time.Duration)

// Batch commits HWGW batches of hacks hack threads until one no longer
// fits or the await ceiling is reached. It yields every yield interval and
// reports progress then and once at the end. Cancelling ctx stops batching
// early with the batches committed so far kept.
func (pl *Planner) Batch(ctx context.Context, p *Plan, hacks int, progress Progress) error {
	if hacks < 1 {
		return errors.NewPlanningError(fmt.Sprintf("%d hacks per batch", hacks), errors.ErrInfeasible).
			WithStep("batch").WithTarget(p.target.Hostname)
	}
	if progress == nil {
		progress = func(int, time.Duration) {}
	}

	start := time.Now()
	lastYield := start
	for p.awaits < pl.maxAwaits {
		if time.Since(lastYield) > pl.yieldInterval {
			progress(p.awaits, time.Since(start))
			runtime.Gosched()
			if err := ctx.Err(); err != nil {
				break
			}
			lastYield = time.Now()
		}
		ok, err := pl.HWGW(p, hacks)
		if err != nil {
			return err
		}
		// Probably out of capacity.
		if !ok {
			break
		}
	}
	progress(p.awaits, time.Since(start))
	return nil
}
