package plan

import (
	"math"
	"time"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/host"
	"github.com/Iron-Ham/heist/internal/search"
)

// Plan accumulates committed reservations for one planning cycle.
//
// The committed scripts always account for exactly the capacity missing
// from the plan's hosts.
type Plan struct {
	Player cluster.Player
	// HackMultiplier is the fraction of money one hack thread steals.
	HackMultiplier float64
	GrowTime       time.Duration
	HackTime       time.Duration
	WeakenTime     time.Duration

	oracle   cluster.Oracle
	formulas cluster.Formulas
	scripts  cluster.Scripts

	hosts  []*host.Host
	target cluster.Server

	awaits  int
	batches int
	tally   *Tally
	groups  [][]*Script
}

// Awaits returns the number of reservations committed, one worker each.
func (p *Plan) Awaits() int { return p.awaits }

// Batches returns the number of HWGW batches committed.
func (p *Plan) Batches() int { return p.batches }

// Hosts returns the plan's hosts with their remaining capacity.
func (p *Plan) Hosts() []*host.Host { return p.hosts }

// Target returns the target as it will be once every committed script ran.
func (p *Plan) Target() cluster.Server { return p.target }

// Tally returns the planning decisions made so far.
func (p *Plan) Tally() *Tally { return p.tally }

// Groups returns the committed scripts, one group per commit.
func (p *Plan) Groups() [][]*Script { return p.groups }

// Scripts returns the worker program names.
func (p *Plan) Scripts() cluster.Scripts { return p.scripts }

// HasFormulas reports whether precise formulas back the estimates.
func (p *Plan) HasFormulas() bool { return p.formulas != nil }

// RAMAvailable returns the capacity left across all hosts.
func (p *Plan) RAMAvailable() float64 {
	return host.TotalAvailable(p.hosts)
}

// Duration returns how long one run of k takes.
func (p *Plan) Duration(k Kind) time.Duration {
	switch k {
	case KindHack:
		return p.HackTime
	case KindGrow:
		return p.GrowTime
	default:
		return p.WeakenTime
	}
}

func (p *Plan) newScript(k Kind) *Script {
	path := p.scripts.Weaken
	switch k {
	case KindHack:
		path = p.scripts.Hack
	case KindGrow:
		path = p.scripts.Grow
	}
	return &Script{Kind: k, Path: path, Duration: p.Duration(k)}
}

// GrowAmount returns target's money after grows threads run on h.
func (p *Plan) GrowAmount(target cluster.Server, grows int, h *host.Host) (float64, error) {
	if p.formulas != nil {
		return p.formulas.GrowAmount(target, p.Player, grows, h.Cores), nil
	}
	// The estimate needs money to multiply.
	if target.MoneyAvailable < 1 || grows < 1 {
		return target.MoneyAvailable, nil
	}
	analyze := func(mult float64, cores int) float64 {
		return p.oracle.GrowthAnalyze(target.Hostname, mult, cores)
	}
	mult, err := search.GrowPercent(analyze, target.MoneyAvailable, grows, h.Cores)
	if err != nil {
		return 0, err
	}
	return math.Min(target.MoneyAvailable*mult, target.MoneyMax), nil
}

// GrowThreads returns the grow threads h needs to bring target to its
// maximum money.
func (p *Plan) GrowThreads(target cluster.Server, h *host.Host) int {
	if p.formulas != nil {
		return p.formulas.GrowThreads(target, p.Player, target.MoneyMax, h.Cores)
	}
	mult := 1.0
	if target.MoneyAvailable > 0 {
		mult = target.MoneyMax / target.MoneyAvailable
	}
	return int(math.Ceil(p.oracle.GrowthAnalyze(target.Hostname, mult, h.Cores)))
}

// Transaction is a disposable working copy of a Plan.
type Transaction struct {
	Batches int
	Tally   *Tally
	Hosts   []*host.Host
	Scripts []*Script
	Target  cluster.Server

	plan *Plan
}

// Transaction starts a planning step against copies of p's hosts and
// target.
func (p *Plan) Transaction() *Transaction {
	return &Transaction{
		Tally:  NewTally(),
		Hosts:  host.CopyAll(p.hosts),
		Target: p.target,
		plan:   p,
	}
}

// Commit merges the transaction into its plan and returns the plan.
func (t *Transaction) Commit() *Plan {
	p := t.plan
	for _, s := range t.Scripts {
		p.awaits += len(s.Reservations)
	}
	p.batches += t.Batches
	p.tally.Merge(t.Tally)
	p.hosts = t.Hosts
	p.target = t.Target
	p.groups = append(p.groups, t.Scripts)
	return p
}
