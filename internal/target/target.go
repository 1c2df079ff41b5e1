// Package target picks the server to steal from.
package target

import (
	"math"
	"time"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/errors"
)

// Score is one candidate's estimated throughput.
type Score struct {
	Server cluster.Server
	// Efficiency is money per GB per unit of batch time.
	Efficiency float64
	Hacks      float64
	Grows      float64
	Weakens    float64
	// RAMPerBatch is the GB one batch needs.
	RAMPerBatch float64
}

// Best returns the rooted server with the highest money per GB per second
// when fully weakened and grown.
func Best(o cluster.Oracle, servers []cluster.Server, scripts cluster.Scripts) (cluster.Server, error) {
	best, ok := rank(o, servers, scripts)
	if !ok {
		return cluster.Server{}, errors.NewDiscoveryError("could not find best target", errors.ErrNoTarget)
	}
	return best.Server, nil
}

// Rank scores every eligible server, in input order.
func Rank(o cluster.Oracle, servers []cluster.Server, scripts cluster.Scripts) []Score {
	formulas, hasFormulas := o.Formulas()
	player := o.Player()

	var scores []Score
	for _, s := range servers {
		if !s.HasAdminRights || s.MoneyMax == 0 {
			continue
		}
		scores = append(scores, score(o, formulas, hasFormulas, player, s, scripts))
	}
	return scores
}

func rank(o cluster.Oracle, servers []cluster.Server, scripts cluster.Scripts) (Score, bool) {
	var best Score
	found := false
	for _, sc := range Rank(o, servers, scripts) {
		if sc.Efficiency > best.Efficiency {
			best = sc
			found = true
		}
	}
	return best, found
}

func score(o cluster.Oracle, f cluster.Formulas, hasFormulas bool, p cluster.Player, s cluster.Server, scripts cluster.Scripts) Score {
	ramGrow := o.ScriptRAM(scripts.Grow, s.Hostname)
	ramHack := o.ScriptRAM(scripts.Hack, s.Hostname)
	ramWeaken := o.ScriptRAM(scripts.Weaken, s.Hostname)

	// As if the server were fully grown and weakened.
	var chance, percent, batchTime float64
	if hasFormulas {
		scratch := s
		scratch.HackDifficulty = s.MinDifficulty
		scratch.MoneyAvailable = s.MoneyMax
		chance = f.HackChance(scratch, p)
		percent = f.HackPercent(scratch, p)
		batchTime = millis(max(f.GrowTime(scratch, p), f.HackTime(scratch, p), f.WeakenTime(scratch, p)))
	} else {
		// Rough stand-ins until precise formulas are unlocked.
		chance = 1 / float64(s.RequiredHackingSkill)
		percent = s.MinDifficulty
		batchTime = s.MinDifficulty
	}

	hacks := 1 / (percent * chance)
	var grows float64
	if hasFormulas {
		scratch := s
		scratch.HackDifficulty = s.MinDifficulty
		scratch.MoneyAvailable = 0
		grows = float64(f.GrowThreads(scratch, p, s.MoneyMax, 1))
	} else {
		grows = hacks / s.ServerGrowth
	}

	weakens := math.Ceil(hacks*cluster.WeakensPerHack) + math.Ceil(grows*cluster.WeakensPerGrow)
	ram := hacks*ramHack + grows*ramGrow + weakens*ramWeaken
	return Score{
		Server:      s,
		Efficiency:  s.MoneyMax / (ram * batchTime),
		Hacks:       hacks,
		Grows:       grows,
		Weakens:     weakens,
		RAMPerBatch: ram,
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
