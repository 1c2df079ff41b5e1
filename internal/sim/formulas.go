package sim

import (
	"math"
	"time"

	"github.com/Iron-Ham/heist/internal/cluster"
)

// Growth constants.
const (
	baseGrowthRate = 1.03
	maxGrowthRate  = 1.0035
)

// formulas computes hacking outcomes for arbitrary server snapshots. Times
// are multiplied by scale so a simulated run can go faster than real time.
type formulas struct {
	scale float64
}

var _ cluster.Formulas = formulas{}

func (f formulas) HackChance(s cluster.Server, p cluster.Player) float64 {
	if p.Hacking <= 0 {
		return 0
	}
	skill := 1.75 * float64(p.Hacking)
	skillChance := (skill - float64(s.RequiredHackingSkill)) / skill
	chance := skillChance * difficultyFactor(s) * p.Mults.HackingChance
	return clamp(chance)
}

func (f formulas) HackPercent(s cluster.Server, p cluster.Player) float64 {
	if p.Hacking <= 0 {
		return 0
	}
	skill := (float64(p.Hacking) - float64(s.RequiredHackingSkill-1)) / float64(p.Hacking)
	percent := difficultyFactor(s) * skill * p.Mults.HackingMoney / 240
	return clamp(percent)
}

func (f formulas) HackTime(s cluster.Server, p cluster.Player) time.Duration {
	skillFactor := 2.5*float64(s.RequiredHackingSkill)*s.HackDifficulty + 500
	seconds := 5 * skillFactor / (float64(p.Hacking) + 50)
	speed := p.Mults.HackingSpeed
	if speed <= 0 {
		speed = 1
	}
	return time.Duration(seconds / speed * f.scale * float64(time.Second))
}

func (f formulas) GrowTime(s cluster.Server, p cluster.Player) time.Duration {
	return time.Duration(3.2 * float64(f.HackTime(s, p)))
}

func (f formulas) WeakenTime(s cluster.Server, p cluster.Player) time.Duration {
	return 4 * f.HackTime(s, p)
}

func (f formulas) GrowAmount(s cluster.Server, p cluster.Player, threads, cores int) float64 {
	if threads <= 0 {
		return s.MoneyAvailable
	}
	rate := growthRate(s)
	k := growthExponent(s, p, cores)
	money := (s.MoneyAvailable + float64(threads)) * math.Pow(rate, float64(threads)*k)
	return math.Min(money, s.MoneyMax)
}

func (f formulas) GrowThreads(s cluster.Server, p cluster.Player, target float64, cores int) int {
	target = math.Min(target, s.MoneyMax)
	if s.MoneyAvailable >= target {
		return 0
	}
	if growthExponent(s, p, cores) <= 0 {
		return math.MaxInt32
	}

	lo, hi := 0, 1
	for f.GrowAmount(s, p, hi, cores) < target {
		lo = hi
		hi *= 2
		if hi > math.MaxInt32 {
			return math.MaxInt32
		}
	}
	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		if f.GrowAmount(s, p, mid, cores) >= target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

// growthAnalyze returns the threads needed to multiply s's money by mult.
func growthAnalyze(s cluster.Server, p cluster.Player, mult float64, cores int) float64 {
	if mult <= 1 {
		return 0
	}
	k := growthExponent(s, p, cores)
	if k <= 0 {
		return math.Inf(1)
	}
	return math.Log(mult) / (math.Log(growthRate(s)) * k)
}

func growthRate(s cluster.Server) float64 {
	if s.HackDifficulty <= 0 {
		return maxGrowthRate
	}
	return math.Min(1+(baseGrowthRate-1)/s.HackDifficulty, maxGrowthRate)
}

func growthExponent(s cluster.Server, p cluster.Player, cores int) float64 {
	coreBonus := 1 + float64(cores-1)/16
	return s.ServerGrowth / 100 * p.Mults.HackingGrow * coreBonus
}

func difficultyFactor(s cluster.Server) float64 {
	return (100 - s.HackDifficulty) / 100
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

// weakenAmount returns the security removed by threads weaken threads.
func weakenAmount(threads, cores int) float64 {
	return cluster.SecurityPerWeaken * float64(threads) * (1 + float64(cores-1)/16)
}
