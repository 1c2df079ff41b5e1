// Package search holds the numeric searches the planner uses to invert
// opaque, monotonic cost functions.
package search

import (
	"fmt"
	"math"

	"github.com/Iron-Ham/heist/internal/errors"
)

// Exponential returns the largest n >= start for which pred(n) holds, or 0
// if pred(start) is false. pred must be true up to some threshold and false
// above it. The lower bound doubles until pred fails, then the bracket is
// bisected.
func Exponential(start int, pred func(int) bool) (int, error) {
	if start < 1 {
		return 0, errors.NewValidationError("must be positive").WithField("start").WithValue(start)
	}
	if !pred(start) {
		return 0, nil
	}

	current, end := start, -1
	for end == -1 || current+1 < end {
		var step int
		if end == -1 {
			step = current
		} else {
			step = (end - current) / 2
		}
		if pred(current + step) {
			current += step
		} else {
			end = current + step
		}
	}
	return current, nil
}

// GrowthAnalyzer reports the grow threads needed to multiply a server's
// money by multiplier on a host with cores cores.
type GrowthAnalyzer func(multiplier float64, cores int) float64

// GrowIterations caps GrowPercent's bisection.
const GrowIterations = 100

// GrowPercent returns the money multiplier threads grow threads achieve
// against a server holding money. The analyzer can only be asked the other
// way round, so the multiplier doubles until the analyzer stops
// undershooting and is then bisected. The search stops early once the
// resulting whole-dollar amount stops changing.
func GrowPercent(analyze GrowthAnalyzer, money float64, threads, cores int) (float64, error) {
	if threads < 1 {
		return 0, errors.NewValidationError("must be a positive integer").WithField("threads").WithValue(threads)
	}
	if money < 1 {
		return 0, errors.NewValidationError("must be at least 1").WithField("money").WithValue(money)
	}

	bottom, top := 1.0, -1.0
	mult := 1.0
	last := 0.0
	for range GrowIterations {
		needed := analyze(mult, cores)
		switch {
		case needed < float64(threads):
			bottom = mult
		case needed > float64(threads):
			top = mult
		}

		if top == -1 {
			mult *= 2
		} else {
			mult = (bottom + top) / 2
		}

		next := math.Trunc(money * mult)
		if next == last {
			break
		}
		last = next
	}
	if math.IsInf(mult, 0) || math.IsNaN(mult) {
		return 0, fmt.Errorf("grow multiplier diverged for %d threads", threads)
	}
	return mult, nil
}
