// Package format renders planner quantities for operators: capacity in
// GB, money, durations and terminal-width-safe cells.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/docker/go-units"
)

var numberSuffixes = []string{"", "k", "m", "b", "t", "q", "Q", "s", "S"}

// RAM formats a capacity given in GB, e.g. "256GB" or "1.049PB".
func RAM(gb float64) string {
	if gb < 0 {
		return "-" + RAM(-gb)
	}
	return units.HumanSizeWithPrecision(gb*1e9, 4)
}

// Int formats a number with a short suffix, e.g. "1.5m". Values below
// 1000 are printed as whole numbers.
func Int(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "∞"
	case math.IsInf(n, -1):
		return "-∞"
	case n < 0:
		return "-" + Int(-n)
	case n < 1000:
		return fmt.Sprintf("%d", int64(n))
	}
	return units.CustomSize("%.4g%s", n, 1000.0, numberSuffixes)
}

// Money formats a dollar amount.
func Money(n float64) string {
	return "$" + Int(n)
}

// Duration formats d the way operators read it: "2 hours 3 minutes 4
// seconds", dropping zero leading units. Durations under a second keep
// millisecond precision.
func Duration(d time.Duration) string {
	if d < 0 {
		return "-" + Duration(-d)
	}
	if d < time.Second {
		return fmt.Sprintf("%d milliseconds", d.Milliseconds())
	}

	d = d.Round(time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{int64(d / (24 * time.Hour)), "day"},
		{int64(d/time.Hour) % 24, "hour"},
		{int64(d/time.Minute) % 60, "minute"},
		{int64(d/time.Second) % 60, "second"},
	}

	var out []string
	for _, p := range parts {
		if p.n == 0 {
			continue
		}
		unit := p.unit
		if p.n != 1 {
			unit += "s"
		}
		out = append(out, fmt.Sprintf("%d %s", p.n, unit))
	}
	return strings.Join(out, " ")
}

// Elapsed formats a short stopwatch reading, e.g. "12.3ms".
func Elapsed(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}

// Truncate shortens s to maxWidth visual columns, adding "..." if it was
// cut. ANSI escape sequences and wide characters are handled.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}
