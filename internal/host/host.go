// Package host models the capacity of one worker server during planning.
//
// A Host is created once per planning cycle from a server snapshot and
// copied cheaply whenever a planning transaction needs a mutable view. The
// copy duplicates the reservable capacity but shares the per-script cost
// cache, since what a script costs is a property of the server, not of any
// plan.
package host

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Iron-Ham/heist/internal/cluster"
	"github.com/Iron-Ham/heist/internal/errors"
)

// Defaults for the always-on home host.
const (
	DefaultHome      = "home"
	DefaultReserveGB = 256
)

// Coster reports the GB one thread of a script costs on a server.
type Coster interface {
	ScriptRAM(script, hostname string) float64
}

// Host is one server's reservable capacity.
type Host struct {
	Server   cluster.Server
	Hostname string
	Cores    int
	// RAMAvailable is the capacity not yet reserved, in GB.
	RAMAvailable float64

	costs *costCache
}

type costCache struct {
	mu     sync.Mutex
	coster Coster
	ram    map[string]float64
}

// Option configures FromServer.
type Option func(*options)

type options struct {
	home      string
	reserveGB float64
}

// WithReserve keeps reserveGB of capacity on the server named home out of
// scheduling.
func WithReserve(home string, reserveGB float64) Option {
	return func(o *options) {
		o.home = home
		o.reserveGB = reserveGB
	}
}

// FromServer creates a Host whose capacity is MaxRAM - RAMUsed, less the
// home reserve when server is the home host.
func FromServer(server cluster.Server, costs Coster, opts ...Option) *Host {
	o := options{home: DefaultHome, reserveGB: DefaultReserveGB}
	for _, opt := range opts {
		opt(&o)
	}

	available := server.FreeRAM()
	if server.Hostname == o.home {
		available = math.Max(available-o.reserveGB, 0)
	}

	return &Host{
		Server:       server,
		Hostname:     server.Hostname,
		Cores:        server.CPUCores,
		RAMAvailable: available,
		costs:        &costCache{coster: costs, ram: make(map[string]float64)},
	}
}

// Copy returns a Host with its own capacity counter and the same cost cache.
func (h *Host) Copy() *Host {
	c := *h
	return &c
}

// CostOf returns the GB one thread of script needs on this host. A script
// that reports no cost is missing or broken and cannot be scheduled.
func (h *Host) CostOf(script string) (float64, error) {
	h.costs.mu.Lock()
	defer h.costs.mu.Unlock()

	if ram, ok := h.costs.ram[script]; ok {
		return ram, nil
	}
	ram := h.costs.coster.ScriptRAM(script, h.Hostname)
	if ram == 0 {
		return 0, errors.NewDiscoveryError(
			fmt.Sprintf("%s is either missing from %s or doesn't compile", script, h.Hostname),
			errors.ErrScriptMissing,
		).WithHost(h.Hostname).WithScript(script)
	}
	h.costs.ram[script] = ram
	return ram, nil
}

// ThreadsAvailable returns how many threads of script still fit.
func (h *Host) ThreadsAvailable(script string) (int, error) {
	ram, err := h.CostOf(script)
	if err != nil {
		return 0, err
	}
	return int(math.Floor(h.RAMAvailable / ram)), nil
}

// Sort orders hosts ascending by core count, then by available capacity.
func Sort(hosts []*Host) {
	sort.SliceStable(hosts, func(i, j int) bool {
		if hosts[i].Cores != hosts[j].Cores {
			return hosts[i].Cores < hosts[j].Cores
		}
		return hosts[i].RAMAvailable < hosts[j].RAMAvailable
	})
}

// CopyAll copies every host.
func CopyAll(hosts []*Host) []*Host {
	out := make([]*Host, len(hosts))
	for i, h := range hosts {
		out[i] = h.Copy()
	}
	return out
}

// TotalAvailable sums RAMAvailable.
func TotalAvailable(hosts []*Host) float64 {
	var total float64
	for _, h := range hosts {
		total += h.RAMAvailable
	}
	return total
}
