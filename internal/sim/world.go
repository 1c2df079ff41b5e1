package sim

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/heist/internal/cluster"
)

//go:embed default_world.yaml
var defaultWorld []byte

// World describes a network to simulate.
type World struct {
	// Seed drives hack success rolls.
	Seed   uint64         `yaml:"seed"`
	Home   string         `yaml:"home"`
	Player cluster.Player `yaml:"player"`
	// ScriptRAM is the GB one thread of each program needs.
	ScriptRAM map[string]float64 `yaml:"script_ram"`
	// HomeFiles are the files present on the home host.
	HomeFiles []string `yaml:"home_files"`
	Servers   []Node   `yaml:"servers"`
	Market    Market   `yaml:"market"`
	// ShareTime is how long one share run lasts.
	ShareTime Seconds `yaml:"share_time"`
}

// Node is a server and the hostnames it links to.
type Node struct {
	cluster.Server `yaml:",inline"`
	Links          []string `yaml:"links"`
}

// Market prices purchased servers.
type Market struct {
	Limit     int     `yaml:"limit"`
	MaxRAM    float64 `yaml:"max_ram"`
	CostPerGB float64 `yaml:"cost_per_gb"`
}

// Seconds is a YAML duration in seconds.
type Seconds float64

// DefaultWorld returns the built-in early-game network.
func DefaultWorld() (*World, error) {
	return ParseWorld(defaultWorld)
}

// LoadWorld reads a world file.
func LoadWorld(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world: %w", err)
	}
	return ParseWorld(data)
}

// ParseWorld decodes a YAML world and fills in defaults.
func ParseWorld(data []byte) (*World, error) {
	w := &World{}
	if err := yaml.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("parse world: %w", err)
	}
	if w.Home == "" {
		w.Home = "home"
	}
	if w.Player.Mults == (cluster.Multipliers{}) {
		w.Player.Mults = cluster.DefaultMultipliers()
	}
	if w.Market.Limit == 0 {
		w.Market.Limit = 25
	}
	if w.Market.MaxRAM == 0 {
		w.Market.MaxRAM = 1 << 20
	}
	if w.Market.CostPerGB == 0 {
		w.Market.CostPerGB = 55_000
	}
	if w.ShareTime == 0 {
		w.ShareTime = 10
	}
	if len(w.ScriptRAM) == 0 {
		w.ScriptRAM = map[string]float64{
			"hack.js":   1.7,
			"grow.js":   1.75,
			"weaken.js": 1.75,
			"share.js":  4,
		}
	}

	seen := make(map[string]bool, len(w.Servers))
	for i := range w.Servers {
		n := &w.Servers[i]
		if n.Hostname == "" {
			return nil, fmt.Errorf("server %d has no hostname", i)
		}
		if seen[n.Hostname] {
			return nil, fmt.Errorf("duplicate server %q", n.Hostname)
		}
		seen[n.Hostname] = true
		if n.CPUCores == 0 {
			n.CPUCores = 1
		}
		if n.HackDifficulty == 0 {
			n.HackDifficulty = n.BaseDifficulty
		}
	}
	if !seen[w.Home] {
		return nil, fmt.Errorf("home server %q is not defined", w.Home)
	}
	for _, n := range w.Servers {
		for _, l := range n.Links {
			if !seen[l] {
				return nil, fmt.Errorf("%s links to unknown server %q", n.Hostname, l)
			}
		}
	}
	return w, nil
}
