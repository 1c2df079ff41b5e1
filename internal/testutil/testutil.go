// Package testutil provides shared fixtures for heist tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/heist/internal/sim"
)

// SingleTargetWorld is a two-server network: a 64GB home host and n00dles,
// a 4GB server already at maximum money and minimum security. Every
// worker program and NUKE.exe are on home.
const SingleTargetWorld = `
seed: 3
player:
  hacking: 100
  karma: -1500
home_files: [hack.js, grow.js, weaken.js, share.js, lib/dan.js, NUKE.exe]
share_time: 10
servers:
  - hostname: home
    max_ram: 64
    admin: true
    links: [n00dles]
  - hostname: n00dles
    max_ram: 4
    base_difficulty: 1
    min_difficulty: 1
    money_available: 1000000
    money_max: 1000000
    server_growth: 3000
    required_hacking_skill: 1
`

// FastTimeScale makes a weaken on n00dles in SingleTargetWorld take about
// 7ms.
const FastTimeScale = 0.0001

// NewSim builds a Sim from the world YAML doc. It is closed when the test
// ends.
func NewSim(t *testing.T, doc string, opts ...sim.Option) *sim.Sim {
	t.Helper()

	w, err := sim.ParseWorld([]byte(doc))
	if err != nil {
		t.Fatalf("failed to parse world: %v", err)
	}
	s := sim.New(w, append([]sim.Option{sim.WithTimeScale(FastTimeScale)}, opts...)...)
	t.Cleanup(s.Close)
	return s
}

// WriteWorld writes doc to a world file in a temporary directory and
// returns its path.
func WriteWorld(t *testing.T, doc string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "world.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("failed to write world: %v", err)
	}
	return path
}
