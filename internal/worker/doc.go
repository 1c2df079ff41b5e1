// Package worker implements the short-lived worker programs the executor
// spawns: hack, grow and weaken run a single operation against a target
// after a delay, share lends capacity for a while. Each optionally signals
// the identity that spawned it once its operation finished.
//
// Workers receive their arguments as command-line style flags so that any
// environment able to start a process with argv can host them:
//
//	--delay=1500 --server=12 --target=joesguns
//
// The package also holds the stop client, which asks a planner to quit
// after its current iteration.
package worker
