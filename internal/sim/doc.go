// Package sim is an in-memory network that implements every cluster
// interface. It is the environment the heist commands drive.
//
// Servers, links and the player come from a YAML world file. Hacking
// outcomes follow the usual growth, chance and timing curves; durations
// are multiplied by a time scale so whole batches can run in milliseconds.
// Worker processes are goroutines running the worker programs against the
// simulated servers; they hold their host's RAM until they exit and talk to
// the planner through the same mailboxes a real deployment would use.
package sim
