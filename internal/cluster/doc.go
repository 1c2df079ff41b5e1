// Package cluster describes the world the planner schedules against and the
// operations it needs from it.
//
// The planner never reaches into a concrete environment. It consumes the
// small interfaces declared here ([Scanner], [Oracle], [Formulas],
// [Rooter], [Market], [Spawner], [Processes]); internal/sim provides an
// in-memory implementation of all of them.
//
// The package also holds the environment-level steps of a planning cycle
// that only need those interfaces:
//   - [Discover] walks the network breadth-first from the home host.
//   - [Root] opens ports, gains admin rights and copies worker programs,
//     returning the servers that can run workers.
//   - [Purchase] buys and upgrades purchased servers.
//   - [SuggestPorts] tells the operator which port openers to buy.
package cluster
