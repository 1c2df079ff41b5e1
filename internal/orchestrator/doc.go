// Package orchestrator runs the planner loop.
//
// Each iteration discovers and roots servers, picks a target, plans prep
// and HWGW batches against every rooted host, then hands the plan to an
// executor.Coordinator and waits for it to finish. Iterations repeat until
// a STOP signal arrives, which takes effect once the current iteration
// ends. A dry run plans once and never spawns workers.
//
// The planner's own listener runs alongside the loop; a protocol error on
// it cancels the iteration in progress.
package orchestrator
