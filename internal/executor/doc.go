// Package executor launches a committed plan.
//
// Every worker in a plan is started with a delay chosen so that all of them
// finish at the same instant: the plan's deadline is the longest operation
// duration, and each worker waits the deadline minus its own duration
// before starting. The last worker spawned signals STEAL_DONE to the
// coordinator when it finishes.
//
// While it waits, the coordinator fills whatever capacity the plan left
// free with share workers, starting a new round each time the previous one
// reports SHARE_DONE. Share workers still running when the plan completes
// are killed.
package executor
