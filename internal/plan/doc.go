// Package plan builds batch plans: which worker programs run on which
// hosts, with how many threads, so that a target is first prepped to
// minimum security and maximum money and then repeatedly hacked and
// restored.
//
// # Transactions
//
// Every planning step works on a [Transaction], a copy of the plan's hosts
// and target. Reservations made inside a transaction only touch the copies.
// A step that cannot reserve everything it needs simply drops its
// transaction, leaving the parent [Plan] unchanged; a step that succeeds
// calls [Transaction.Commit] to merge its scripts, counters and host
// capacities back into the plan.
//
// # Host order
//
// Hosts are sorted ascending by cores and capacity. Hack and weaken threads
// are reserved from the front of the list so that the large hosts at the
// back stay free for grow threads, which gain from being concentrated on a
// single many-core host.
//
// # Usage
//
//	planner := plan.NewPlanner(oracle, plan.WithLogger(logger))
//	p := planner.Base(player, hosts, target)
//	p, err := planner.Prep(p)
//	hacks, err := planner.HacksPerBatch(p)
//	err = planner.Batch(ctx, p, hacks, nil)
package plan
