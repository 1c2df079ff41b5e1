// Package event provides a synchronous pub-sub bus that lets the planner,
// executor, listener and monitor report what they are doing without
// depending on whoever consumes it (metrics, logs, the dashboard).
//
// Event types follow the "category.action" convention:
//   - iteration.started, iteration.finished
//   - plan.committed
//   - workers.spawned, share.round
//   - signal.dispatched
//   - status.updated
//
// Handlers run on the publisher's goroutine. A panicking handler is logged
// and does not stop delivery to the remaining handlers.
//
//	bus := event.NewBus(event.WithLogger(logger))
//	bus.Subscribe(event.TypePlanCommitted, func(e event.Event) {
//	    committed := e.(event.PlanCommittedEvent)
//	    fmt.Println(committed.Batches)
//	})
package event
