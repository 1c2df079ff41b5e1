package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeIterationStarted  = "iteration.started"
	TypeIterationFinished = "iteration.finished"
	TypePlanCommitted     = "plan.committed"
	TypeWorkersSpawned    = "workers.spawned"
	TypeSignalDispatched  = "signal.dispatched"
	TypeShareRound        = "share.round"
	TypeStatusUpdated     = "status.updated"
)

// -----------------------------------------------------------------------------
// Iteration Events
// -----------------------------------------------------------------------------

// IterationStartedEvent is emitted at the top of every planner iteration.
type IterationStartedEvent struct {
	baseEvent
	RunID  string
	DryRun bool
}

// NewIterationStartedEvent creates an IterationStartedEvent.
func NewIterationStartedEvent(runID string, dryRun bool) IterationStartedEvent {
	return IterationStartedEvent{
		baseEvent: newBaseEvent(TypeIterationStarted),
		RunID:     runID,
		DryRun:    dryRun,
	}
}

// IterationFinishedEvent is emitted once a plan has been executed (or
// skipped in a dry run).
type IterationFinishedEvent struct {
	baseEvent
	RunID          string
	Target         string
	Elapsed        time.Duration
	MoneyPerSecond float64
	Err            error
}

// NewIterationFinishedEvent creates an IterationFinishedEvent.
func NewIterationFinishedEvent(runID, target string, elapsed time.Duration, moneyPerSecond float64, err error) IterationFinishedEvent {
	return IterationFinishedEvent{
		baseEvent:      newBaseEvent(TypeIterationFinished),
		RunID:          runID,
		Target:         target,
		Elapsed:        elapsed,
		MoneyPerSecond: moneyPerSecond,
		Err:            err,
	}
}

// -----------------------------------------------------------------------------
// Planning Events
// -----------------------------------------------------------------------------

// PlanCommittedEvent is emitted when the planner hands a plan to the executor.
type PlanCommittedEvent struct {
	baseEvent
	RunID        string
	Target       string
	Batches      int
	Awaits       int
	FreeCapacity float64 // GB left unreserved across all hosts
}

// NewPlanCommittedEvent creates a PlanCommittedEvent.
func NewPlanCommittedEvent(runID, target string, batches, awaits int, free float64) PlanCommittedEvent {
	return PlanCommittedEvent{
		baseEvent:    newBaseEvent(TypePlanCommitted),
		RunID:        runID,
		Target:       target,
		Batches:      batches,
		Awaits:       awaits,
		FreeCapacity: free,
	}
}

// -----------------------------------------------------------------------------
// Execution Events
// -----------------------------------------------------------------------------

// WorkersSpawnedEvent is emitted after the executor launched a script's
// reservations.
type WorkersSpawnedEvent struct {
	baseEvent
	Script    string
	Processes int
	Threads   int
}

// NewWorkersSpawnedEvent creates a WorkersSpawnedEvent.
func NewWorkersSpawnedEvent(script string, processes, threads int) WorkersSpawnedEvent {
	return WorkersSpawnedEvent{
		baseEvent: newBaseEvent(TypeWorkersSpawned),
		Script:    script,
		Processes: processes,
		Threads:   threads,
	}
}

// ShareRoundEvent is emitted each time leftover capacity is filled with
// share workers.
type ShareRoundEvent struct {
	baseEvent
	Round     int
	Processes int
}

// NewShareRoundEvent creates a ShareRoundEvent.
func NewShareRoundEvent(round, processes int) ShareRoundEvent {
	return ShareRoundEvent{
		baseEvent: newBaseEvent(TypeShareRound),
		Round:     round,
		Processes: processes,
	}
}

// -----------------------------------------------------------------------------
// Signal Events
// -----------------------------------------------------------------------------

// SignalDispatchedEvent is emitted after a listener ran the handler for a
// signal.
type SignalDispatchedEvent struct {
	baseEvent
	Receiver int
	Sender   int
	Code     int
	Name     string
}

// NewSignalDispatchedEvent creates a SignalDispatchedEvent.
func NewSignalDispatchedEvent(receiver, sender, code int, name string) SignalDispatchedEvent {
	return SignalDispatchedEvent{
		baseEvent: newBaseEvent(TypeSignalDispatched),
		Receiver:  receiver,
		Sender:    sender,
		Code:      code,
		Name:      name,
	}
}

// StatusUpdatedEvent is emitted by the monitor when a worker's status text
// changes.
type StatusUpdatedEvent struct {
	baseEvent
	PID    int
	Script string
	Text   string
}

// NewStatusUpdatedEvent creates a StatusUpdatedEvent.
func NewStatusUpdatedEvent(pid int, script, text string) StatusUpdatedEvent {
	return StatusUpdatedEvent{
		baseEvent: newBaseEvent(TypeStatusUpdated),
		PID:       pid,
		Script:    script,
		Text:      text,
	}
}
