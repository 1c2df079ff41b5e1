package event

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBus_Publish(t *testing.T) {
	bus := NewBus()

	var received Event
	bus.Subscribe(TypePlanCommitted, func(e Event) {
		received = e
	})

	bus.Publish(NewPlanCommittedEvent("run-1", "n00dles", 3, 40, 12.5))

	committed, ok := received.(PlanCommittedEvent)
	if !ok {
		t.Fatalf("received %T, want PlanCommittedEvent", received)
	}
	if committed.Target != "n00dles" || committed.Batches != 3 || committed.Awaits != 40 {
		t.Errorf("unexpected event payload: %+v", committed)
	}
	if committed.Timestamp().IsZero() {
		t.Error("Timestamp() should be set")
	}
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TypeShareRound, func(e Event) {
		t.Error("handler should not be called for non-matching event type")
	})
	bus.Publish(NewIterationStartedEvent("run-1", false))
}

func TestBus_NilPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(NewShareRoundEvent(1, 2))
}

func TestBus_SpecificBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) {
		order = append(order, "wildcard:"+e.EventType())
	})
	bus.Subscribe(TypeSignalDispatched, func(e Event) {
		order = append(order, "specific:"+e.EventType())
	})

	bus.Publish(NewSignalDispatchedEvent(1, 2, 7, "STEAL_DONE"))

	want := []string{"specific:signal.dispatched", "wildcard:signal.dispatched"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := make(map[string]int)
	id1 := bus.Subscribe(TypeWorkersSpawned, func(e Event) { calls["first"]++ })
	bus.Subscribe(TypeWorkersSpawned, func(e Event) { calls["second"]++ })

	if !bus.Unsubscribe(id1) {
		t.Fatal("Unsubscribe should return true for a known ID")
	}
	if bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return false the second time")
	}

	bus.Publish(NewWorkersSpawnedEvent("hack.js", 2, 10))

	if calls["first"] != 0 || calls["second"] != 1 {
		t.Errorf("calls = %v", calls)
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", bus.SubscriptionCount())
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TypeShareRound, func(e Event) {})
	bus.SubscribeAll(func(e Event) {})
	bus.Clear()
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Clear", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.Subscribe(TypeIterationFinished, func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe(TypeIterationFinished, func(e Event) {
		calls++
	})

	bus.Publish(NewIterationFinishedEvent("run-1", "foodnstuff", time.Second, 10, errors.New("x")))

	if calls != 2 {
		t.Errorf("expected both handlers to be called despite panic, got %d calls", calls)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(TypeStatusUpdated, func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() {
			bus.Publish(NewStatusUpdatedEvent(i, "steal.js", "ok"))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("expected 100 calls, got %d", calls)
	}
}

func TestBus_UniqueIDs(t *testing.T) {
	bus := NewBus()

	ids := make(map[string]bool)
	for range 100 {
		id := bus.Subscribe(TypeShareRound, func(e Event) {})
		if ids[id] {
			t.Errorf("duplicate subscription ID: %s", id)
		}
		ids[id] = true
	}
}
