package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/event"
	"github.com/Iron-Ham/heist/internal/mailbox"
)

func TestSignal_String(t *testing.T) {
	tests := []struct {
		sig  Signal
		want string
	}{
		{Stop, "STOP"},
		{Heartbeat, "HEARTBEAT"},
		{StealDone, "STEAL_DONE"},
		{ShareDone, "SHARE_DONE"},
		{Status, "STATUS"},
		{Signal(4), "SIGNAL(4)"},
	}
	for _, tt := range tests {
		if got := tt.sig.String(); got != tt.want {
			t.Errorf("Signal(%d).String() = %q, want %q", int(tt.sig), got, tt.want)
		}
	}
}

func TestWriteSignal(t *testing.T) {
	reg := mailbox.NewRegistry(mailbox.WithCapacity(5))

	if err := WriteSignal(reg, 10, 2, StealDone); err != nil {
		t.Fatalf("WriteSignal() = %v", err)
	}
	box := reg.Handle(10)
	for _, want := range []int{Magic, 2, int(StealDone)} {
		if v, _ := box.Read(); v != want {
			t.Errorf("Read() = %v, want %d", v, want)
		}
	}
}

func TestWriteSignal_AllOrNothing(t *testing.T) {
	reg := mailbox.NewRegistry(mailbox.WithCapacity(5))

	if err := WriteSignal(reg, 1, 2, Stop); err != nil {
		t.Fatalf("first WriteSignal() = %v", err)
	}
	err := WriteSignal(reg, 1, 2, Stop)
	if !errors.Is(err, errors.ErrBufferExhausted) {
		t.Fatalf("second WriteSignal() = %v, want ErrBufferExhausted", err)
	}
	if !errors.IsProtocolViolation(err) {
		t.Error("buffer exhaustion should be a protocol violation")
	}
	if got := reg.Handle(1).Len(); got != 3 {
		t.Errorf("mailbox holds %d values after failed write, want 3", got)
	}
}

func TestWriteSignal_NoServer(t *testing.T) {
	if err := WriteSignal(mailbox.NewRegistry(), NoServer, 1, Status); err == nil {
		t.Error("WriteSignal() to NoServer should fail")
	}
}

func TestListener_RoundTrip(t *testing.T) {
	reg := mailbox.NewRegistry()
	bus := event.NewBus()
	var dispatched []event.SignalDispatchedEvent
	bus.Subscribe(event.TypeSignalDispatched, func(e event.Event) {
		dispatched = append(dispatched, e.(event.SignalDispatchedEvent))
	})

	l := NewListener(reg, 1, WithBus(bus))
	var senders []int
	if err := l.RegisterHandler(Status, func(sender int) { senders = append(senders, sender) }); err != nil {
		t.Fatal(err)
	}

	if err := WriteSignal(reg, 1, 42, Status); err != nil {
		t.Fatal(err)
	}
	if err := l.Next(context.Background()); err != nil {
		t.Fatalf("Next() = %v", err)
	}

	if len(senders) != 1 || senders[0] != 42 {
		t.Errorf("handler calls = %v, want [42]", senders)
	}
	if !reg.Handle(1).Empty() {
		t.Error("mailbox not empty after dispatch")
	}
	if len(dispatched) != 1 || dispatched[0].Code != int(Status) || dispatched[0].Sender != 42 {
		t.Errorf("dispatched events = %+v", dispatched)
	}
}

func TestListener_ClearsMailbox(t *testing.T) {
	reg := mailbox.NewRegistry()
	reg.Handle(3).Write("stale")
	NewListener(reg, 3)
	if !reg.Handle(3).Empty() {
		t.Error("NewListener() did not clear the mailbox")
	}
}

func TestListener_OrderAndWaiting(t *testing.T) {
	reg := mailbox.NewRegistry()
	l := NewListener(reg, 1)

	got := make(chan int, 3)
	_ = l.RegisterHandler(Heartbeat, func(sender int) { got <- sender })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- l.Listen(ctx) }()

	for sender := range 3 {
		time.Sleep(time.Millisecond)
		if err := WriteSignal(reg, 1, sender, Heartbeat); err != nil {
			t.Fatal(err)
		}
	}

	for want := range 3 {
		select {
		case sender := <-got:
			if sender != want {
				t.Errorf("sender = %d, want %d", sender, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Listen() = %v, want context.Canceled", err)
	}
}

func TestListener_UnknownSignalStops(t *testing.T) {
	reg := mailbox.NewRegistry()
	l := NewListener(reg, 1)
	called := false
	_ = l.RegisterHandler(Stop, func(int) { called = true })

	_ = WriteSignal(reg, 1, 5, ShareDone)
	_ = WriteSignal(reg, 1, 5, Stop)

	err := l.Listen(context.Background())
	if !errors.Is(err, errors.ErrUnknownSignal) {
		t.Fatalf("Listen() = %v, want ErrUnknownSignal", err)
	}
	if called {
		t.Error("listener read past the unknown signal")
	}
	if got := reg.Handle(1).Len(); got != 3 {
		t.Errorf("mailbox holds %d values, want the 3 of the unread frame", got)
	}
}

func TestListener_BadMagic(t *testing.T) {
	reg := mailbox.NewRegistry()
	l := NewListener(reg, 1)
	reg.Handle(1).TryWriteAll(83, 2, int(Stop))

	err := l.Next(context.Background())
	if !errors.Is(err, errors.ErrBadMagic) {
		t.Fatalf("Next() = %v, want ErrBadMagic", err)
	}
	if !errors.IsFatal(err) {
		t.Error("bad magic should be fatal")
	}
}

func TestListener_BadFrame(t *testing.T) {
	reg := mailbox.NewRegistry()
	l := NewListener(reg, 1)
	reg.Handle(1).TryWriteAll(Magic, "pid", int(Stop))

	if err := l.Next(context.Background()); !errors.Is(err, errors.ErrBadFrame) {
		t.Fatalf("Next() = %v, want ErrBadFrame", err)
	}
}

func stopHandler(int) {}

func TestListener_RegisterHandler(t *testing.T) {
	l := NewListener(mailbox.NewRegistry(), 1)

	if err := l.RegisterHandler(Stop, stopHandler); err != nil {
		t.Fatalf("RegisterHandler() = %v", err)
	}
	err := l.RegisterHandler(Stop, func(int) { panic("other") })
	if !errors.Is(err, errors.ErrHandlerConflict) {
		t.Errorf("registering a different handler = %v, want ErrHandlerConflict", err)
	}
	if err := l.RegisterHandler(Signal(4), stopHandler); !errors.Is(err, errors.ErrUnknownSignal) {
		t.Errorf("registering an undefined signal = %v, want ErrUnknownSignal", err)
	}

	if !l.UnregisterHandler(Stop) {
		t.Error("UnregisterHandler() = false for a registered signal")
	}
	if l.UnregisterHandler(Stop) {
		t.Error("UnregisterHandler() = true twice")
	}
	if err := l.RegisterHandler(Stop, func(int) {}); err != nil {
		t.Errorf("RegisterHandler() after unregister = %v", err)
	}
}

// counter returns a handler closing over its own count.
func counter(n *int) Handler {
	return func(int) { *n++ }
}

func TestListener_RegisterHandler_SameLiteral(t *testing.T) {
	reg := mailbox.NewRegistry()
	l := NewListener(reg, 1)

	var first, second int
	if err := l.RegisterHandler(Heartbeat, counter(&first)); err != nil {
		t.Fatalf("RegisterHandler() = %v", err)
	}
	err := l.RegisterHandler(Heartbeat, counter(&second))
	if !errors.Is(err, errors.ErrHandlerConflict) {
		t.Fatalf("second closure from one literal = %v, want ErrHandlerConflict", err)
	}
	// Even the very same func value cannot be stacked.
	h := counter(&first)
	l.UnregisterHandler(Heartbeat)
	if err := l.RegisterHandler(Heartbeat, h); err != nil {
		t.Fatal(err)
	}
	if err := l.RegisterHandler(Heartbeat, h); !errors.Is(err, errors.ErrHandlerConflict) {
		t.Errorf("registering h twice = %v, want ErrHandlerConflict", err)
	}

	if err := WriteSignal(reg, 1, 9, Heartbeat); err != nil {
		t.Fatal(err)
	}
	if err := l.Next(context.Background()); err != nil {
		t.Fatalf("Next() = %v", err)
	}
	if first != 1 || second != 0 {
		t.Errorf("first = %d, second = %d; want 1, 0", first, second)
	}
}
