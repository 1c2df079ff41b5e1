package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/event"
	"github.com/Iron-Ham/heist/internal/logging"
	"github.com/Iron-Ham/heist/internal/mailbox"
)

// Handler receives the identity of the process that sent a signal.
type Handler func(sender int)

// Listener dispatches the signals arriving on one identity's mailbox.
type Listener struct {
	id  int
	box *mailbox.Mailbox

	mu       sync.Mutex
	handlers map[Signal]Handler

	bus    *event.Bus
	logger *logging.Logger
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithBus publishes a SignalDispatchedEvent after every handler call.
func WithBus(bus *event.Bus) ListenerOption {
	return func(l *Listener) {
		l.bus = bus
	}
}

// WithLogger sets the listener's logger.
func WithLogger(logger *logging.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewListener takes ownership of id's mailbox. Anything already queued
// there is discarded.
func NewListener(reg *mailbox.Registry, id int, opts ...ListenerOption) *Listener {
	l := &Listener{
		id:       id,
		box:      reg.Handle(id),
		handlers: make(map[Signal]Handler),
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent("listener").With("pid", id)
	l.box.Clear()
	return l
}

// ID returns the identity whose mailbox the listener drains.
func (l *Listener) ID() int { return l.id }

// RegisterHandler installs h for sig. A code holds one handler until it is
// unregistered; registering over it is an error.
func (l *Listener) RegisterHandler(sig Signal, h Handler) error {
	if !sig.Valid() {
		return errors.NewProtocolError("cannot register handler", errors.ErrUnknownSignal).WithCode(int(sig))
	}
	if h == nil {
		return errors.NewProtocolError("nil handler", errors.ErrInvalidInput).WithCode(int(sig))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.handlers[sig]; ok {
		return errors.NewProtocolError(fmt.Sprintf("%s already has a handler", sig), errors.ErrHandlerConflict).
			WithIdentity(l.id).
			WithCode(int(sig))
	}
	l.handlers[sig] = h
	return nil
}

// UnregisterHandler removes the handler for sig and reports whether one
// was installed.
func (l *Listener) UnregisterHandler(sig Signal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.handlers[sig]
	delete(l.handlers, sig)
	return ok
}

// Listen dispatches signals until ctx is done or a frame is invalid. It
// returns ctx.Err() in the first case and a *errors.ProtocolError in the
// second.
func (l *Listener) Listen(ctx context.Context) error {
	for {
		if err := l.Next(ctx); err != nil {
			return err
		}
	}
}

// Next waits for one frame and dispatches it.
func (l *Listener) Next(ctx context.Context) error {
	magic, err := l.nextRead(ctx)
	if err != nil {
		return err
	}
	if m, ok := magic.(int); !ok || m != Magic {
		return errors.NewProtocolError(fmt.Sprintf("listener requires magic number, got %v", magic), errors.ErrBadMagic).
			WithIdentity(l.id)
	}

	raw, err := l.nextRead(ctx)
	if err != nil {
		return err
	}
	sender, ok := raw.(int)
	if !ok {
		return errors.NewProtocolError(fmt.Sprintf("listener requires sender identity, got %v", raw), errors.ErrBadFrame).
			WithIdentity(l.id)
	}

	raw, err = l.nextRead(ctx)
	if err != nil {
		return err
	}
	code, ok := raw.(int)
	if !ok {
		return errors.NewProtocolError(fmt.Sprintf("listener requires signal, got %v", raw), errors.ErrBadFrame).
			WithIdentity(l.id)
	}
	sig := Signal(code)

	l.mu.Lock()
	h, ok := l.handlers[sig]
	l.mu.Unlock()
	if !ok {
		return errors.NewProtocolError(fmt.Sprintf("don't know how to handle signal %d from %d", code, sender), errors.ErrUnknownSignal).
			WithIdentity(l.id).
			WithCode(code)
	}

	l.logger.Debug("dispatching signal", "signal", sig.String(), "sender", sender)
	h(sender)
	l.bus.Publish(event.NewSignalDispatchedEvent(l.id, sender, code, sig.String()))
	return nil
}

// nextRead takes the NextWrite channel before checking for data so a write
// landing between the two is never missed.
func (l *Listener) nextRead(ctx context.Context) (any, error) {
	for {
		wake := l.box.NextWrite()
		if v, ok := l.box.Read(); ok {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}
