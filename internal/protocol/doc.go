// Package protocol implements the signal protocol spoken between the
// planner, its workers and the monitor.
//
// A signal is exactly three mailbox values: the [Magic] marker, the
// sender's identity and a [Signal] code. [WriteSignal] writes all three or
// nothing. A [Listener] drains its own mailbox one frame at a time and
// calls the handler registered for the code with the sender's identity.
//
// Framing violations and codes without a handler are fatal: Listen returns
// a *errors.ProtocolError and reads nothing further. Listen otherwise runs
// until its context is cancelled, so callers run it beside their own loop:
//
//	l := protocol.NewListener(registry, pid)
//	_ = l.RegisterHandler(protocol.Stop, func(int) { stopping.Store(true) })
//	go func() { errc <- l.Listen(ctx) }()
//
// Handlers run on the listener's goroutine, strictly in arrival order; a
// handler returns before the next frame is read.
package protocol
