package protocol

import (
	"fmt"

	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/mailbox"
)

// Magic starts every signal frame.
const Magic = 84

// NoServer is passed to workers that should not signal anyone.
const NoServer = -1

// FrameSize is the number of mailbox values in one signal.
const FrameSize = 3

// Signal is a protocol signal code.
type Signal int

// The closed set of signals.
const (
	Stop      Signal = 3
	Heartbeat Signal = 5
	StealDone Signal = 7
	ShareDone Signal = 8
	Status    Signal = 9
)

var names = map[Signal]string{
	Stop:      "STOP",
	Heartbeat: "HEARTBEAT",
	StealDone: "STEAL_DONE",
	ShareDone: "SHARE_DONE",
	Status:    "STATUS",
}

// Signals returns every defined signal in ascending order.
func Signals() []Signal {
	return []Signal{Stop, Heartbeat, StealDone, ShareDone, Status}
}

// Valid reports whether s is one of the defined signals.
func (s Signal) Valid() bool {
	_, ok := names[s]
	return ok
}

func (s Signal) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return fmt.Sprintf("SIGNAL(%d)", int(s))
}

// WriteSignal writes a frame from sender onto receiver's mailbox. The frame
// is written whole or not at all.
func WriteSignal(reg *mailbox.Registry, receiver, sender int, sig Signal) error {
	if receiver == NoServer {
		return errors.NewProtocolError("no receiver", errors.ErrInvalidInput).WithCode(int(sig))
	}
	if !reg.Handle(receiver).TryWriteAll(Magic, sender, int(sig)) {
		return errors.NewProtocolError("ran out of space to write next signal", errors.ErrBufferExhausted).
			WithIdentity(receiver).
			WithCode(int(sig))
	}
	return nil
}
