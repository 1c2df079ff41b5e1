package plan

import (
	"math"
	"time"

	"github.com/Iron-Ham/heist/internal/host"
)

// Kind is a worker operation.
type Kind int

const (
	KindHack Kind = iota
	KindGrow
	KindWeaken
)

// String returns the operation name.
func (k Kind) String() string {
	switch k {
	case KindHack:
		return "hack"
	case KindGrow:
		return "grow"
	case KindWeaken:
		return "weaken"
	default:
		return "unknown"
	}
}

// Unlimited asks a reservation for every thread a host can hold.
const Unlimited = math.MaxInt

// Reservation is a block of threads reserved on one host.
type Reservation struct {
	Host    *host.Host
	Threads int
}

// Script is one operation and the threads reserved to run it.
type Script struct {
	Kind Kind
	// Path is the worker program.
	Path string
	// Duration is how long one run of the operation takes.
	Duration     time.Duration
	Reservations []Reservation
}

// Threads returns the total threads reserved.
func (s *Script) Threads() int {
	n := 0
	for _, r := range s.Reservations {
		n += r.Threads
	}
	return n
}

// ReserveOnHost reserves up to wanted threads on h and returns how many it
// got.
func (s *Script) ReserveOnHost(wanted int, h *host.Host) (int, error) {
	available, err := h.ThreadsAvailable(s.Path)
	if err != nil {
		return 0, err
	}
	threads := min(wanted, available)
	if threads <= 0 {
		return 0, nil
	}

	ram, _ := h.CostOf(s.Path)
	h.RAMAvailable -= float64(threads) * ram
	s.Reservations = append(s.Reservations, Reservation{Host: h, Threads: threads})
	return threads, nil
}

// ReserveFromStart reserves up to wanted threads across hosts, filling each
// host in order before moving on. It returns how many it got.
func (s *Script) ReserveFromStart(wanted int, hosts []*host.Host) (int, error) {
	left := wanted
	for _, h := range hosts {
		if left <= 0 {
			break
		}
		got, err := s.ReserveOnHost(left, h)
		if err != nil {
			return wanted - left, err
		}
		left -= got
	}
	return wanted - left, nil
}
