package relay

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ReadyState is the lifecycle stage of a downstream connection.
type ReadyState int32

const (
	Connecting ReadyState = iota
	Open
	Closing
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("ReadyState(%d)", int32(s))
}

// Target is a downstream endpoint a message can be fanned out to.
type Target interface {
	ReadyState() ReadyState
	Send(msg []byte) error
}

// FanOut sends msg once to every target that is open at call time and
// returns, in iteration order, the targets that accepted it. Targets in any
// other state are skipped, as is a target that stops being open before Send
// (ErrNotOpen). Other send errors are ignored: delivery is fire-and-forget.
func FanOut[T Target](targets []T, msg []byte) []T {
	sent := make([]T, 0, len(targets))
	for _, t := range targets {
		if t.ReadyState() != Open {
			continue
		}
		if err := t.Send(msg); errors.Is(err, ErrNotOpen) {
			continue
		}
		sent = append(sent, t)
	}
	return sent
}

// readyState is an atomically updated ReadyState.
type readyState struct {
	v atomic.Int32
}

func (s *readyState) load() ReadyState   { return ReadyState(s.v.Load()) }
func (s *readyState) store(r ReadyState) { s.v.Store(int32(r)) }

func (s *readyState) transition(from, to ReadyState) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}
