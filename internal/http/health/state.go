package health

import "sync/atomic"

// Phase is a step of the server lifecycle.
type Phase int32

const (
	// Starting covers everything before the listener is bound.
	Starting Phase = iota
	// Listening means the socket is bound and requests are being served.
	Listening
	// Stopping begins when a shutdown signal is received.
	Stopping
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Listening:
		return "listening"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// State tracks the lifecycle phase. The zero value is Starting and is safe
// for concurrent use.
type State struct {
	phase atomic.Int32
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	return Phase(s.phase.Load())
}

// MarkListening moves Starting to Listening. It reports false if the server
// already left Starting.
func (s *State) MarkListening() bool {
	return s.phase.CompareAndSwap(int32(Starting), int32(Listening))
}

// MarkStopping moves any phase to Stopping.
func (s *State) MarkStopping() {
	s.phase.Store(int32(Stopping))
}
