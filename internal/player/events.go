package player

import (
	"sync/atomic"
	"time"
)

// EventKind discriminates playback events.
type EventKind string

const (
	// EventProgress is emitted after every action, skipped or not.
	EventProgress EventKind = "progress"

	// EventWarning reports a recovered per-action problem (skipped
	// action, clamped coordinate).
	EventWarning EventKind = "warning"

	// EventState marks a state transition, including session end.
	EventState EventKind = "state"
)

// Event is one playback observation.
type Event struct {
	Kind    EventKind `json:"kind"`
	State   State     `json:"state"`
	Index   int       `json:"index"`
	Total   int       `json:"total"`
	Percent float64   `json:"percent"`
	Loop    int       `json:"loop"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// emitter delivers events without ever blocking the action loop.
// Delivery is ordered; when the buffer is full the event is dropped
// and counted instead of queued.
type emitter struct {
	ch      chan Event
	dropped atomic.Int64
}

func newEmitter(buffer int) *emitter {
	if buffer < 1 {
		buffer = 1
	}
	return &emitter{ch: make(chan Event, buffer)}
}

func (e *emitter) emit(ev Event) {
	ev.At = time.Now()
	select {
	case e.ch <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the consumer
// lagged.
func (e *emitter) Dropped() int64 { return e.dropped.Load() }
