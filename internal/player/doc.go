// Package player implements the playback state machine.
//
// A Player consumes a validated script and executes it through an
// injected platform capability, honoring speed scaling, loop counts,
// and resolution-adaptive coordinate rescaling.
//
// State machine:
//
//	Idle -> Loaded -> Running <-> Paused -> Completed | Failed | Aborted
//
// The action loop runs in its own goroutine. Pause and stop are
// cooperative signals: pause takes effect only at an action boundary
// (never mid-action), stop is honored as soon as the in-flight dispatch
// returns and also interrupts inter-action waits. Elapsed pause time is
// excluded from subsequent timing because every wait is computed from
// the timestamp delta of adjacent actions, not from an absolute
// schedule.
//
// Progress is delivered on an ordered, non-blocking event channel: a
// slow consumer loses events (counted, observable) but can never stall
// the action loop.
package player
