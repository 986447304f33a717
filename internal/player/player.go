package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/faults"
	"github.com/replaykit/replaykit/internal/perf"
	"github.com/replaykit/replaykit/internal/script"
)

// State is the playback state.
type State string

const (
	StateIdle      State = "idle"
	StateLoaded    State = "loaded"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
)

// Active reports whether a session is in flight.
func (s State) Active() bool { return s == StateRunning || s == StatePaused }

// Sentinel faults for state-machine misuse.
var (
	ErrAlreadyInProgress = faults.New(faults.KindPlaybackError, "playback already in progress")
	ErrNotRunning        = faults.New(faults.KindPlaybackError, "no active playback session")
	ErrNoScript          = faults.New(faults.KindPlaybackError, "no script loaded")
)

// Status is a point-in-time view of the player.
type Status struct {
	State        State   `json:"state"`
	CurrentIndex int     `json:"current_index"`
	Total        int     `json:"total"`
	Percent      float64 `json:"percent"`
	Reason       string  `json:"reason,omitempty"`
}

// Player executes a script through a platform capability.
//
// Thread-safety: all exported methods are safe from any goroutine. The
// action loop itself runs on exactly one goroutine per session; pause
// and stop are cooperative signals it checks at action boundaries.
type Player struct {
	cap       backend.Capability
	collector *perf.Collector
	logger    *slog.Logger
	events    *emitter

	mu        sync.Mutex
	cond      *sync.Cond
	state     State
	scr       *script.Script
	index     int
	reason    string
	lastErr   error
	paused    bool
	stopping  bool
	cancel    context.CancelFunc
	done      chan struct{}
	sessionID string
}

// New creates an idle Player bound to one backend capability. The
// collector is optional; when present every dispatched action is
// measured.
func New(cap backend.Capability, collector *perf.Collector, eventBuffer int, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Player{
		cap:       cap,
		collector: collector,
		logger:    logger,
		events:    newEmitter(eventBuffer),
		state:     StateIdle,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Events returns the ordered playback event stream. The channel is
// never closed, and under a lagging consumer events are dropped, so
// session end must be observed through Done, not the stream.
func (p *Player) Events() <-chan Event { return p.events.ch }

// closedSession is returned by Done before the first session starts.
var closedSession = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done returns a channel closed when the current session's action loop
// exits. Unlike the event stream this signal is never dropped, so it is
// the one reliable way to wait for session end. Before the first
// session the channel is already closed.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return closedSession
	}
	return p.done
}

// DroppedEvents reports how many events a lagging consumer has lost.
func (p *Player) DroppedEvents() int64 { return p.events.Dropped() }

// Load validates s and stages it for playback. Fails while a session is
// active. Once loaded the script is treated as immutable.
func (p *Player) Load(s *script.Script) error {
	if err := s.Validate(); err != nil {
		return faults.Wrap(faults.KindScriptError, err, "script rejected at load")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Active() {
		return ErrAlreadyInProgress
	}
	p.scr = s
	p.state = StateLoaded
	p.index = 0
	p.reason = ""
	p.lastErr = nil
	return nil
}

// Start begins a playback session. speed is a positive multiplier
// (0.5 = half speed); loops == 0 replays indefinitely, > 0 exactly that
// many times.
func (p *Player) Start(speed float64, loops int) error {
	if speed <= 0 {
		return faults.New(faults.KindPlaybackError, "speed must be positive, got %v", speed)
	}
	if loops < 0 {
		return faults.New(faults.KindPlaybackError, "loop count must be >= 0, got %d", loops)
	}

	p.mu.Lock()
	if p.state.Active() {
		p.mu.Unlock()
		return ErrAlreadyInProgress
	}
	if p.scr == nil {
		p.mu.Unlock()
		return ErrNoScript
	}
	scr := p.scr
	p.mu.Unlock()

	// Resolve the live screen outside the lock; the capability call may
	// be slow.
	ctx, cancel := context.WithCancel(context.Background())
	w, h, err := p.cap.ScreenSize(ctx)
	if err != nil {
		cancel()
		f := faults.Wrap(faults.KindPlaybackError, err, "query screen size")
		f.Backend = string(p.cap.Identity())
		return f
	}
	sc := newScaler(scr.Metadata.ScreenResolution, w, h)

	p.mu.Lock()
	if p.state.Active() {
		p.mu.Unlock()
		cancel()
		return ErrAlreadyInProgress
	}
	p.state = StateRunning
	p.index = 0
	p.reason = ""
	p.lastErr = nil
	p.paused = false
	p.stopping = false
	p.cancel = cancel
	p.done = make(chan struct{})
	p.sessionID = uuid.NewString()
	session := p.sessionID
	done := p.done
	p.mu.Unlock()

	p.logger.Info("playback started",
		"session", session,
		"backend", p.cap.Identity(),
		"actions", len(scr.Actions),
		"speed", speed,
		"loops", loops)

	go func() {
		defer cancel()
		p.run(ctx, done, scr, speed, loops, sc)
	}()
	return nil
}

// TogglePause pauses a running session or resumes a paused one. Pausing
// takes effect at the next action boundary; the in-flight action always
// finishes.
func (p *Player) TogglePause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateRunning:
		p.paused = true
		p.state = StatePaused
		p.emitLocked(Event{Kind: EventState, State: StatePaused, Index: p.index, Total: p.total()})
		p.logger.Info("playback paused", "session", p.sessionID, "index", p.index)
		return nil
	case StatePaused:
		p.paused = false
		p.state = StateRunning
		p.cond.Broadcast()
		p.emitLocked(Event{Kind: EventState, State: StateRunning, Index: p.index, Total: p.total()})
		p.logger.Info("playback resumed", "session", p.sessionID, "index", p.index)
		return nil
	default:
		return ErrNotRunning
	}
}

// Stop cancels the session immediately and unconditionally from any
// active state. It returns once the action loop has wound down.
func (p *Player) Stop() error {
	p.mu.Lock()
	if !p.state.Active() {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.stopping = true
	p.cancel()
	p.cond.Broadcast()
	done := p.done
	p.mu.Unlock()

	<-done
	return nil
}

// Status reports the current state.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{
		State:        p.state,
		CurrentIndex: p.index,
		Total:        p.total(),
		Reason:       p.reason,
	}
	if st.Total > 0 {
		st.Percent = float64(st.CurrentIndex) / float64(st.Total) * 100
	}
	return st
}

// Err returns the fault that ended the last session, if any.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Player) total() int {
	if p.scr == nil {
		return 0
	}
	return len(p.scr.Actions)
}

// emitLocked emits while holding mu; the emitter itself never blocks.
func (p *Player) emitLocked(ev Event) { p.events.emit(ev) }

// run is the session action loop. It is the only writer of terminal
// states.
func (p *Player) run(ctx context.Context, done chan struct{}, scr *script.Script, speed float64, loops int, sc scaler) {
	defer close(done)

	total := len(scr.Actions)
	lastX, lastY := -1, -1

	for loop := 0; loops == 0 || loop < loops; loop++ {
		prevTS := 0.0
		for i, a := range scr.Actions {
			wait := scaledInterval(prevTS, a.Timestamp, speed)
			if wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					p.finish(StateAborted, "user_requested", nil)
					return
				}
			}

			if !p.actionBoundary(ctx) {
				p.finish(StateAborted, "user_requested", nil)
				return
			}

			warn, err := p.dispatch(ctx, i, a, &lastX, &lastY, sc)
			if err != nil {
				if ctx.Err() != nil {
					p.finish(StateAborted, "user_requested", nil)
					return
				}
				p.finish(StateFailed, err.Error(), err)
				return
			}

			p.progress(i, total, loop, warn)
			prevTS = a.Timestamp
		}
	}

	p.finish(StateCompleted, "", nil)
}

// actionBoundary blocks while paused and reports false when the session
// is stopping. This is the only place pause takes effect.
func (p *Player) actionBoundary(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.paused && !p.stopping {
		p.cond.Wait()
	}
	return !p.stopping && ctx.Err() == nil
}

// progress records the completed action and publishes events.
func (p *Player) progress(i, total, loop int, warn string) {
	p.mu.Lock()
	p.index = i + 1
	state := p.state
	p.mu.Unlock()

	percent := float64(i+1) / float64(total) * 100
	if warn != "" {
		p.events.emit(Event{
			Kind: EventWarning, State: state,
			Index: i, Total: total, Percent: percent, Loop: loop,
			Message: warn,
		})
		p.logger.Warn("playback warning", "session", p.sessionID, "index", i, "warning", warn)
	}
	p.events.emit(Event{
		Kind: EventProgress, State: state,
		Index: i, Total: total, Percent: percent, Loop: loop,
	})
}

// finish records the terminal state for the session.
func (p *Player) finish(state State, reason string, err error) {
	p.mu.Lock()
	p.state = state
	p.reason = reason
	p.lastErr = err
	p.paused = false
	total := p.total()
	index := p.index
	session := p.sessionID
	p.mu.Unlock()

	p.events.emit(Event{Kind: EventState, State: state, Index: index, Total: total, Message: reason})

	switch state {
	case StateCompleted:
		p.logger.Info("playback completed", "session", session)
	case StateAborted:
		p.logger.Info("playback aborted", "session", session, "reason", reason)
	case StateFailed:
		p.logger.Error("playback failed", "session", session, "error", err)
	}
}

// dispatch executes one action. A non-empty warning with nil error
// means the action was skipped or adjusted; a non-nil error is fatal
// for the session.
func (p *Player) dispatch(ctx context.Context, i int, a script.Action, lastX, lastY *int, sc scaler) (string, error) {
	if !a.Type.Executable() {
		if script.KnownTypes[a.Type] {
			return fmt.Sprintf("action %d: type %q is not executable, skipped", i, a.Type), nil
		}
		return fmt.Sprintf("action %d: unknown type %q, skipped", i, a.Type), nil
	}
	if missing := a.MissingFields(); len(missing) > 0 {
		return fmt.Sprintf("action %d (%s): missing required fields %v, skipped", i, a.Type, missing), nil
	}
	if a.Type == script.Wait {
		// The timestamp gap before this action is the wait itself.
		return "", nil
	}

	var (
		warn string
		x, y int
	)
	if a.X != nil && a.Y != nil {
		x, y, warn = sc.apply(*a.X, *a.Y)
	}

	var m *perf.Measurement
	if p.collector != nil {
		m = p.collector.StartOperation(string(a.Type))
	}

	var err error
	switch a.Type {
	case script.MouseMove:
		err = p.cap.MouseMove(ctx, x, y)
	case script.MouseClick:
		err = p.cap.MouseClick(ctx, x, y, backend.MouseButton(a.Button))
	case script.MouseDoubleClick:
		err = p.cap.MouseDoubleClick(ctx, x, y, backend.MouseButton(a.Button))
	case script.MouseDrag:
		// Drag originates at the last known pointer position; a drag
		// with no prior mouse action degenerates to a press-release in
		// place.
		fromX, fromY := x, y
		if *lastX >= 0 {
			fromX, fromY = *lastX, *lastY
		}
		err = p.cap.MouseDrag(ctx, fromX, fromY, x, y, backend.MouseButton(a.Button))
	case script.MouseScroll:
		err = p.cap.MouseScroll(ctx, x, y, scrollAmount(a))
	case script.KeyPress:
		err = p.cap.KeyPress(ctx, a.Key, a.Modifiers)
	case script.KeyRelease:
		err = p.cap.KeyRelease(ctx, a.Key)
	case script.KeyType:
		err = p.cap.TypeText(ctx, a.Text)
	}

	if m != nil {
		m.Complete(err == nil)
	}

	if err != nil {
		kind := faults.KindPlaybackError
		if k := faults.KindOf(err); k != "" {
			kind = k
		}
		f := faults.Wrap(kind, err, "action %d (%s) failed", i, a.Type)
		f.ActionIndex = i
		f.ActionType = string(a.Type)
		f.Backend = string(p.cap.Identity())
		return warn, f
	}

	switch a.Type {
	case script.MouseMove, script.MouseClick, script.MouseDoubleClick, script.MouseDrag:
		*lastX, *lastY = x, y
	}
	return warn, nil
}

// scaledInterval computes the wait before an action: the timestamp
// delta to its predecessor divided by the speed multiplier.
func scaledInterval(prevTS, nextTS, speed float64) time.Duration {
	return time.Duration((nextTS - prevTS) / speed * float64(time.Second))
}

// scrollAmount reads the extension field carrying the wheel delta,
// defaulting to one notch.
func scrollAmount(a script.Action) int {
	if v, ok := a.AdditionalData["amount"]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return 1
}
