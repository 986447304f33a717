// Package testutil provides shared fakes for exercising the execution
// core without real input injection.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/replaykit/replaykit/internal/backend"
)

// Call records one dispatched platform operation.
type Call struct {
	Op        string
	X, Y      int
	ToX, ToY  int
	Amount    int
	Button    backend.MouseButton
	Key       string
	Text      string
	Modifiers []string
}

// FakeCapability is a scriptable backend.Capability that records every
// dispatch. Safe for concurrent use.
type FakeCapability struct {
	ID backend.Identity

	// Screen geometry returned by ScreenSize.
	Width, Height int

	// Error injection. A nil field means the operation succeeds.
	ScreenErr   error
	ProbeErr    error
	DispatchErr error

	// ProbeDelay makes Probe wait before returning, honoring ctx.
	ProbeDelay time.Duration

	mu    sync.Mutex
	calls []Call
}

// NewFakeCapability returns a healthy 1920x1080 fake for id.
func NewFakeCapability(id backend.Identity) *FakeCapability {
	return &FakeCapability{ID: id, Width: 1920, Height: 1080}
}

func (f *FakeCapability) Identity() backend.Identity { return f.ID }

func (f *FakeCapability) record(c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	return f.DispatchErr
}

// Calls returns a copy of the recorded dispatches in order.
func (f *FakeCapability) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Ops returns just the operation names, in dispatch order.
func (f *FakeCapability) Ops() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Op
	}
	return out
}

func (f *FakeCapability) MouseMove(ctx context.Context, x, y int) error {
	return f.record(Call{Op: "mouse_move", X: x, Y: y})
}

func (f *FakeCapability) MouseClick(ctx context.Context, x, y int, button backend.MouseButton) error {
	return f.record(Call{Op: "mouse_click", X: x, Y: y, Button: button})
}

func (f *FakeCapability) MouseDoubleClick(ctx context.Context, x, y int, button backend.MouseButton) error {
	return f.record(Call{Op: "mouse_double_click", X: x, Y: y, Button: button})
}

func (f *FakeCapability) MouseDrag(ctx context.Context, x, y, toX, toY int, button backend.MouseButton) error {
	return f.record(Call{Op: "mouse_drag", X: x, Y: y, ToX: toX, ToY: toY, Button: button})
}

func (f *FakeCapability) MouseScroll(ctx context.Context, x, y, amount int) error {
	return f.record(Call{Op: "mouse_scroll", X: x, Y: y, Amount: amount})
}

func (f *FakeCapability) KeyPress(ctx context.Context, key string, modifiers []string) error {
	return f.record(Call{Op: "key_press", Key: key, Modifiers: modifiers})
}

func (f *FakeCapability) KeyRelease(ctx context.Context, key string) error {
	return f.record(Call{Op: "key_release", Key: key})
}

func (f *FakeCapability) TypeText(ctx context.Context, text string) error {
	return f.record(Call{Op: "key_type", Text: text})
}

func (f *FakeCapability) ScreenSize(ctx context.Context) (int, int, error) {
	if f.ScreenErr != nil {
		return 0, 0, f.ScreenErr
	}
	return f.Width, f.Height, nil
}

func (f *FakeCapability) Probe(ctx context.Context) error {
	if f.ProbeDelay > 0 {
		select {
		case <-time.After(f.ProbeDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.ProbeErr
}
