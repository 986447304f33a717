// Package backend defines the two interchangeable execution backends and
// the platform capability contract they implement.
//
// The core never talks to mouse/keyboard/screen APIs directly: every
// input-injection primitive goes through Capability, which is injected
// into the player at construction. This keeps the orchestration layer
// identical for both backends and makes the player fully testable with
// a fake.
package backend

import (
	"context"
	"fmt"
)

// Identity names one of the two execution backends.
//
// The two backends are engineered independently but share this one
// contract; health, performance, and fallback components consume them
// uniformly through this type and never special-case a variant.
type Identity string

const (
	// Interpreted is the script-interpreter backend.
	Interpreted Identity = "interpreted"

	// Native is the compiled-native backend.
	Native Identity = "native"
)

// Identities lists all known backends in stable order.
func Identities() []Identity { return []Identity{Interpreted, Native} }

// Parse converts a string into an Identity.
func Parse(s string) (Identity, error) {
	switch Identity(s) {
	case Interpreted, Native:
		return Identity(s), nil
	}
	return "", fmt.Errorf("unknown backend %q (want %q or %q)", s, Interpreted, Native)
}

// Other returns the alternative backend.
func (id Identity) Other() Identity {
	if id == Interpreted {
		return Native
	}
	return Interpreted
}

// Valid reports whether id is a known backend.
func (id Identity) Valid() bool { return id == Interpreted || id == Native }

// MouseButton names a mouse button in script field terms.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// Capability is the platform input surface a backend provides.
//
// All methods honor ctx cancellation; a method returning an error is
// treated by the player as a backend failure (fatal for the session),
// so implementations must not return errors for conditions the player
// already guards (e.g. out-of-range coordinates are clamped upstream).
type Capability interface {
	// Identity reports which backend this capability belongs to.
	Identity() Identity

	MouseMove(ctx context.Context, x, y int) error
	MouseClick(ctx context.Context, x, y int, button MouseButton) error
	MouseDoubleClick(ctx context.Context, x, y int, button MouseButton) error
	// MouseDrag presses at (x, y) and releases at (toX, toY).
	MouseDrag(ctx context.Context, x, y, toX, toY int, button MouseButton) error
	MouseScroll(ctx context.Context, x, y, amount int) error

	KeyPress(ctx context.Context, key string, modifiers []string) error
	KeyRelease(ctx context.Context, key string) error
	TypeText(ctx context.Context, text string) error

	// ScreenSize returns the current display resolution in device pixels.
	ScreenSize(ctx context.Context) (width, height int, err error)

	// Probe performs a trivial operation to prove the backend is
	// functional, not merely installed. Used by the health checker.
	Probe(ctx context.Context) error
}
