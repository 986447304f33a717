// Package script defines the portable recording format shared by both
// execution backends, and its validator.
//
// A Script is append-only while recording and immutable once loaded for
// playback. The JSON serialization uses stable field names with
// additive-only evolution: unknown fields are ignored on read and
// optional fields default to absent, so a script produced by either
// backend is byte-for-byte loadable by the other.
package script

import (
	"time"
)

// CurrentVersion is the script format version written by this core.
const CurrentVersion = "1.0"

// ActionType discriminates the action union.
type ActionType string

const (
	MouseMove        ActionType = "mouse_move"
	MouseClick       ActionType = "mouse_click"
	MouseDoubleClick ActionType = "mouse_double_click"
	MouseDrag        ActionType = "mouse_drag"
	MouseScroll      ActionType = "mouse_scroll"
	KeyPress         ActionType = "key_press"
	KeyRelease       ActionType = "key_release"
	KeyType          ActionType = "key_type"
	Screenshot       ActionType = "screenshot"
	Wait             ActionType = "wait"
	Custom           ActionType = "custom"
)

// KnownTypes lists every action type this core recognizes.
// Screenshot and Custom are recognized but never executed during
// playback; they exist for backends with richer action sets.
var KnownTypes = map[ActionType]bool{
	MouseMove:        true,
	MouseClick:       true,
	MouseDoubleClick: true,
	MouseDrag:        true,
	MouseScroll:      true,
	KeyPress:         true,
	KeyRelease:       true,
	KeyType:          true,
	Screenshot:       true,
	Wait:             true,
	Custom:           true,
}

// Executable reports whether playback dispatches this action type.
func (t ActionType) Executable() bool {
	return KnownTypes[t] && t != Screenshot && t != Custom
}

// requiredFields maps each executable action type to the fields its
// contract demands. The validator, the player's skip policy, and the
// compatibility tester all consult this one table.
var requiredFields = map[ActionType][]string{
	MouseMove:        {"x", "y"},
	MouseClick:       {"x", "y", "button"},
	MouseDoubleClick: {"x", "y", "button"},
	MouseDrag:        {"x", "y", "button"},
	MouseScroll:      {"x", "y"},
	KeyPress:         {"key"},
	KeyRelease:       {"key"},
	KeyType:          {"text"},
	Wait:             nil,
}

// RequiredFields returns the field names an action of type t must carry.
func RequiredFields(t ActionType) []string { return requiredFields[t] }

// Resolution is a display size in device pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Action is one typed, timestamped input event within a Script.
// Timestamp is in float seconds from script start.
type Action struct {
	Type      ActionType `json:"type"`
	Timestamp float64    `json:"timestamp"`

	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`

	Button    string   `json:"button,omitempty"`
	Key       string   `json:"key,omitempty"`
	Text      string   `json:"text,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`

	// AdditionalData carries backend-specific extension fields.
	AdditionalData map[string]any `json:"additional_data,omitempty"`
}

// MissingFields returns the required fields absent from a, in contract
// order. Empty result means the action satisfies its type's contract.
func (a *Action) MissingFields() []string {
	var missing []string
	for _, f := range requiredFields[a.Type] {
		switch f {
		case "x":
			if a.X == nil {
				missing = append(missing, f)
			}
		case "y":
			if a.Y == nil {
				missing = append(missing, f)
			}
		case "button":
			if a.Button == "" {
				missing = append(missing, f)
			}
		case "key":
			if a.Key == "" {
				missing = append(missing, f)
			}
		case "text":
			if a.Text == "" {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// Metadata describes a Script's provenance and derived statistics.
type Metadata struct {
	CreatedAt   time.Time `json:"created_at"`
	Duration    float64   `json:"duration"`
	ActionCount int       `json:"action_count"`

	// CoreType records which backend produced the script.
	CoreType string `json:"core_type"`
	Platform string `json:"platform"`

	ScreenResolution *Resolution    `json:"screen_resolution,omitempty"`
	AdditionalData   map[string]any `json:"additional_data,omitempty"`
}

// Script is an ordered, versioned record of timestamped input actions.
//
// INVARIANTS (enforced by AddAction, checked by Validate):
//   - Metadata.ActionCount == len(Actions)
//   - Metadata.Duration == timestamp of the last action (0 when empty)
//   - Action timestamps are non-decreasing
type Script struct {
	Version  string   `json:"version"`
	Metadata Metadata `json:"metadata"`
	Actions  []Action `json:"actions"`
}

// New creates an empty script stamped with the producing backend and
// platform.
func New(coreType, platform string) *Script {
	return &Script{
		Version: CurrentVersion,
		Metadata: Metadata{
			CreatedAt: time.Now().UTC(),
			CoreType:  coreType,
			Platform:  platform,
		},
		Actions: []Action{},
	}
}

// AddAction appends a and recomputes the derived metadata. Scripts are
// mutated only by append; there is no in-place edit.
func (s *Script) AddAction(a Action) {
	s.Actions = append(s.Actions, a)
	s.Metadata.ActionCount = len(s.Actions)
	s.Metadata.Duration = a.Timestamp
}

// ActionCount returns the number of actions.
func (s *Script) ActionCount() int { return len(s.Actions) }

// Duration returns the timestamp of the last action, 0 for an empty
// script.
func (s *Script) Duration() float64 {
	if len(s.Actions) == 0 {
		return 0
	}
	return s.Actions[len(s.Actions)-1].Timestamp
}

// IntPtr is a convenience for building actions with coordinate fields.
func IntPtr(v int) *int { return &v }
