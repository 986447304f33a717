package compat

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/script"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func validScript(coreType string) *script.Script {
	s := script.New(coreType, "linux")
	s.Metadata.CreatedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.AddAction(script.Action{Type: script.MouseMove, Timestamp: 0.5, X: script.IntPtr(10), Y: script.IntPtr(20)})
	s.AddAction(script.Action{Type: script.MouseClick, Timestamp: 1.5, X: script.IntPtr(10), Y: script.IntPtr(20), Button: "left"})
	return s
}

func TestValidateScript_CleanScript(t *testing.T) {
	tester := NewTester(backend.Interpreted, testLogger())

	r := tester.ValidateScript(validScript("interpreted"))
	assert.True(t, r.IsCompatible)
	assert.Empty(t, r.Issues)
	assert.Empty(t, r.Warnings)
	assert.Equal(t, "1.0", r.Version)
}

func TestValidateScript_CollectsAllIssues(t *testing.T) {
	s := validScript("")
	s.Version = ""
	s.AddAction(script.Action{Type: script.MouseMove, Timestamp: 1.0, X: script.IntPtr(1), Y: script.IntPtr(1)})

	tester := NewTester(backend.Native, testLogger())
	r := tester.ValidateScript(s)

	assert.False(t, r.IsCompatible)
	// Empty version + empty core_type + one timestamp regression.
	assert.Len(t, r.Issues, 3)
}

func TestValidateScript_IdentityMismatchIsWarningOnly(t *testing.T) {
	s := validScript("interpreted")

	tester := NewTester(backend.Native, testLogger())
	r := tester.ValidateScript(s)

	assert.True(t, r.IsCompatible, "identity mismatch must not block playback")
	assert.Empty(t, r.Issues)
	require.NotEmpty(t, r.Warnings)
	assert.Contains(t, r.Warnings[0], `"interpreted"`)
	assert.Contains(t, r.Warnings[0], `"native"`)
}

func TestValidateScript_VersionDriftWarns(t *testing.T) {
	s := validScript("native")
	s.Version = "1.1"

	r := NewTester(backend.Native, testLogger()).ValidateScript(s)
	assert.True(t, r.IsCompatible)
	require.NotEmpty(t, r.Warnings)
	assert.Contains(t, r.Warnings[0], `"1.1"`)
}

func TestValidateScript_UnknownActionTypeWarnsOnce(t *testing.T) {
	s := validScript("native")
	s.AddAction(script.Action{Type: script.ActionType("gesture_pinch"), Timestamp: 2})
	s.AddAction(script.Action{Type: script.ActionType("gesture_pinch"), Timestamp: 3})

	r := NewTester(backend.Native, testLogger()).ValidateScript(s)
	assert.True(t, r.IsCompatible)
	require.Len(t, r.Warnings, 1, "duplicate unknown types warn once")
	assert.Contains(t, r.Warnings[0], "gesture_pinch")
}

func TestTestCrossCore_IdentityMismatchYieldsWarningNotIssue(t *testing.T) {
	s := validScript("interpreted")
	data, err := script.Marshal(s)
	require.NoError(t, err)

	r, err := NewTester(backend.Interpreted, testLogger()).
		TestCrossCore(data, backend.Interpreted, backend.Native)
	require.NoError(t, err)

	assert.True(t, r.IsCompatible)
	assert.Empty(t, r.Issues)
	require.NotEmpty(t, r.Warnings)

	found := false
	for _, w := range r.Warnings {
		if strings.Contains(w, "interpreted") && strings.Contains(w, "native") {
			found = true
		}
	}
	assert.True(t, found, "at least one warning mentions the identity mismatch")
}

func TestTestCrossCore_RoundTripPreservesAllFields(t *testing.T) {
	s := validScript("native")
	s.Metadata.ScreenResolution = &script.Resolution{Width: 2560, Height: 1440}
	s.Metadata.AdditionalData = map[string]any{"recorder": "v2"}
	s.AddAction(script.Action{
		Type: script.KeyType, Timestamp: 2.5, Text: "héllo wörld",
		Modifiers:      []string{"shift"},
		AdditionalData: map[string]any{"ime": true},
	})
	data, err := script.Marshal(s)
	require.NoError(t, err)

	r, err := NewTester(backend.Native, testLogger()).
		TestCrossCore(data, backend.Native, backend.Native)
	require.NoError(t, err)

	assert.True(t, r.IsCompatible)
	assert.Empty(t, r.Issues)
	assert.Empty(t, r.Warnings)
}

func TestTestCrossCore_UnknownExtensionLossIsWarning(t *testing.T) {
	// A document with a top-level field this core does not model: the
	// field cannot survive the round trip, which is a soft difference.
	doc := []byte(`{
		"version": "1.0",
		"future_top_level": {"a": 1},
		"metadata": {
			"created_at": "2024-03-01T10:00:00Z",
			"duration": 1.0,
			"action_count": 1,
			"core_type": "native",
			"platform": "linux"
		},
		"actions": [{"type": "mouse_move", "timestamp": 1.0, "x": 5, "y": 6}]
	}`)

	r, err := NewTester(backend.Native, testLogger()).
		TestCrossCore(doc, backend.Native, backend.Native)
	require.NoError(t, err)

	assert.True(t, r.IsCompatible, "extension loss must not block playback")
	found := false
	for _, w := range r.Warnings {
		if strings.Contains(w, "future_top_level") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTestCrossCore_GarbageInput(t *testing.T) {
	_, err := NewTester(backend.Native, testLogger()).
		TestCrossCore([]byte("not a script"), backend.Native, backend.Interpreted)
	assert.Error(t, err)
}

func TestDiffFields_NumericTolerance(t *testing.T) {
	var diffs []fieldDiff
	diffFields("", map[string]any{"t": 1.0005}, map[string]any{"t": 1.0009}, &diffs)
	assert.Empty(t, diffs, "sub-millisecond drift is within tolerance")

	diffFields("", map[string]any{"t": 1.0}, map[string]any{"t": 1.5}, &diffs)
	require.Len(t, diffs, 1)
	assert.Equal(t, "t", diffs[0].Path)
}

func TestDiffFields_TimestampOffsetSpellings(t *testing.T) {
	// "+00:00" and "Z" name the same instant; re-marshaling through
	// time.Time rewrites the former as the latter.
	var diffs []fieldDiff
	diffFields("",
		map[string]any{"metadata": map[string]any{"created_at": "2024-03-01T10:00:00+00:00"}},
		map[string]any{"metadata": map[string]any{"created_at": "2024-03-01T10:00:00Z"}},
		&diffs)
	assert.Empty(t, diffs)

	// Genuinely different instants still diff.
	diffFields("",
		map[string]any{"metadata": map[string]any{"created_at": "2024-03-01T10:00:00Z"}},
		map[string]any{"metadata": map[string]any{"created_at": "2024-03-01T10:00:05Z"}},
		&diffs)
	require.Len(t, diffs, 1)
	assert.Equal(t, "metadata.created_at", diffs[0].Path)
}

func TestTestCrossCore_TimezoneOffsetSurvivesRoundTrip(t *testing.T) {
	doc := []byte(`{
		"version": "1.0",
		"metadata": {
			"created_at": "2024-03-01T10:00:00+00:00",
			"duration": 1.0,
			"action_count": 1,
			"core_type": "native",
			"platform": "linux"
		},
		"actions": [{"type": "mouse_move", "timestamp": 1.0, "x": 5, "y": 6}]
	}`)

	r, err := NewTester(backend.Native, testLogger()).
		TestCrossCore(doc, backend.Native, backend.Native)
	require.NoError(t, err)

	assert.True(t, r.IsCompatible)
	assert.Empty(t, r.Issues, "an equivalent offset spelling is not data loss")
	assert.Empty(t, r.Warnings)
}

func TestDiffFields_UnicodeNormalization(t *testing.T) {
	// NFD vs NFC spellings of the same text are not data loss.
	var diffs []fieldDiff
	diffFields("", map[string]any{"text": "café"}, map[string]any{"text": "café"}, &diffs)
	assert.Empty(t, diffs)
}

func TestKnownPath(t *testing.T) {
	assert.True(t, knownPath("version"))
	assert.True(t, knownPath("metadata.core_type"))
	assert.True(t, knownPath("metadata.screen_resolution.width"))
	assert.True(t, knownPath("actions[0].timestamp"))
	assert.True(t, knownPath("actions[2].additional_data.ime"))
	assert.False(t, knownPath("future_top_level"))
	assert.False(t, knownPath("metadata.gpu_accelerated"))
	assert.False(t, knownPath("actions[0].pressure"))
}
