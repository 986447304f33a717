// Package compat guarantees that a script produced by either backend
// loads and replays under the other.
//
// Hard incompatibilities (issues) block playback: empty required
// metadata, out-of-order timestamps, data lost across a round trip.
// Soft differences (warnings) never block: a script recorded by the
// other backend, a version drift, an action type this core does not
// execute. Backend identity differences in particular are expected and
// must never fail a script.
package compat

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/faults"
	"github.com/replaykit/replaykit/internal/script"
)

// Result is a compatibility report for one script.
type Result struct {
	IsCompatible bool     `json:"is_compatible"`
	Version      string   `json:"version"`
	CoreType     string   `json:"core_type"`
	Issues       []string `json:"issues"`
	Warnings     []string `json:"warnings"`
}

// Tester validates scripts against one target backend.
type Tester struct {
	target backend.Identity
	logger *slog.Logger
}

// PeekCoreType reads metadata.core_type from a raw document without
// decoding the full script. Callers use it to learn which backend
// recorded a file before choosing a test target.
func PeekCoreType(data []byte) (string, error) {
	var doc struct {
		Metadata struct {
			CoreType string `json:"core_type"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", faults.Wrap(faults.KindSerialization, err, "peek core type")
	}
	return doc.Metadata.CoreType, nil
}

// NewTester creates a Tester for the given target backend.
func NewTester(target backend.Identity, logger *slog.Logger) *Tester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tester{target: target, logger: logger}
}

// ValidateScript checks s for compatibility with the target backend.
// Unlike script.Validate it collects every problem instead of stopping
// at the first, so a report lists all the work a fix needs.
func (t *Tester) ValidateScript(s *script.Script) Result {
	r := Result{
		Version:  s.Version,
		CoreType: s.Metadata.CoreType,
	}

	for _, m := range []struct{ name, value string }{
		{"version", s.Version},
		{"core_type", s.Metadata.CoreType},
		{"platform", s.Metadata.Platform},
	} {
		if m.value == "" {
			r.Issues = append(r.Issues, fmt.Sprintf("required metadata field %q is empty", m.name))
		}
	}

	for i := 1; i < len(s.Actions); i++ {
		if s.Actions[i].Timestamp < s.Actions[i-1].Timestamp {
			r.Issues = append(r.Issues, fmt.Sprintf(
				"actions[%d]: timestamp %.6f precedes predecessor %.6f",
				i, s.Actions[i].Timestamp, s.Actions[i-1].Timestamp))
		}
	}

	if s.Metadata.CoreType != "" && s.Metadata.CoreType != string(t.target) {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"script was recorded by backend %q, validating against %q; identity differences are expected and do not block playback",
			s.Metadata.CoreType, t.target))
	}

	if s.Version != "" && s.Version != script.CurrentVersion {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"script version %q differs from supported %q", s.Version, script.CurrentVersion))
	}

	seen := map[script.ActionType]bool{}
	for i, a := range s.Actions {
		if !script.KnownTypes[a.Type] && !seen[a.Type] {
			seen[a.Type] = true
			r.Warnings = append(r.Warnings, fmt.Sprintf(
				"actions[%d]: unknown action type %q will be skipped during playback", i, a.Type))
		}
	}

	r.IsCompatible = len(r.Issues) == 0
	return r
}

// TestCrossCore deserializes a script recorded under source, validates
// it for the target, and asserts the round-trip invariant: every field
// present in the document must survive a deserialize/serialize cycle
// intact. Known-field loss is a hard issue; loss of extension fields
// this core does not model is a soft warning.
func (t *Tester) TestCrossCore(data []byte, source, target backend.Identity) (Result, error) {
	s, err := script.Unmarshal(data)
	if err != nil {
		return Result{}, err
	}

	tester := t
	if target != t.target {
		tester = NewTester(target, t.logger)
	}
	r := tester.ValidateScript(s)

	if source != target {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"cross-backend transfer %s -> %s", source, target))
	}

	regenerated, err := script.Marshal(s)
	if err != nil {
		return r, err
	}

	orig, err := decodeGeneric(data)
	if err != nil {
		return Result{}, faults.Wrap(faults.KindSerialization, err, "parse original document")
	}
	regen, err := decodeGeneric(regenerated)
	if err != nil {
		return Result{}, faults.Wrap(faults.KindSerialization, err, "parse regenerated document")
	}

	var diffs []fieldDiff
	diffFields("", orig, regen, &diffs)
	for _, d := range diffs {
		if knownPath(d.Path) {
			r.Issues = append(r.Issues, "round trip: "+d.String())
		} else {
			r.Warnings = append(r.Warnings, "round trip: extension "+d.String())
		}
	}

	r.IsCompatible = len(r.Issues) == 0
	t.logger.Debug("cross-backend compatibility tested",
		"source", source, "target", target,
		"compatible", r.IsCompatible,
		"issues", len(r.Issues), "warnings", len(r.Warnings))
	return r, nil
}
