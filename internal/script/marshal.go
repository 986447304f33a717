package script

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/replaykit/replaykit/internal/faults"
)

//go:embed schema.cue
var schemaCUE string

// schemaValue compiles the embedded CUE schema once. Compilation of a
// constant schema cannot fail at runtime, but the error is kept so a
// bad edit to schema.cue surfaces loudly instead of validating nothing.
var schemaValue = sync.OnceValues(func() (cue.Value, error) {
	v := cuecontext.New().CompileString(schemaCUE).LookupPath(cue.ParsePath("#Script"))
	return v, v.Err()
})

// ValidateDocument checks raw JSON against the embedded schema before
// any Go-level decoding. This is the structural phase; Script.Validate
// covers the semantic invariants afterwards.
func ValidateDocument(data []byte) error {
	schema, err := schemaValue()
	if err != nil {
		return fmt.Errorf("compile script schema: %w", err)
	}

	expr, err := cuejson.Extract("script.json", data)
	if err != nil {
		return faults.Wrap(faults.KindSerialization, err, "not valid JSON")
	}

	unified := schema.Context().BuildExpr(expr).Unify(schema)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return faults.Wrap(faults.KindScriptError, err, "script does not match schema")
	}
	return nil
}

// Marshal serializes s with the stable wire field names, indented for
// human diffing. Key order is deterministic (struct order, map keys
// sorted by encoding/json), so identical scripts produce identical
// bytes regardless of which backend wrote them.
func Marshal(s *Script) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, faults.Wrap(faults.KindSerialization, err, "marshal script")
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into a Script. Unknown fields are ignored and
// missing optional fields stay absent, per the additive-only evolution
// contract.
func Unmarshal(data []byte) (*Script, error) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, faults.Wrap(faults.KindSerialization, err, "unmarshal script")
	}
	return &s, nil
}

// LoadFile reads, schema-checks, decodes, and validates a script file.
// Validation failures are surfaced immediately at load time, never
// deferred to playback.
func LoadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.Wrap(faults.KindIO, err, "read script %s", path)
	}
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}
	s, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, faults.Wrap(faults.KindScriptError, err, "invalid script %s", path)
	}
	return s, nil
}

// SaveFile writes s to path atomically (write-temp-then-rename), so a
// crash mid-write never leaves a truncated script behind.
func SaveFile(s *Script, path string) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return faults.Wrap(faults.KindIO, err, "write script %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return faults.Wrap(faults.KindIO, err, "rename %s", path)
	}
	return nil
}
