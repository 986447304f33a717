package compat

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// timestampTolerance is the acceptable floating-point drift on numeric
// fields across a serialize/deserialize cycle.
const timestampTolerance = 1e-3

// decodeGeneric parses a JSON document into the generic value tree used
// for field-by-field comparison.
func decodeGeneric(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// fieldDiff is one round-trip discrepancy.
type fieldDiff struct {
	Path string
	Want any
	Got  any
}

func (d fieldDiff) String() string {
	if d.Got == nil {
		return fmt.Sprintf("%s: present before serialization, missing after (was %v)", d.Path, d.Want)
	}
	return fmt.Sprintf("%s: changed across round trip (%v -> %v)", d.Path, d.Want, d.Got)
}

// diffFields walks every field present in orig and records any that is
// missing or unequal in regen. Extra fields in regen are not diffs:
// the invariant is that nothing present before serialization is lost,
// not that the regenerated form adds nothing.
//
// Strings compare NFC-normalized so the two backends' different unicode
// normalization habits do not register as data loss. Numbers compare
// within timestampTolerance.
func diffFields(path string, orig, regen any, out *[]fieldDiff) {
	switch o := orig.(type) {
	case map[string]any:
		r, ok := regen.(map[string]any)
		if !ok {
			*out = append(*out, fieldDiff{Path: path, Want: orig, Got: regen})
			return
		}
		keys := make([]string, 0, len(o))
		for k := range o {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := joinPath(path, k)
			rv, present := r[k]
			if !present {
				*out = append(*out, fieldDiff{Path: child, Want: o[k]})
				continue
			}
			diffFields(child, o[k], rv, out)
		}
	case []any:
		r, ok := regen.([]any)
		if !ok || len(r) != len(o) {
			*out = append(*out, fieldDiff{Path: path, Want: orig, Got: regen})
			return
		}
		for i := range o {
			diffFields(fmt.Sprintf("%s[%d]", path, i), o[i], r[i], out)
		}
	case string:
		r, ok := regen.(string)
		if !ok {
			*out = append(*out, fieldDiff{Path: path, Want: orig, Got: regen})
			return
		}
		// Timestamp fields compare as instants: re-marshaling rewrites
		// an equivalent offset spelling ("+00:00" becomes "Z") without
		// changing the moment it names.
		if timestampPath(path) && sameInstant(o, r) {
			return
		}
		if norm.NFC.String(o) != norm.NFC.String(r) {
			*out = append(*out, fieldDiff{Path: path, Want: orig, Got: regen})
		}
	case float64:
		r, ok := regen.(float64)
		if !ok || math.Abs(o-r) > timestampTolerance {
			*out = append(*out, fieldDiff{Path: path, Want: orig, Got: regen})
		}
	default:
		// bool and null.
		if orig != regen {
			*out = append(*out, fieldDiff{Path: path, Want: orig, Got: regen})
		}
	}
}

// timestampPath names the schema fields that hold RFC 3339 instants.
func timestampPath(path string) bool {
	return path == "metadata.created_at"
}

// sameInstant reports whether two RFC 3339 strings name the same moment
// within timestampTolerance. Unparsable values fall back to string
// comparison at the call site.
func sameInstant(a, b string) bool {
	at, err := time.Parse(time.RFC3339Nano, a)
	if err != nil {
		return false
	}
	bt, err := time.Parse(time.RFC3339Nano, b)
	if err != nil {
		return false
	}
	return math.Abs(at.Sub(bt).Seconds()) <= timestampTolerance
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// knownPath reports whether a diff path belongs to the schema this core
// owns. Unknown extension fields are expected to be dropped by a reader
// that predates them; losing one is a soft difference, not an
// incompatibility.
func knownPath(path string) bool {
	switch path {
	case "version", "metadata", "actions":
		return true
	}
	if rest, ok := strings.CutPrefix(path, "metadata."); ok {
		return knownMetadataField(firstSegment(rest))
	}
	if idx := strings.Index(path, "]."); strings.HasPrefix(path, "actions[") && idx >= 0 {
		return knownActionField(firstSegment(path[idx+2:]))
	}
	if strings.HasPrefix(path, "actions[") && strings.HasSuffix(path, "]") {
		return true // whole-element diff
	}
	return false
}

func firstSegment(s string) string {
	if i := strings.IndexAny(s, ".["); i >= 0 {
		return s[:i]
	}
	return s
}

func knownMetadataField(f string) bool {
	switch f {
	case "created_at", "duration", "action_count", "core_type", "platform",
		"screen_resolution", "additional_data":
		return true
	}
	return false
}

func knownActionField(f string) bool {
	switch f {
	case "type", "timestamp", "x", "y", "button", "key", "text",
		"modifiers", "additional_data":
		return true
	}
	return false
}
