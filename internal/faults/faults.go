// Package faults defines the error taxonomy shared by every component of
// the execution core.
//
// Each fault carries a Kind (what went wrong), a Severity, and recovery
// flags (CanRetry, CanFallback) derived from the kind. Components never
// invent ad-hoc severities: the mapping lives in one table here so the
// orchestrator and CLI agree on what is retryable.
package faults

import (
	"errors"
	"fmt"
)

// Kind categorizes a fault.
type Kind string

const (
	KindUnsupportedPlatform    Kind = "UNSUPPORTED_PLATFORM"
	KindPermissionDenied       Kind = "PERMISSION_DENIED"
	KindScriptError            Kind = "SCRIPT_ERROR"
	KindPlaybackError          Kind = "PLAYBACK_ERROR"
	KindCoreUnavailable        Kind = "CORE_UNAVAILABLE"
	KindCoreHealthCheckFailed  Kind = "CORE_HEALTH_CHECK_FAILED"
	KindFallbackFailed         Kind = "FALLBACK_FAILED"
	KindTimeout                Kind = "TIMEOUT"
	KindPerformanceDegradation Kind = "PERFORMANCE_DEGRADATION"
	KindDependencyMissing      Kind = "DEPENDENCY_MISSING"
	KindIO                     Kind = "IO_ERROR"
	KindSerialization          Kind = "SERIALIZATION_ERROR"
)

// Severity ranks how bad a fault is for the session.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// traits holds the recovery profile computed from a Kind.
type traits struct {
	severity  Severity
	canRetry  bool
	canFall   bool
	suggested string
}

// kindTraits is the single source of truth for severity and recovery flags.
var kindTraits = map[Kind]traits{
	KindUnsupportedPlatform:    {SeverityCritical, false, false, "run on a supported platform"},
	KindPermissionDenied:       {SeverityCritical, false, false, "grant accessibility/input permissions and restart"},
	KindScriptError:            {SeverityError, false, false, "fix the script before loading it"},
	KindPlaybackError:          {SeverityError, true, true, "retry playback or switch the execution backend"},
	KindCoreUnavailable:        {SeverityError, true, true, "switch to the other execution backend"},
	KindCoreHealthCheckFailed:  {SeverityError, true, true, "re-run the health check or switch backend"},
	KindFallbackFailed:         {SeverityCritical, false, false, "no usable backend; check installation"},
	KindTimeout:                {SeverityError, true, true, "increase the probe timeout or retry"},
	KindPerformanceDegradation: {SeverityWarning, true, true, "consider switching to the faster backend"},
	KindDependencyMissing:      {SeverityError, false, true, "install the missing dependency"},
	KindIO:                     {SeverityError, true, false, "check file paths and permissions"},
	KindSerialization:          {SeverityError, false, false, "the script file is corrupt or not a script"},
}

// Fault is a structured error with severity and recovery flags.
//
// Fault is comparable with errors.As; wrapping preserves the chain so
// callers can still reach an underlying os or sql error.
type Fault struct {
	Kind    Kind
	Message string

	// Backend names the execution backend involved, when known.
	Backend string

	// ActionIndex and ActionType locate a playback fault inside the
	// script. ActionIndex is -1 when not applicable.
	ActionIndex int
	ActionType  string

	// Cause is the wrapped underlying error, if any.
	Cause error
}

// New creates a Fault of the given kind.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), ActionIndex: -1}
}

// Wrap creates a Fault of the given kind around an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), ActionIndex: -1, Cause: cause}
}

// Error implements the error interface.
func (f *Fault) Error() string {
	switch {
	case f.Backend != "" && f.Cause != nil:
		return fmt.Sprintf("%s: %s (backend=%s): %v", f.Kind, f.Message, f.Backend, f.Cause)
	case f.Backend != "":
		return fmt.Sprintf("%s: %s (backend=%s)", f.Kind, f.Message, f.Backend)
	case f.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	default:
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
}

// Unwrap exposes the cause to errors.Is/errors.As.
func (f *Fault) Unwrap() error { return f.Cause }

// Severity returns the severity for the fault's kind.
func (f *Fault) Severity() Severity {
	if t, ok := kindTraits[f.Kind]; ok {
		return t.severity
	}
	return SeverityError
}

// CanRetry reports whether the same operation may be retried as-is.
func (f *Fault) CanRetry() bool { return kindTraits[f.Kind].canRetry }

// CanFallback reports whether switching backends could recover.
func (f *Fault) CanFallback() bool { return kindTraits[f.Kind].canFall }

// SuggestedAction returns a short operator-facing hint.
func (f *Fault) SuggestedAction() string { return kindTraits[f.Kind].suggested }

// IsKind returns true when err (or anything it wraps) is a Fault of kind k.
func IsKind(err error, k Kind) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == k
	}
	return false
}

// KindOf extracts the Kind from err, or "" when err carries no Fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
