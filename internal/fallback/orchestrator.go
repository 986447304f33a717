// Package fallback routes execution between the two backends.
//
// The orchestrator consumes backend health, the performance comparison,
// and the user policy to pick or switch the active backend. Decisions
// are serialized: a health-triggered switch and a manual switch request
// arriving together are resolved by one owner, so the active backend
// never oscillates under concurrent triggers.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/config"
	"github.com/replaykit/replaykit/internal/faults"
	"github.com/replaykit/replaykit/internal/health"
	"github.com/replaykit/replaykit/internal/perf"
	"github.com/replaykit/replaykit/internal/policy"
)

// Decision reports the outcome of one routing decision.
type Decision struct {
	Switched bool             `json:"switched"`
	From     backend.Identity `json:"from"`
	To       backend.Identity `json:"to"`
	Reason   string           `json:"reason"`
}

// Orchestrator owns the active-backend choice.
type Orchestrator struct {
	checker *health.Checker
	manager *perf.Manager
	store   *policy.Store
	cfg     config.Config
	logger  *slog.Logger

	mu      sync.Mutex // serializes decisions and guards current
	current backend.Identity
}

// InitialBackend picks the starting backend from policy: the last
// working backend when known, otherwise the user's preference.
func InitialBackend(p policy.Policy) backend.Identity {
	if p.LastWorkingBackend != nil && p.LastWorkingBackend.Valid() {
		return *p.LastWorkingBackend
	}
	if p.PreferredBackend.Valid() {
		return p.PreferredBackend
	}
	return backend.Interpreted
}

// New creates an Orchestrator starting on initial.
func New(initial backend.Identity, checker *health.Checker, manager *perf.Manager, store *policy.Store, cfg config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		checker: checker,
		manager: manager,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		current: initial,
	}
}

// Current returns the active backend.
func (o *Orchestrator) Current() backend.Identity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Choose confirms or switches the active backend. Called before a
// session starts and whenever a mid-session switch is considered.
//
// Policy gates, in order: fallback disabled means report-only, an
// unhealthy active backend forces an immediate switch, and performance
// recommendations apply only with auto-detection on and confidence
// above the configured threshold.
func (o *Orchestrator) Choose(ctx context.Context) (Decision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Refresh stale probes only; fresh results are reused.
	for _, id := range backend.Identities() {
		if o.checker.NeedsCheck(id) {
			o.checker.Check(ctx, id)
		}
	}
	snap := o.checker.Snapshot()
	pol := o.store.Current()
	cur := o.current
	active := snap[cur]

	healthy := active.IsAvailable && active.IsFunctional

	if !pol.FallbackEnabled {
		reason := "fallback disabled; staying on " + string(cur)
		if !healthy {
			reason = fmt.Sprintf("fallback disabled; %s is unhealthy (%s)", cur, describeFault(active))
		}
		return Decision{From: cur, To: cur, Reason: reason}, nil
	}

	if !healthy {
		best, ok := o.checker.SuggestBest()
		if !ok {
			return Decision{From: cur, To: cur},
				faults.New(faults.KindFallbackFailed, "no backend is available and functional")
		}
		return o.switchLocked(cur, best,
			fmt.Sprintf("%s is unhealthy (%s)", cur, describeFault(active))), nil
	}

	if pol.AutoDetectionEnabled {
		rec := o.manager.Comparison(cur).Recommendation
		if rec.Backend != cur && rec.Confidence > o.cfg.ConfidenceThreshold {
			if h := snap[rec.Backend]; h.IsAvailable && h.IsFunctional {
				reason := fmt.Sprintf("performance recommendation (confidence %.2f)", rec.Confidence)
				if len(rec.Reasons) > 0 {
					reason += ": " + rec.Reasons[0]
				}
				return o.switchLocked(cur, rec.Backend, reason), nil
			}
		}
	}

	return Decision{From: cur, To: cur, Reason: "current backend healthy"}, nil
}

// SwitchTo is a manual switch request. It refuses targets that are not
// currently available and functional.
func (o *Orchestrator) SwitchTo(ctx context.Context, to backend.Identity) (Decision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if to == o.current {
		return Decision{From: to, To: to, Reason: "already active"}, nil
	}

	h := o.checker.Check(ctx, to)
	if !h.IsAvailable || !h.IsFunctional {
		return Decision{From: o.current, To: o.current},
			faults.New(faults.KindCoreUnavailable, "cannot switch to %s: %s", to, describeFault(h))
	}
	return o.switchLocked(o.current, to, "user requested"), nil
}

// switchLocked performs the switch and persists it. Policy persistence
// is best-effort: a failed write must not undo a switch away from a
// broken backend.
func (o *Orchestrator) switchLocked(from, to backend.Identity, reason string) Decision {
	o.current = to
	if err := o.store.SetLastWorking(to); err != nil {
		o.logger.Warn("failed to persist last working backend", "backend", to, "error", err)
	}
	o.logger.Info("backend switched", "from", from, "to", to, "reason", reason)
	return Decision{Switched: true, From: from, To: to, Reason: reason}
}

func describeFault(h health.Health) string {
	switch {
	case h.LastError != nil:
		return string(h.LastError.Kind)
	case !h.IsAvailable:
		return "unavailable"
	case !h.IsFunctional:
		return "not functional"
	default:
		return "healthy"
	}
}
