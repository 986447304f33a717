// Package health probes backend availability and functional readiness.
//
// A probe has two phases: availability (is the backend installed and
// reachable at all, checked via ScreenSize) and functionality (can it
// perform a trivial operation, checked via Probe). Availability failure
// short-circuits functionality to false. Every probe is bounded by the
// configured timeout; a backend that hangs is recorded as unavailable
// with a timeout fault and never stalls the caller.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/config"
	"github.com/replaykit/replaykit/internal/faults"
	"github.com/replaykit/replaykit/internal/perf"
)

// Health is the per-backend probe record. Created lazily on the first
// check, updated in place each cycle, never deleted for the process
// lifetime.
type Health struct {
	Backend      backend.Identity `json:"backend"`
	IsAvailable  bool             `json:"is_available"`
	IsFunctional bool             `json:"is_functional"`
	LastCheck    time.Time        `json:"last_check"`

	// ResponseTime is the duration of the last successful probe cycle,
	// nil when the backend has never responded.
	ResponseTime *time.Duration `json:"response_time,omitempty"`

	// ErrorCount is monotonic; only ResetErrors clears it.
	ErrorCount int64 `json:"error_count"`

	// LastError is the most recent probe fault, nil when healthy.
	LastError *faults.Fault `json:"last_error,omitempty"`

	// Metrics is the rolling performance snapshot at check time.
	Metrics perf.Metrics `json:"performance_metrics"`
}

// Checker probes every known backend.
//
// Thread-safety: CheckAll may run concurrently with playback and with
// performance measurement; the health map is guarded by mu and probes
// themselves run outside the lock.
type Checker struct {
	caps   map[backend.Identity]backend.Capability
	perf   *perf.Manager
	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	health map[backend.Identity]*Health
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) CheckerOption {
	return func(c *Checker) { c.now = now }
}

// NewChecker creates a Checker over the registered capabilities. A
// backend missing from caps is reported as unavailable, not an error:
// one backend being uninstalled is a normal condition.
func NewChecker(caps map[backend.Identity]backend.Capability, pm *perf.Manager, cfg config.Config, logger *slog.Logger, opts ...CheckerOption) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{
		caps:   caps,
		perf:   pm,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		health: make(map[backend.Identity]*Health),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckAll probes every known backend concurrently and returns a
// snapshot of the results.
func (c *Checker) CheckAll(ctx context.Context) map[backend.Identity]Health {
	var wg sync.WaitGroup
	for _, id := range backend.Identities() {
		wg.Add(1)
		go func(id backend.Identity) {
			defer wg.Done()
			c.checkOne(ctx, id)
		}(id)
	}
	wg.Wait()
	return c.Snapshot()
}

// Check probes a single backend and returns its updated record.
func (c *Checker) Check(ctx context.Context, id backend.Identity) Health {
	c.checkOne(ctx, id)
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.health[id]
}

func (c *Checker) checkOne(ctx context.Context, id backend.Identity) {
	cap, registered := c.caps[id]

	started := c.now()
	var (
		available  bool
		functional bool
		fault      *faults.Fault
	)

	switch {
	case !registered:
		fault = faults.New(faults.KindCoreUnavailable, "backend not registered")
		fault.Backend = string(id)
	default:
		fault = c.probe(ctx, id, cap, &available, &functional)
	}
	elapsed := c.now().Sub(started)

	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.health[id]
	if !ok {
		h = &Health{Backend: id}
		c.health[id] = h
	}
	h.IsAvailable = available
	h.IsFunctional = functional
	h.LastCheck = c.now()
	h.LastError = fault
	if fault != nil {
		h.ErrorCount++
		h.ResponseTime = nil
		c.logger.Warn("backend probe failed",
			"backend", id, "kind", fault.Kind, "error", fault)
	} else {
		h.ResponseTime = &elapsed
	}
	if c.perf != nil {
		h.Metrics = c.perf.Collector(id).Snapshot()
	}
}

// probe runs the two phases under the configured timeout. The work runs
// in its own goroutine so a capability that ignores ctx still cannot
// hang the checker.
func (c *Checker) probe(ctx context.Context, id backend.Identity, cap backend.Capability, available, functional *bool) *faults.Fault {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout.Std())
	defer cancel()

	type result struct {
		available  bool
		functional bool
		fault      *faults.Fault
	}
	done := make(chan result, 1)

	go func() {
		var m *perf.Measurement
		if c.perf != nil {
			m = c.perf.Collector(id).StartOperation("health_probe")
		}

		r := result{}
		// Phase 1: availability.
		if _, _, err := cap.ScreenSize(ctx); err != nil {
			r.fault = faults.Wrap(faults.KindCoreUnavailable, err, "availability check failed")
			r.fault.Backend = string(id)
		} else {
			r.available = true
			// Phase 2: functionality, only when available.
			if err := cap.Probe(ctx); err != nil {
				r.fault = faults.Wrap(faults.KindCoreHealthCheckFailed, err, "functional probe failed")
				r.fault.Backend = string(id)
			} else {
				r.functional = true
			}
		}
		if m != nil {
			m.Complete(r.fault == nil)
		}
		done <- r
	}()

	select {
	case r := <-done:
		*available = r.available
		*functional = r.functional
		return r.fault
	case <-ctx.Done():
		f := faults.Wrap(faults.KindTimeout, ctx.Err(), "probe exceeded %v", c.cfg.ProbeTimeout.Std())
		f.Backend = string(id)
		*available = false
		*functional = false
		return f
	}
}

// NeedsCheck reports whether id has never been probed or its last probe
// is older than the configured interval.
func (c *Checker) NeedsCheck(id backend.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.health[id]
	if !ok {
		return true
	}
	return c.now().Sub(h.LastCheck) > c.cfg.HealthCheckInterval.Std()
}

// ResetErrors clears the monotonic error counter for id. This is an
// explicit operator action, never automatic.
func (c *Checker) ResetErrors(id backend.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.health[id]; ok {
		h.ErrorCount = 0
	}
}

// Snapshot returns a copy of every health record observed so far.
func (c *Checker) Snapshot() map[backend.Identity]Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[backend.Identity]Health, len(c.health))
	for id, h := range c.health {
		out[id] = *h
	}
	return out
}

// SuggestBest returns the highest-scoring backend among those both
// available and functional. The second return is false when no backend
// qualifies.
func (c *Checker) SuggestBest() (backend.Identity, bool) {
	snap := c.Snapshot()

	var (
		best      backend.Identity
		bestScore = -1.0
		found     bool
	)
	// Identities() order makes ties deterministic.
	for _, id := range backend.Identities() {
		h, ok := snap[id]
		if !ok || !h.IsAvailable || !h.IsFunctional {
			continue
		}
		if s := Score(h.Metrics); s > bestScore {
			best, bestScore, found = id, s, true
		}
	}
	return best, found
}
