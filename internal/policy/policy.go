// Package policy persists the user's backend preferences.
//
// The policy file is the only cross-process shared state in the core.
// It is read once at startup and written only through setters, each of
// which timestamps the change and rewrites the file atomically
// (write-temp-then-rename), so concurrent readers never observe a
// half-written file.
package policy

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/faults"
)

// Policy is the user-owned backend selection policy.
type Policy struct {
	PreferredBackend           backend.Identity  `json:"preferred_backend"`
	FallbackEnabled            bool              `json:"fallback_enabled"`
	PerformanceTrackingEnabled bool              `json:"performance_tracking_enabled"`
	AutoDetectionEnabled       bool              `json:"auto_detection_enabled"`
	LastWorkingBackend         *backend.Identity `json:"last_working_backend,omitempty"`
	UpdatedAt                  time.Time         `json:"updated_at"`
}

// DefaultPolicy prefers the interpreted backend with every safety net
// enabled.
func DefaultPolicy() Policy {
	return Policy{
		PreferredBackend:           backend.Interpreted,
		FallbackEnabled:            true,
		PerformanceTrackingEnabled: true,
		AutoDetectionEnabled:       true,
	}
}

// Store owns the policy file. Setters serialize through a mutex so two
// concurrent writers cannot interleave read-modify-write cycles.
type Store struct {
	mu   sync.Mutex
	path string
	cur  Policy
}

// Open loads the policy file, falling back to the defaults when the
// file does not exist yet.
func Open(path string) (*Store, error) {
	st := &Store{path: path, cur: DefaultPolicy()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return nil, faults.Wrap(faults.KindIO, err, "read policy %s", path)
	}
	if err := json.Unmarshal(data, &st.cur); err != nil {
		return nil, faults.Wrap(faults.KindSerialization, err, "parse policy %s", path)
	}
	return st, nil
}

// Current returns a snapshot of the policy.
func (s *Store) Current() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// SetPreferred records the user's preferred backend.
func (s *Store) SetPreferred(id backend.Identity) error {
	return s.update(func(p *Policy) { p.PreferredBackend = id })
}

// SetFallbackEnabled toggles automatic backend switching.
func (s *Store) SetFallbackEnabled(enabled bool) error {
	return s.update(func(p *Policy) { p.FallbackEnabled = enabled })
}

// SetPerformanceTrackingEnabled toggles per-operation measurement.
func (s *Store) SetPerformanceTrackingEnabled(enabled bool) error {
	return s.update(func(p *Policy) { p.PerformanceTrackingEnabled = enabled })
}

// SetAutoDetectionEnabled toggles performance-driven recommendations.
func (s *Store) SetAutoDetectionEnabled(enabled bool) error {
	return s.update(func(p *Policy) { p.AutoDetectionEnabled = enabled })
}

// SetLastWorking records the backend that most recently completed work,
// used as the starting choice on the next run.
func (s *Store) SetLastWorking(id backend.Identity) error {
	return s.update(func(p *Policy) { p.LastWorkingBackend = &id })
}

// update applies mut, stamps the change, and rewrites the file as one
// atomic replacement.
func (s *Store) update(mut func(*Policy)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	mut(&next)
	next.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return faults.Wrap(faults.KindSerialization, err, "marshal policy")
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return faults.Wrap(faults.KindIO, err, "write policy %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return faults.Wrap(faults.KindIO, err, "rename policy %s", s.path)
	}

	s.cur = next
	return nil
}
