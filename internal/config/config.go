// Package config holds the runtime tunables of the execution core.
//
// The original behavior hard-coded the fallback confidence threshold
// and the health rescan interval; both are configuration here because
// tie-breaking between near-equal backends is deliberately loose and
// operators need room to tune it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values read as "30s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the runtime configuration for the core.
type Config struct {
	// HealthCheckInterval is how stale a health probe may be before
	// NeedsCheck reports true.
	HealthCheckInterval Duration `yaml:"health_check_interval"`

	// ProbeTimeout bounds a single backend probe. A probe that exceeds
	// it is recorded as unavailable, never left hanging.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// ConfidenceThreshold gates performance-driven backend switches.
	// Recommendations below it keep the current backend.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// HistoryCap bounds the per-backend operation history kept for
	// diagnostics.
	HistoryCap int `yaml:"history_cap"`

	// EventBufferSize sizes the playback progress channel. When the
	// consumer lags further than this, events are dropped, not queued.
	EventBufferSize int `yaml:"event_buffer_size"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		HealthCheckInterval: Duration(30 * time.Second),
		ProbeTimeout:        Duration(5 * time.Second),
		ConfidenceThreshold: 0.7,
		HistoryCap:          100,
		EventBufferSize:     64,
	}
}

// Load reads configuration from a YAML file, layering it over the
// defaults. A missing file is not an error: defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would disable safety behavior.
func (c Config) Validate() error {
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("health_check_interval must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in (0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.HistoryCap <= 0 {
		return fmt.Errorf("history_cap must be positive")
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("event_buffer_size must be positive")
	}
	return nil
}
