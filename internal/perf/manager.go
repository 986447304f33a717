package perf

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/replaykit/replaykit/internal/backend"
)

// Material-difference thresholds for recommendations. Below these the
// backends are considered equivalent and the current one is kept.
const (
	// minOperations is the sample floor under which no recommendation
	// is attempted.
	minOperations = 5

	// responseTimeEdge is the fractional response-time improvement the
	// other backend must show to count as materially faster.
	responseTimeEdge = 0.20

	// successRateEdge is the success-rate gap (absolute) that counts
	// as materially more reliable.
	successRateEdge = 0.05
)

// Recommendation names a backend choice with supporting evidence.
type Recommendation struct {
	Backend    backend.Identity `json:"backend"`
	Confidence float64          `json:"confidence"`
	Reasons    []string         `json:"reasons"`

	// EstimatedImprovement is the projected response-time gain in
	// percent, 0 when the recommendation is reliability-driven.
	EstimatedImprovement float64 `json:"estimated_improvement,omitempty"`
}

// Comparison is a point-in-time performance comparison of the two
// backends.
type Comparison struct {
	Backends map[backend.Identity]Metrics `json:"backends"`

	// ResponseTimeRatio is interpreted avg / native avg. Zero when
	// either side has no samples.
	ResponseTimeRatio float64 `json:"response_time_ratio"`

	// SuccessRateDifference is interpreted rate minus native rate.
	SuccessRateDifference float64 `json:"success_rate_difference"`

	Recommendation Recommendation `json:"recommendation"`
}

// Manager owns one Collector per backend.
type Manager struct {
	collectors map[backend.Identity]*Collector
	logger     *slog.Logger
}

// NewManager builds collectors for every known backend.
func NewManager(historyCap int, logger *slog.Logger, opts ...CollectorOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		collectors: make(map[backend.Identity]*Collector),
		logger:     logger,
	}
	for _, id := range backend.Identities() {
		m.collectors[id] = NewCollector(id, historyCap, logger, opts...)
	}
	return m
}

// Collector returns the collector for id.
func (m *Manager) Collector(id backend.Identity) *Collector {
	return m.collectors[id]
}

// Comparison compares both backends and recommends one, biased toward
// keeping current when the evidence is weak.
func (m *Manager) Comparison(current backend.Identity) Comparison {
	cur := m.collectors[current].Snapshot()
	other := m.collectors[current.Other()].Snapshot()

	interp := m.collectors[backend.Interpreted].Snapshot()
	native := m.collectors[backend.Native].Snapshot()

	cmp := Comparison{
		Backends: map[backend.Identity]Metrics{
			backend.Interpreted: interp,
			backend.Native:      native,
		},
		SuccessRateDifference: interp.SuccessRate - native.SuccessRate,
	}
	if interp.OperationsCount > 0 && native.OperationsCount > 0 && native.AvgResponseTime > 0 {
		cmp.ResponseTimeRatio = float64(interp.AvgResponseTime) / float64(native.AvgResponseTime)
	}

	cmp.Recommendation = recommend(current, cur, other)
	m.logger.Debug("performance comparison",
		"current", current,
		"recommended", cmp.Recommendation.Backend,
		"confidence", cmp.Recommendation.Confidence)
	return cmp
}

// recommend applies the materiality thresholds. Ties keep the current
// backend: switching on noise costs more than it gains.
func recommend(current backend.Identity, cur, other Metrics) Recommendation {
	if cur.OperationsCount < minOperations || other.OperationsCount < minOperations {
		return Recommendation{
			Backend:    current,
			Confidence: 0.3,
			Reasons:    []string{fmt.Sprintf("insufficient samples (need %d per backend)", minOperations)},
		}
	}

	var (
		reasons    []string
		confidence = 0.5
		improve    float64
		faster     bool
		reliable   bool
	)

	if cur.AvgResponseTime > 0 {
		gain := float64(cur.AvgResponseTime-other.AvgResponseTime) / float64(cur.AvgResponseTime)
		if gain > responseTimeEdge {
			faster = true
			improve = gain * 100
			reasons = append(reasons, fmt.Sprintf(
				"%s responds %.0f%% faster (%v vs %v)",
				current.Other(), improve,
				other.AvgResponseTime.Round(time.Microsecond),
				cur.AvgResponseTime.Round(time.Microsecond)))
		}
	}

	if gap := other.SuccessRate - cur.SuccessRate; gap > successRateEdge {
		reliable = true
		reasons = append(reasons, fmt.Sprintf(
			"%s succeeds %.1f points more often (%.1f%% vs %.1f%%)",
			current.Other(), gap*100, other.SuccessRate*100, cur.SuccessRate*100))
	}

	// A backend that is faster but materially less reliable (or the
	// reverse) is not a clear winner; stay put.
	regression := other.SuccessRate < cur.SuccessRate-successRateEdge
	if (faster && !regression) || reliable {
		confidence = 0.6
		if faster {
			confidence += 0.15
		}
		if reliable {
			confidence += 0.2
		}
		if confidence > 0.95 {
			confidence = 0.95
		}
		return Recommendation{
			Backend:              current.Other(),
			Confidence:           confidence,
			Reasons:              reasons,
			EstimatedImprovement: improve,
		}
	}

	reason := "no material performance difference"
	if faster && regression {
		reason = fmt.Sprintf("%s is faster but materially less reliable", current.Other())
	}
	return Recommendation{
		Backend:    current,
		Confidence: confidence,
		Reasons:    []string{reason},
	}
}
