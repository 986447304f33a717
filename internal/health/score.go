package health

import (
	"math"

	"github.com/replaykit/replaykit/internal/perf"
)

// Scoring weights. Success rate dominates; response time and a
// log-scaled operation count (a proxy for how battle-tested the backend
// is) share the rest.
const (
	weightSuccessRate   = 0.4
	weightResponseTime  = 0.3
	weightReliability   = 0.3
	responseScaleMillis = 100.0 // avg at which the response term halves
	reliabilityOpsSpan  = 3.0   // log10 span; 1000 ops saturates the term
)

// Score collapses a metrics snapshot into [0, 1] for backend ranking.
//
// A backend with no recorded operations scores 0 on every term, so a
// probed-but-unused backend never outranks one with a track record.
func Score(m perf.Metrics) float64 {
	if m.OperationsCount == 0 {
		return 0
	}

	// Inverse response time: 1 at zero latency, halved at
	// responseScaleMillis, approaching 0 as latency grows.
	avgMillis := float64(m.AvgResponseTime.Milliseconds())
	responseTerm := 1.0 / (1.0 + avgMillis/responseScaleMillis)

	// Log-scaled operation count, saturating at 10^reliabilityOpsSpan.
	reliabilityTerm := math.Log10(1+float64(m.OperationsCount)) / reliabilityOpsSpan
	if reliabilityTerm > 1 {
		reliabilityTerm = 1
	}

	return weightSuccessRate*m.SuccessRate +
		weightResponseTime*responseTerm +
		weightReliability*reliabilityTerm
}
