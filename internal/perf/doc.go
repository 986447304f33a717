// Package perf measures per-operation backend performance and turns the
// measurements into comparative recommendations.
//
// One Collector exists per backend and is shared across goroutines:
// playback, health probes, and ad-hoc operations all wrap their backend
// calls in StartOperation/Complete. Metrics are a count-weighted
// incremental average, so they converge without storing full history;
// a capped ring of recent operations is kept for diagnostics, and can
// optionally be mirrored into a SQLite store for post-mortem analysis.
//
// The Manager aggregates both collectors and produces the comparison
// consumed by the fallback orchestrator. When neither backend clearly
// dominates, the recommendation keeps the current backend with low
// confidence rather than inviting oscillation.
package perf
