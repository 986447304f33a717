package perf

import (
	"log/slog"
	"sync"
	"time"

	"github.com/replaykit/replaykit/internal/backend"
)

// Metrics is the rolling performance summary for one backend.
type Metrics struct {
	AvgResponseTime time.Duration `json:"avg_response_time"`
	SuccessRate     float64       `json:"success_rate"`
	OperationsCount int64         `json:"operations_count"`
}

// Operation is one completed measurement, kept in the diagnostics ring.
type Operation struct {
	Type     string        `json:"type"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	At       time.Time     `json:"at"`
}

// Collector records operation timings for a single backend.
//
// Thread-safety: one Collector instance is shared across every
// goroutine that touches the backend (player loop, health probes,
// manual operations). All state is guarded by mu.
type Collector struct {
	id     backend.Identity
	logger *slog.Logger
	sink   *Store // optional persistent diagnostics sink

	mu      sync.Mutex
	metrics Metrics
	history []Operation // circular, bounded by histCap
	head    int         // next write position in history
	full    bool

	histCap int
	now     func() time.Time
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithSink mirrors completed operations into a persistent store.
// Sink failures are logged, never propagated: diagnostics must not
// break measurement.
func WithSink(s *Store) CollectorOption {
	return func(c *Collector) { c.sink = s }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) { c.now = now }
}

// NewCollector creates a Collector for the given backend with a history
// ring of historyCap entries.
func NewCollector(id backend.Identity, historyCap int, logger *slog.Logger, opts ...CollectorOption) *Collector {
	if historyCap < 1 {
		historyCap = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		id:      id,
		logger:  logger,
		history: make([]Operation, historyCap),
		histCap: historyCap,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the identity this collector measures.
func (c *Collector) Backend() backend.Identity { return c.id }

// Measurement is one in-flight timed operation. Complete must be called
// exactly once; further calls are ignored.
type Measurement struct {
	c       *Collector
	opType  string
	started time.Time
	once    sync.Once
}

// StartOperation begins timing a unit of backend work.
func (c *Collector) StartOperation(opType string) *Measurement {
	return &Measurement{c: c, opType: opType, started: c.now()}
}

// Complete records the elapsed time and outcome.
func (m *Measurement) Complete(success bool) {
	m.once.Do(func() {
		m.c.record(m.opType, m.c.now().Sub(m.started), success)
	})
}

func (c *Collector) record(opType string, elapsed time.Duration, success bool) {
	c.mu.Lock()

	// Count-weighted incremental blend: converges to the true average
	// without retaining samples.
	n := c.metrics.OperationsCount
	c.metrics.AvgResponseTime = time.Duration(
		(int64(c.metrics.AvgResponseTime)*n + int64(elapsed)) / (n + 1),
	)
	succ := 0.0
	if success {
		succ = 1.0
	}
	c.metrics.SuccessRate = (c.metrics.SuccessRate*float64(n) + succ) / float64(n+1)
	c.metrics.OperationsCount = n + 1

	op := Operation{Type: opType, Duration: elapsed, Success: success, At: c.now()}
	c.history[c.head] = op
	c.head = (c.head + 1) % c.histCap
	if c.head == 0 {
		c.full = true
	}
	c.mu.Unlock()

	if c.sink != nil {
		if err := c.sink.Record(c.id, op); err != nil {
			c.logger.Warn("perf sink write failed",
				"backend", c.id, "op_type", opType, "error", err)
		}
	}
}

// Snapshot returns the current rolling metrics.
func (c *Collector) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// History returns the retained operations, oldest first.
func (c *Collector) History() []Operation {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.full {
		out := make([]Operation, c.head)
		copy(out, c.history[:c.head])
		return out
	}
	out := make([]Operation, 0, c.histCap)
	out = append(out, c.history[c.head:]...)
	out = append(out, c.history[:c.head]...)
	return out
}

// Reset clears metrics and history. Operator action, not routine.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = Metrics{}
	c.history = make([]Operation, c.histCap)
	c.head = 0
	c.full = false
}
