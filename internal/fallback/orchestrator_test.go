package fallback

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/config"
	"github.com/replaykit/replaykit/internal/faults"
	"github.com/replaykit/replaykit/internal/health"
	"github.com/replaykit/replaykit/internal/perf"
	"github.com/replaykit/replaykit/internal/policy"
	"github.com/replaykit/replaykit/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fixture struct {
	orch    *Orchestrator
	checker *health.Checker
	manager *perf.Manager
	store   *policy.Store
	interp  *testutil.FakeCapability
	native  *testutil.FakeCapability
}

func newFixture(t *testing.T, initial backend.Identity) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.ProbeTimeout = config.Duration(100 * time.Millisecond)

	interp := testutil.NewFakeCapability(backend.Interpreted)
	native := testutil.NewFakeCapability(backend.Native)
	caps := map[backend.Identity]backend.Capability{
		backend.Interpreted: interp,
		backend.Native:      native,
	}

	manager := perf.NewManager(20, testLogger())
	checker := health.NewChecker(caps, manager, cfg, testLogger())
	store, err := policy.Open(filepath.Join(t.TempDir(), "policy.json"))
	require.NoError(t, err)

	return &fixture{
		orch:    New(initial, checker, manager, store, cfg, testLogger()),
		checker: checker,
		manager: manager,
		store:   store,
		interp:  interp,
		native:  native,
	}
}

// seed records n successful operations per backend so recommendations
// have data to work with.
func (f *fixture) seed(n int) {
	for _, id := range backend.Identities() {
		for i := 0; i < n; i++ {
			f.manager.Collector(id).StartOperation("op").Complete(true)
		}
	}
}

func TestChoose_HealthyCurrentStays(t *testing.T) {
	f := newFixture(t, backend.Interpreted)
	f.seed(10)

	d, err := f.orch.Choose(context.Background())
	require.NoError(t, err)
	assert.False(t, d.Switched)
	assert.Equal(t, backend.Interpreted, d.To)
	assert.Equal(t, backend.Interpreted, f.orch.Current())
}

func TestChoose_UnhealthyCurrentSwitchesImmediately(t *testing.T) {
	f := newFixture(t, backend.Interpreted)
	f.seed(10)
	f.interp.ScreenErr = errors.New("display gone")

	d, err := f.orch.Choose(context.Background())
	require.NoError(t, err)
	assert.True(t, d.Switched)
	assert.Equal(t, backend.Interpreted, d.From)
	assert.Equal(t, backend.Native, d.To)
	assert.Contains(t, d.Reason, "unhealthy")
	assert.Equal(t, backend.Native, f.orch.Current())

	// The switch is persisted as the last working backend.
	p := f.store.Current()
	require.NotNil(t, p.LastWorkingBackend)
	assert.Equal(t, backend.Native, *p.LastWorkingBackend)
}

func TestChoose_FallbackDisabledReportsOnly(t *testing.T) {
	f := newFixture(t, backend.Interpreted)
	f.interp.ScreenErr = errors.New("display gone")
	require.NoError(t, f.store.SetFallbackEnabled(false))

	d, err := f.orch.Choose(context.Background())
	require.NoError(t, err, "a disabled fallback is not an error condition")
	assert.False(t, d.Switched)
	assert.Contains(t, d.Reason, "unhealthy")
	assert.Equal(t, backend.Interpreted, f.orch.Current(), "never switch when disabled")
}

func TestChoose_NoUsableBackendFails(t *testing.T) {
	f := newFixture(t, backend.Interpreted)
	f.interp.ScreenErr = errors.New("gone")
	f.native.ProbeErr = errors.New("also gone")

	_, err := f.orch.Choose(context.Background())
	require.Error(t, err)
	assert.Equal(t, faults.KindFallbackFailed, faults.KindOf(err))
}

func TestChoose_PerformanceSwitchNeedsConfidenceAndAutoDetection(t *testing.T) {
	f := newFixture(t, backend.Interpreted)

	// Native is dramatically faster: confidence lands at 0.75.
	for i := 0; i < 10; i++ {
		m := f.manager.Collector(backend.Interpreted).StartOperation("op")
		time.Sleep(2 * time.Millisecond)
		m.Complete(true)
		f.manager.Collector(backend.Native).StartOperation("op").Complete(true)
	}

	// Auto-detection off: no switch.
	require.NoError(t, f.store.SetAutoDetectionEnabled(false))
	d, err := f.orch.Choose(context.Background())
	require.NoError(t, err)
	assert.False(t, d.Switched)

	// On, confidence 0.75 above the default 0.7 threshold: switch.
	require.NoError(t, f.store.SetAutoDetectionEnabled(true))
	d, err = f.orch.Choose(context.Background())
	require.NoError(t, err)
	assert.True(t, d.Switched)
	assert.Equal(t, backend.Native, d.To)
	assert.Contains(t, d.Reason, "performance recommendation")
}

func TestChoose_LowConfidenceKeepsCurrent(t *testing.T) {
	f := newFixture(t, backend.Interpreted)
	f.seed(10) // near-identical metrics, low confidence

	d, err := f.orch.Choose(context.Background())
	require.NoError(t, err)
	assert.False(t, d.Switched, "ties keep the current backend")
}

func TestSwitchTo_Manual(t *testing.T) {
	f := newFixture(t, backend.Interpreted)

	d, err := f.orch.SwitchTo(context.Background(), backend.Native)
	require.NoError(t, err)
	assert.True(t, d.Switched)
	assert.Equal(t, backend.Native, f.orch.Current())

	// Switching to the active backend is a no-op.
	d, err = f.orch.SwitchTo(context.Background(), backend.Native)
	require.NoError(t, err)
	assert.False(t, d.Switched)
}

func TestSwitchTo_RefusesUnhealthyTarget(t *testing.T) {
	f := newFixture(t, backend.Interpreted)
	f.native.ProbeErr = errors.New("broken")

	_, err := f.orch.SwitchTo(context.Background(), backend.Native)
	require.Error(t, err)
	assert.Equal(t, faults.KindCoreUnavailable, faults.KindOf(err))
	assert.Equal(t, backend.Interpreted, f.orch.Current())
}

func TestChoose_ConcurrentTriggersResolveToOneDecision(t *testing.T) {
	f := newFixture(t, backend.Interpreted)
	f.seed(10)
	f.interp.ScreenErr = errors.New("gone")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		switched int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := f.orch.Choose(context.Background())
			if err == nil && d.Switched {
				mu.Lock()
				switched++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, switched, "only one concurrent trigger may switch")
	assert.Equal(t, backend.Native, f.orch.Current())
}

func TestInitialBackend(t *testing.T) {
	p := policy.DefaultPolicy()
	assert.Equal(t, backend.Interpreted, InitialBackend(p))

	p.PreferredBackend = backend.Native
	assert.Equal(t, backend.Native, InitialBackend(p))

	last := backend.Interpreted
	p.LastWorkingBackend = &last
	assert.Equal(t, backend.Interpreted, InitialBackend(p),
		"last working backend outranks the preference")
}
