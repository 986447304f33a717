package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/fallback"
	"github.com/replaykit/replaykit/internal/faults"
	"github.com/replaykit/replaykit/internal/health"
	"github.com/replaykit/replaykit/internal/perf"
	"github.com/replaykit/replaykit/internal/player"
	"github.com/replaykit/replaykit/internal/policy"
	"github.com/replaykit/replaykit/internal/script"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Speed      float64
	Loops      int
	Backend    string // "auto" or an explicit identity
	PolicyPath string
}

// PlayResult holds the playback outcome.
type PlayResult struct {
	Backend   string  `json:"backend"`
	State     string  `json:"state"`
	Actions   int     `json:"actions"`
	Executed  int     `json:"executed"`
	Loops     int     `json:"loops"`
	Warnings  int     `json:"warnings"`
	Dropped   int64   `json:"dropped_events,omitempty"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Reason    string  `json:"reason,omitempty"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <script.json>",
		Short: "Play a script through an execution backend",
		Long: `Play a recorded script through an execution backend.

Without a real platform backend wired in this executes against the
dry-run capability, which logs each primitive instead of injecting
input. The full pipeline still runs: validation, backend selection,
timing, rescaling, and progress reporting.

Exit codes:
  0 - Playback completed
  1 - Script invalid or playback failed
  2 - Command error (file not found, bad flag value)

Examples:
  replaykit play recording.json
  replaykit play recording.json --speed 2 --loops 3
  replaykit play recording.json --backend native`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.Speed, "speed", 1.0, "playback speed multiplier (0.1 to 10)")
	cmd.Flags().IntVar(&opts.Loops, "loops", 1, "number of repetitions")
	cmd.Flags().StringVar(&opts.Backend, "backend", "auto", "backend to use (auto|interpreted|native)")
	cmd.Flags().StringVar(&opts.PolicyPath, "policy", "replaykit-policy.json", "path to the user policy file")

	return cmd
}

func runPlay(opts *PlayOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	s, err := script.LoadFile(path)
	if err != nil {
		code := string(faults.KindOf(err))
		_ = formatter.Error(code, err.Error(), nil)
		if faults.IsKind(err, faults.KindIO) {
			return WrapExitError(ExitCommandError, "failed to read script", err)
		}
		return WrapExitError(ExitFailure, "script rejected", err)
	}
	formatter.VerboseLog("Loaded %d action(s) recorded on %s/%s",
		s.ActionCount(), s.Metadata.CoreType, s.Metadata.Platform)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	id, err := selectBackend(ctx, opts, formatter)
	if err != nil {
		return err
	}

	width, height := 1920, 1080
	if r := s.Metadata.ScreenResolution; r != nil {
		width, height = r.Width, r.Height
	}
	cap := backend.NewDryRun(id, width, height, logger)

	manager := perf.NewManager(cfg.HistoryCap, logger)
	p := player.New(cap, manager.Collector(id), cfg.EventBufferSize, logger)

	if err := p.Load(s); err != nil {
		_ = formatter.Error(string(faults.KindOf(err)), err.Error(), nil)
		return WrapExitError(ExitFailure, "script rejected", err)
	}

	started := time.Now()
	if err := p.Start(opts.Speed, opts.Loops); err != nil {
		_ = formatter.Error(string(faults.KindOf(err)), err.Error(), nil)
		return WrapExitError(ExitFailure, "playback refused", err)
	}

	// Wait on Done, not on a terminal state event: the event stream
	// drops under a lagging consumer and the channel is never closed,
	// so a dropped terminal event would leave a range loop waiting
	// forever.
	warnings := 0
	handle := func(ev player.Event) {
		switch ev.Kind {
		case player.EventWarning:
			warnings++
			formatter.VerboseLog("warning: %s", ev.Message)
		case player.EventProgress:
			formatter.VerboseLog("progress: %d/%d (%.0f%%)", ev.Index, ev.Total, ev.Percent)
		}
	}
	sessionDone := p.Done()
	for sessionDone != nil {
		select {
		case ev := <-p.Events():
			handle(ev)
		case <-sessionDone:
			sessionDone = nil
		}
	}
drain:
	for {
		select {
		case ev := <-p.Events():
			handle(ev)
		default:
			break drain
		}
	}

	status := p.Status()
	result := PlayResult{
		Backend:   string(id),
		State:     string(status.State),
		Actions:   s.ActionCount(),
		Executed:  status.CurrentIndex,
		Loops:     opts.Loops,
		Warnings:  warnings,
		Dropped:   p.DroppedEvents(),
		ElapsedMS: float64(time.Since(started)) / float64(time.Millisecond),
		Reason:    status.Reason,
	}

	if status.State != player.StateCompleted {
		if formatter.Format == "json" {
			_ = formatter.Error(string(faults.KindOf(p.Err())), result.Reason, result)
		} else {
			fmt.Fprintf(formatter.Writer, "✗ Playback %s: %s\n", result.State, result.Reason)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("playback %s", result.State))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Played %d action(s) on %s backend in %.0fms",
		result.Actions, result.Backend, result.ElapsedMS)
	if result.Warnings > 0 {
		fmt.Fprintf(formatter.Writer, " (%d warning(s))", result.Warnings)
	}
	fmt.Fprintln(formatter.Writer)
	return nil
}

// selectBackend resolves the --backend flag: explicit identities are
// used as-is, "auto" goes through the fallback orchestrator.
func selectBackend(ctx context.Context, opts *PlayOptions, formatter *OutputFormatter) (backend.Identity, error) {
	if opts.Backend != "auto" {
		id, err := backend.Parse(opts.Backend)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "invalid --backend", err)
		}
		return id, nil
	}

	rt, err := buildRuntime(opts.PolicyPath, opts.RootOptions)
	if err != nil {
		return "", err
	}

	decision, err := rt.orchestrator.Choose(ctx)
	if err != nil {
		return "", WrapExitError(ExitFailure, "no usable backend", err)
	}
	formatter.VerboseLog("Backend decision: %s (%s)", decision.To, decision.Reason)
	return decision.To, nil
}

// backendRuntime bundles the orchestration components a command wires up:
// dry-run capabilities, health checker, perf manager, policy store,
// and the fallback orchestrator on top.
type backendRuntime struct {
	checker      *health.Checker
	manager      *perf.Manager
	store        *policy.Store
	orchestrator *fallback.Orchestrator
}

func buildRuntime(policyPath string, rootOpts *RootOptions) (*backendRuntime, error) {
	logger := newLogger(rootOpts)

	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return nil, err
	}

	store, err := policy.Open(policyPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open policy", err)
	}

	caps := map[backend.Identity]backend.Capability{}
	for _, id := range backend.Identities() {
		caps[id] = backend.NewDryRun(id, 1920, 1080, logger)
	}

	manager := perf.NewManager(cfg.HistoryCap, logger)
	checker := health.NewChecker(caps, manager, cfg, logger)
	initial := fallback.InitialBackend(store.Current())
	return &backendRuntime{
		checker:      checker,
		manager:      manager,
		store:        store,
		orchestrator: fallback.New(initial, checker, manager, store, cfg, logger),
	}, nil
}
