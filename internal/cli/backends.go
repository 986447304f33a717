package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/faults"
	"github.com/replaykit/replaykit/internal/health"
)

// BackendsOptions holds flags for the backends command.
type BackendsOptions struct {
	*RootOptions
	PolicyPath string
}

// BackendReport is the per-backend slice of the status report.
type BackendReport struct {
	Backend      string  `json:"backend"`
	Available    bool    `json:"available"`
	Functional   bool    `json:"functional"`
	Score        float64 `json:"score"`
	ResponseMS   float64 `json:"response_ms,omitempty"`
	ErrorCount   int64   `json:"error_count"`
	LastError    string  `json:"last_error,omitempty"`
	SuccessRate  float64 `json:"success_rate"`
	Operations   int64   `json:"operations"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// BackendsResult holds the full backend status report.
type BackendsResult struct {
	Backends []BackendReport `json:"backends"`
	Active   string          `json:"active"`
	Switched bool            `json:"switched"`
	Reason   string          `json:"reason,omitempty"`
}

// NewBackendsCommand creates the backends command.
func NewBackendsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackendsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Check backend health and report the active choice",
		Long: `Probe both execution backends, score them, and report which one the
fallback orchestrator would use for the next session.

Exit codes:
  0 - At least one backend is usable
  1 - No backend is usable
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackends(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.PolicyPath, "policy", "replaykit-policy.json", "path to the user policy file")

	return cmd
}

func runBackends(opts *BackendsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := buildRuntime(opts.PolicyPath, opts.RootOptions)
	if err != nil {
		return err
	}

	decision, chooseErr := rt.orchestrator.Choose(ctx)
	snap := rt.checker.Snapshot()

	result := BackendsResult{
		Active:   string(rt.orchestrator.Current()),
		Switched: decision.Switched,
		Reason:   decision.Reason,
	}
	for _, id := range backend.Identities() {
		h, ok := snap[id]
		if !ok {
			h = rt.checker.Check(ctx, id)
		}
		report := BackendReport{
			Backend:      string(id),
			Available:    h.IsAvailable,
			Functional:   h.IsFunctional,
			Score:        health.Score(h.Metrics),
			ErrorCount:   h.ErrorCount,
			SuccessRate:  h.Metrics.SuccessRate,
			Operations:   h.Metrics.OperationsCount,
			AvgLatencyMS: float64(h.Metrics.AvgResponseTime.Milliseconds()),
		}
		if h.ResponseTime != nil {
			report.ResponseMS = float64(h.ResponseTime.Milliseconds())
		}
		if h.LastError != nil {
			report.LastError = h.LastError.Error()
		}
		result.Backends = append(result.Backends, report)
	}

	if chooseErr != nil {
		result.Reason = chooseErr.Error()
		if formatter.Format == "json" {
			_ = formatter.Error(string(faults.KindOf(chooseErr)), chooseErr.Error(), result)
		} else {
			outputBackendsText(formatter, result)
		}
		return WrapExitError(ExitFailure, "no usable backend", chooseErr)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputBackendsText(formatter, result)
	return nil
}

func outputBackendsText(formatter *OutputFormatter, result BackendsResult) {
	w := formatter.Writer
	for _, b := range result.Backends {
		status := "✓"
		if !b.Available || !b.Functional {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %-12s score %.2f  success %.0f%%  ops %d\n",
			status, b.Backend, b.Score, b.SuccessRate*100, b.Operations)
		if b.LastError != "" {
			fmt.Fprintf(w, "  last error: %s\n", b.LastError)
		}
	}
	fmt.Fprintf(w, "Active backend: %s", result.Active)
	if result.Reason != "" {
		fmt.Fprintf(w, " (%s)", result.Reason)
	}
	fmt.Fprintln(w)
}
