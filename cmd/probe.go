// cmd/probe.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/element"
	"github.com/xkilldash9x/pagewright/internal/observability"
	"github.com/xkilldash9x/pagewright/internal/readiness"
	"github.com/xkilldash9x/pagewright/internal/session"
	"github.com/xkilldash9x/pagewright/internal/wait"
)

const releaseTimeout = 30 * time.Second

func newProbeCmd() *cobra.Command {
	probeCmd := &cobra.Command{
		Use:   "probe <url-or-path>",
		Short: "Open a page and report what the readiness probe sees",
		Long: `probe navigates to a single target, waits for the document to load and then reports
whether the configured readiness probe finds its signal and whether the application settles.
Useful for picking the right --probe for an application.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runProbe,
	}
	probeCmd.Flags().String("selector", "", "also report the state of this element")
	return probeCmd
}

func runProbe(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	logger := observability.GetLogger()
	out := cmd.OutOrStdout()

	cfg, err := configFrom(ctx)
	if err != nil {
		return err
	}
	driverOpts, err := cfg.DriverOptions()
	if err != nil {
		return err
	}
	probe, err := cfg.Probe()
	if err != nil {
		return err
	}
	targets, err := resolveTargets(cfg.Run().BaseURL, args)
	if err != nil {
		return err
	}
	target := targets[0]
	selector, _ := cmd.Flags().GetString("selector")

	mgr := session.NewManager(newFactory(logger), logger)
	h, err := mgr.Acquire(ctx, driverOpts)
	if err != nil {
		return err
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		err = errors.Join(err, mgr.Release(rctx))
	}()

	poll := cfg.Timeouts().PollInterval
	if err := h.Navigate(ctx, target); err != nil {
		return err
	}
	if err := readiness.NewChecker(readiness.DocumentReady(), poll, logger).WaitForStable(ctx, h, driverOpts.Timeouts.PageLoad); err != nil {
		return fmt.Errorf("document did not finish loading: %w", err)
	}

	checker := readiness.NewChecker(probe, poll, logger)
	fmt.Fprintf(out, "target:  %s\n", target)
	fmt.Fprintf(out, "probe:   %s\n", probe.Name())

	stable, checkErr := checker.IsStable(ctx, h)
	var mis *readiness.ProbeMisconfiguredError
	switch {
	case errors.As(checkErr, &mis):
		fmt.Fprintf(out, "signal:  absent on %s\n", mis.URL)
	case checkErr != nil:
		fmt.Fprintf(out, "signal:  error: %v\n", checkErr)
	default:
		fmt.Fprintf(out, "signal:  present (stable now: %t)\n", stable)
	}

	start := time.Now()
	waitErr := checker.WaitForStable(ctx, h, driverOpts.Timeouts.Explicit)
	if waitErr == nil {
		fmt.Fprintf(out, "settled: yes, after %s\n", time.Since(start).Round(time.Millisecond))
	} else {
		fmt.Fprintf(out, "settled: no: %v\n", waitErr)
	}

	if selector != "" {
		st, err := h.ElementState(ctx, selector)
		if err != nil {
			return fmt.Errorf("element %q: %w", selector, err)
		}
		fmt.Fprintf(out, "element: %s present=%t visible=%t enabled=%t\n", selector, st.Present, st.Visible, st.Enabled)
		if st.Present && !st.Clickable() {
			// One more look, in case the element is mid-transition.
			w := element.NewWaiter(wait.Poller{Timeout: driverOpts.Timeouts.Explicit, Interval: poll}, logger)
			if err := w.Clickable(ctx, h, selector); err == nil {
				fmt.Fprintf(out, "element: %s became clickable\n", selector)
			}
		}
	}

	if waitErr != nil {
		logger.Debug("Probe run finished without the application settling.", zap.Error(waitErr))
		return waitErr
	}
	return nil
}
