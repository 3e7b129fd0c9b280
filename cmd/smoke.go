// cmd/smoke.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/harness"
	"github.com/xkilldash9x/pagewright/internal/observability"
	"github.com/xkilldash9x/pagewright/internal/page"
	"github.com/xkilldash9x/pagewright/internal/session"
)

func newSmokeCmd() *cobra.Command {
	smokeCmd := &cobra.Command{
		Use:   "smoke [url-or-path...]",
		Short: "Load each target on a shared browser and check that its landmark is visible",
		Long: `smoke runs one unit per target. Each worker owns one browser session that is reused
for all of its units, with cookies and web storage cleared between them.`,
		RunE: runSmoke,
	}
	smokeCmd.Flags().String("landmark", "", "CSS selector that must be visible once a page has loaded")
	smokeCmd.Flags().Int("workers", 0, "number of parallel workers, each with its own browser")
	smokeCmd.Flags().String("screenshots", "", "directory for failure screenshots")
	return smokeCmd
}

func runSmoke(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

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

	pageOpts := page.Options{
		Timeouts:     driverOpts.Timeouts,
		PollInterval: cfg.Timeouts().PollInterval,
		Probe:        probe,
		Logger:       logger,
	}
	landmark := cfg.Run().Landmark
	units := make([]harness.Unit, len(targets))
	for i, target := range targets {
		units[i] = harness.Unit{Name: target, Fn: func(ctx context.Context, env harness.Env) error {
			return page.NewLandmarkPage(target, env.Handle, landmark, pageOpts).Load(ctx, target)
		}}
	}

	factory := newFactory(logger)
	runnerOpts := harness.Options{
		Driver:              driverOpts,
		ScreenshotOnFailure: cfg.Artifacts().ScreenshotOnFailure,
		ScreenshotDir:       cfg.Artifacts().ScreenshotPath,
	}
	newRunner := func(worker int) (*harness.Runner, error) {
		wlog := logger.With(zap.Int("worker_id", worker))
		return harness.NewRunner(session.NewManager(factory, wlog), runnerOpts, wlog), nil
	}

	logger.Info("Starting smoke run.", zap.Int("targets", len(targets)), zap.Int("workers", cfg.Run().Workers))
	results, runErr := harness.RunParallel(ctx, cfg.Run().Workers, newRunner, units, logger)
	failed, err := printResults(cmd.OutOrStdout(), results)
	if err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(results))
	}
	return nil
}

// printResults writes a result table and returns the number of failed units.
func printResults(w io.Writer, results []harness.UnitResult) (int, error) {
	failed := 0
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tTARGET\tDURATION\tDETAIL")
	for _, res := range results {
		status, detail := "PASS", ""
		if !res.Passed() {
			failed++
			status, detail = "FAIL", res.Err.Error()
			if res.Screenshot != "" {
				detail += " (screenshot: " + res.Screenshot + ")"
			}
		}
		if err := res.Isolation.Err(); err != nil {
			detail += " [isolation: " + err.Error() + "]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", status, res.Name, res.Duration.Round(time.Millisecond), detail)
	}
	return failed, tw.Flush()
}
