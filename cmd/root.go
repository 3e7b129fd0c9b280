// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/driver"
	"github.com/xkilldash9x/pagewright/internal/driver/cdp"
	"github.com/xkilldash9x/pagewright/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// FactoryProvider builds the driver factory the commands launch browsers with.
type FactoryProvider func(logger *zap.Logger) driver.Factory

var (
	// newFactory is swapped out in tests.
	newFactory FactoryProvider = func(logger *zap.Logger) driver.Factory { return cdp.NewFactory(logger) }
	osExit                     = os.Exit
)

// NewRootCmd builds the command tree with fresh flag and config state.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "pagewright",
		Short:         "Pagewright drives a shared browser session through page-lifecycle checks.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagewright"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting pagewright.", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./pagewright.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("browser", "", "browser kind: chrome, chromium, edge")
	flags.Bool("headless", true, "run the browser without a window")
	flags.String("probe", "", "readiness probe: angular, angularjs, jquery, document, none, script")
	flags.String("probe-script", "", "custom readiness expression for --probe=script")

	flags.String("base-url", "", "base URL relative targets are resolved against")

	rootCmd.AddCommand(newSmokeCmd())
	rootCmd.AddCommand(newProbeCmd())
	return rootCmd
}

// flagBindings maps flags (root and subcommand) onto config keys.
var flagBindings = map[string]string{
	"log-level":    "logger.level",
	"browser":      "browser.kind",
	"headless":     "browser.headless",
	"probe":        "readiness.probe",
	"probe-script": "readiness.script",
	"base-url":     "run.base_url",
	"landmark":     "run.landmark",
	"workers":      "run.workers",
	"screenshots":  "artifacts.screenshot_path",
}

// initializeConfig reads the config file and PAGEWRIGHT_* environment variables, then binds flags.
// Precedence: flags, environment, file, defaults.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pagewright")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PAGEWRIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for flag, key := range flagBindings {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// configFrom returns the config stored by the root command's pre-run.
func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// ExecuteContext runs the CLI and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	defer observability.Sync()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		observability.Sync()
		osExit(1)
	}
}
