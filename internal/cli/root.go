package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/config"
	"github.com/SmitUplenchwar2687/Beacon/internal/observability"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	return config.Load(o.configPath)
}

// logger returns the CLI console logger, or the configured one when the
// command runs as a long-lived service.
func (o *rootOptions) logger(cfg *config.Config) (*zap.Logger, error) {
	if cfg == nil {
		return observability.CLILogger(o.verbose)
	}
	level := cfg.Logging.Level
	if o.verbose {
		level = "debug"
	}
	return observability.NewLogger(level, cfg.Logging.Format)
}

// NewRootCmd creates the root beacon command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "beacon",
		Short: "Collect page performance and error reports",
		Long: `Beacon collects page timing data and error events into per-session reports.
Run the collector, stream errors to the live dashboard, and replay recorded
sessions against a virtual clock.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML or JSON config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newDashboardCmd(opts),
		newReplayCmd(opts),
		newSimulateCmd(opts),
		newGenerateCmd(opts),
	)

	return root
}
