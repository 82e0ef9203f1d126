package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newDashboardCmd(ro *rootOptions) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start the collector and print the live dashboard address",
		Long: `Starts the Beacon collector with console logging and prints where to
find the live dashboard. Errors posted to any session appear on the
dashboard as they happen, followed by throttled report snapshots.

Open your browser to http://localhost:<port>/ to view.`,
		Example: `  beacon dashboard
  beacon dashboard --addr :9090 --sink memory,log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			logger, err := ro.logger(nil)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			return runServer(ctx, cfg, logger, func(addr string) {
				printf(out, "\n  Beacon Dashboard\n")
				printf(out, "  ────────────────────────────────────\n")
				printf(out, "  Dashboard:  http://%s/\n", addr)
				printf(out, "  Sessions:   http://%s/api/sessions\n", addr)
				printf(out, "  WebSocket:  ws://%s/ws\n", addr)
				printf(out, "  Sinks:      %v\n", cfg.Sink.Kinds)
				printf(out, "  ────────────────────────────────────\n\n")
			})
		},
	}

	flags.addFlags(cmd)
	return cmd
}
