package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "taskflow/internal/log"
	"taskflow/internal/schedule"
	"taskflow/internal/web"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled calendar export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, svc, closeStore, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeStore()

			appLog.Info("taskflow starting", "version", version)
			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Location().String(),
				"database", cfg.Database,
				"default_view", cfg.DefaultView,
				"basic_auth", cfg.BasicAuthEnabled(),
				"export_cron", cfg.Export.Cron,
				"export_path", cfg.Export.Path,
			)

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			exportDone := make(chan struct{})
			if cfg.Export.Cron != "" {
				exp, err := schedule.NewExporter(svc, cfg.Export.Cron, cfg.Export.Path, cfg.Location())
				if err != nil {
					return err
				}
				go func() {
					defer close(exportDone)
					if err := exp.Run(ctx); err != nil {
						appLog.Error("export scheduler failed", err)
					}
				}()
			} else {
				close(exportDone)
			}

			err = web.StartServer(ctx, cfg, svc)
			cancel()
			<-exportDone
			appLog.Info("taskflow exiting")
			return err
		},
	}
}
