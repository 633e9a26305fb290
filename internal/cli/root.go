// Package cli implements the taskflow command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"taskflow/internal/agenda"
	"taskflow/internal/config"
	appLog "taskflow/internal/log"
	"taskflow/internal/store"
)

const version = "0.1.0"

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath string
	listen     string
	database   string
	timezone   string
}

// NewRootCmd builds the taskflow command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "taskflow",
		Short:   "Personal task planner with recurring tasks and calendar views",
		Version: version,
		Long: `taskflow keeps tasks with due dates and simple recurrence rules
(daily, weekdays, weekly, monthly) and shows them as day, week or month views.

Run "taskflow serve" for the HTTP API or use the subcommands directly.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "/etc/taskflow/config.yaml", "Path to config file")
	pf.StringVar(&opts.listen, "listen", "", "HTTP listen address (overrides config if set)")
	pf.StringVar(&opts.database, "db", "", "SQLite database path (overrides config if set)")
	pf.StringVar(&opts.timezone, "timezone", "", "IANA timezone (overrides config if set)")

	root.AddCommand(
		newServeCmd(opts),
		newAgendaCmd(opts),
		newAddCmd(opts),
		newCompleteCmd(opts),
		newDeleteCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// loadConfig reads the config file and applies flag overrides.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
		}
		// Defaults could not be written back; run with them anyway.
		appLog.Warn("config file not written, using defaults", "config_path", o.configPath, "err", err)
	}

	if o.listen != "" {
		cfg.Listen = o.listen
	}
	if o.database != "" {
		cfg.Database = o.database
	}
	if o.timezone != "" {
		cfg.Timezone = o.timezone
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if lvl, err := appLog.ParseLevel(cfg.LogLevel); err == nil {
		appLog.SetLevel(lvl)
	}
	return cfg, nil
}

// openService loads config and opens the task store. The returned close
// func releases the store.
func (o *options) openService() (*config.Config, *agenda.Service, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	loc := cfg.Location()
	st, err := store.NewSQLiteStore(cfg.Database, store.WithLocation(loc))
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := st.Close(); err != nil {
			appLog.Warn("closing task store failed", "err", err)
		}
	}
	return cfg, agenda.NewService(st, loc), closeFn, nil
}
