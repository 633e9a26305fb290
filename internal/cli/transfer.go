package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"taskflow/internal/ics"
	appLog "taskflow/internal/log"
)

func newImportCmd(opts *options) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "import <file|url>",
		Short: "Import tasks from an iCalendar file or URL",
		Long: `Import VTODO and VEVENT components as tasks. Components with an
RRULE are imported only when the rule matches one of the supported
recurrences; the rest are skipped with a warning.

Examples:
  taskflow import ./tasks.ics
  taskflow import https://example.com/calendar.ics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, closeStore, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeStore()

			src, body, err := ics.NewFetcher(nil).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			inputs, err := ics.Decode(src, body)
			if err != nil {
				return err
			}

			created, err := svc.Import(cmd.Context(), inputs)
			out := cmd.OutOrStdout()
			for _, t := range created {
				RenderTask(out, t)
			}
			fmt.Fprintf(out, "Imported %d of %d tasks\n", len(created), len(inputs))
			if err != nil {
				if strict {
					return err
				}
				appLog.Warn("some tasks were not imported", "err", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any task is rejected")
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all tasks as iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, closeStore, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeStore()

			tasks, err := svc.All(cmd.Context())
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				return ics.Encode(cmd.OutOrStdout(), tasks, ics.EncodeOptions{Name: "taskflow", Stamp: svc.Now()})
			}

			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := ics.Encode(f, tasks, ics.EncodeOptions{Name: "taskflow", Stamp: svc.Now()}); err != nil {
				_ = f.Close()
				return fmt.Errorf("export %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			appLog.Info("export written", "path", out, "tasks", len(tasks))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}
