package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskflow/internal/model"
	"taskflow/internal/validate"
)

func newAgendaCmd(opts *options) *cobra.Command {
	var (
		view   string
		date   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Show the tasks due in a day, week or month",
		Long: `Show every occurrence of every task inside a view, grouped by day.

Examples:
  taskflow agenda                          # this week
  taskflow agenda --view day               # today
  taskflow agenda --view month --date 2024-02-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, svc, closeStore, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeStore()

			fallback, err := model.ParseView(cfg.DefaultView)
			if err != nil {
				fallback = model.ViewWeek
			}
			v, err := validate.ParseView(view, fallback)
			if err != nil {
				return err
			}
			ref, err := validate.ParseDate(date, svc.Now(), svc.Location())
			if err != nil {
				return err
			}

			a, err := svc.Agenda(cmd.Context(), v, ref)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			RenderAgenda(cmd.OutOrStdout(), a)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&view, "view", "", "View: day, week or month (default from config)")
	f.StringVar(&date, "date", "", "Reference date, e.g. 2024-03-14 (default today)")
	f.BoolVar(&asJSON, "json", false, "Print the agenda as JSON")
	return cmd
}

func newAddCmd(opts *options) *cobra.Command {
	var (
		in        validate.TaskInput
		estimate  int
		progress  int
		checklist []string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Long: `Add a task due at a date and time, optionally repeating.

Examples:
  taskflow add "Pay rent" --due 2024-01-31T18:00 --recurrence monthly
  taskflow add "Standup" --due "2024-03-11 09:15" --recurrence weekdays --priority high`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, closeStore, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeStore()

			in.Title = strings.Join(args, " ")
			if cmd.Flags().Changed("estimate") {
				in.EstimatedMinutes = &estimate
			}
			if cmd.Flags().Changed("progress") {
				in.Progress = &progress
			}
			for _, text := range checklist {
				in.Checklist = append(in.Checklist, validate.ChecklistInput{Text: text})
			}

			t, err := svc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			RenderTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.DueDate, "due", "", "Due date and time, e.g. 2024-03-14T09:00")
	f.StringVar(&in.Description, "description", "", "Longer description")
	f.StringVar(&in.Recurrence, "recurrence", "", "none, daily, weekdays, weekly or monthly")
	f.StringVar(&in.Priority, "priority", "", "low, medium, high or urgent")
	f.StringVar(&in.Status, "status", "", "pending, in_progress or completed")
	f.IntVar(&estimate, "estimate", 0, "Estimated minutes")
	f.IntVar(&progress, "progress", 0, "Progress percent (0-100)")
	f.StringArrayVar(&checklist, "item", nil, "Checklist item (repeatable)")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func newCompleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, svc, closeStore, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeStore()

			t, err := svc.Complete(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("complete task %d: %w", id, err)
			}
			RenderTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task and all its occurrences",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			_, svc, closeStore, err := opts.openService()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := svc.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete task %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%d\n", id)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
