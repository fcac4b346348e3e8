package main

import (
	"fmt"

	"billing_cycle_bot/internal/app"
	"billing_cycle_bot/internal/domain/calendar"

	"github.com/spf13/cobra"
)

func (c *cli) runCmd() *cobra.Command {
	var projectID int64
	cmd := &cobra.Command{
		Use:       "run <generate|archive|remind>",
		Short:     "Run one lifecycle pass now",
		Long:      "Run one lifecycle pass over every active project, or over a single project with --project.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(app.OpGenerate), string(app.OpArchive), string(app.OpRemind)},
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := app.ParseOperation(args[0])
			if err != nil {
				return err
			}
			if projectID > 0 {
				return c.runProject(cmd, op, projectID)
			}
			rep, err := c.env.runner.RunPass(cmd.Context(), op)
			if rep != nil {
				printPassReport(cmd, rep)
			}
			return err
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "only run for this project")
	return cmd
}

func (c *cli) runProject(cmd *cobra.Command, op app.Operation, projectID int64) error {
	out := cmd.OutOrStdout()
	m := c.env.manager
	switch op {
	case app.OpGenerate:
		res, err := m.GenerateUpcoming(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		if len(res.ValidationErrors) > 0 {
			return printValidation(cmd, res.ValidationErrors)
		}
		fmt.Fprintf(out, "Created %d cycle(s), skipped %d, failed %d.\n", len(res.Created), res.Skipped, res.Failed)
		for _, cy := range res.Created {
			fmt.Fprintf(out, "  cycle %d due %s amount %s\n", cy.ID, calendar.Format(cy.DueDate), cy.TotalAmount.StringFixed(2))
		}
	case app.OpArchive:
		res, err := m.ArchiveOld(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		if len(res.ValidationErrors) > 0 {
			return printValidation(cmd, res.ValidationErrors)
		}
		fmt.Fprintf(out, "Archived %d cycle(s), failed %d.\n", res.Archived, res.Failed)
	case app.OpRemind:
		res, err := m.ProcessReminders(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		if len(res.ValidationErrors) > 0 && res.NoChanges() {
			return printValidation(cmd, res.ValidationErrors)
		}
		fmt.Fprintf(out, "Dispatched %d reminder(s), deduplicated %d, suppressed %d, failed %d.\n",
			res.Dispatched, res.Deduplicated, res.Suppressed, res.Failed)
	}
	return nil
}

func printPassReport(cmd *cobra.Command, rep *app.PassReport) {
	out := cmd.OutOrStdout()
	if len(rep.ValidationErrors) > 0 && rep.ID == "" {
		_ = printValidation(cmd, rep.ValidationErrors)
		return
	}
	fmt.Fprintf(out, "Pass %s (%s): %d project(s), %d failed, took %s\n",
		rep.ID, rep.Operation, rep.Projects, rep.FailedProjects, rep.Duration)
	switch rep.Operation {
	case app.OpGenerate:
		fmt.Fprintf(out, "  generated %d, skipped %d\n", rep.Generated, rep.Skipped)
	case app.OpArchive:
		fmt.Fprintf(out, "  archived %d\n", rep.Archived)
	case app.OpRemind:
		fmt.Fprintf(out, "  dispatched %d, deduplicated %d, suppressed %d\n", rep.Dispatched, rep.Deduplicated, rep.Suppressed)
	}
	if rep.ItemFailures > 0 {
		fmt.Fprintf(out, "  item failures %d\n", rep.ItemFailures)
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <project-id>",
		Short: "Summarize a project's billing cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			s, err := c.env.manager.Statistics(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(s.ValidationErrors) > 0 {
				return printValidation(cmd, s.ValidationErrors)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project %d\n", s.ProjectID)
			fmt.Fprintf(out, "  cycles:      %d (%d active, %d archived)\n", s.Total, s.Active, s.Archived)
			fmt.Fprintf(out, "  paid:        %d\n  partial:     %d\n  unpaid:      %d\n", s.Paid, s.Partial, s.Unpaid)
			fmt.Fprintf(out, "  due soon:    %d\n  overdue:     %d\n", s.DueSoon, s.Overdue)
			fmt.Fprintf(out, "  outstanding: %s\n", s.Outstanding.StringFixed(2))
			if s.LatestDueDate != nil {
				fmt.Fprintf(out, "  latest due:  %s\n", calendar.Format(*s.LatestDueDate))
			}
			fmt.Fprintf(out, "  generates until %s, archives before %s\n",
				calendar.Format(s.GenerationEndDate), calendar.Format(s.ArchiveCutoffDate))
			return nil
		},
	}
}
