package main

import (
	"errors"
	"fmt"

	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *cli) cycleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Administrative corrections of billing cycles",
	}
	var reason string

	archive := &cobra.Command{
		Use:   "archive <cycle-id>",
		Short: "Archive a cycle regardless of its age or payment state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "cycle")
			if err != nil {
				return err
			}
			changed, err := c.env.admin.ForceArchive(cmd.Context(), id, reason)
			if err != nil {
				return err
			}
			report(cmd, changed, "Cycle %d archived.", "Cycle %d is already archived.", id)
			return nil
		},
	}

	unarchive := &cobra.Command{
		Use:   "unarchive <cycle-id>",
		Short: "Restore an archived cycle within the retention period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "cycle")
			if err != nil {
				return err
			}
			changed, err := c.env.admin.Unarchive(cmd.Context(), id, reason)
			if err != nil {
				return err
			}
			report(cmd, changed, "Cycle %d unarchived.", "Cycle %d is not archived or past retention.", id)
			return nil
		},
	}

	adjustAmount := &cobra.Command{
		Use:   "adjust-amount <cycle-id> <amount>",
		Short: "Correct the amount owed for a cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "cycle")
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			cy, err := c.env.admin.AdjustAmount(cmd.Context(), id, amount, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cycle %d now owes %s.\n", cy.ID, cy.TotalAmount.StringFixed(2))
			return nil
		},
	}

	adjustDate := &cobra.Command{
		Use:   "adjust-date <cycle-id> <YYYY-MM-DD>",
		Short: "Move a cycle to another due date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "cycle")
			if err != nil {
				return err
			}
			date, err := calendar.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[1])
			}
			cy, err := c.env.admin.AdjustDueDate(cmd.Context(), id, date, reason)
			if errors.Is(err, cycle.ErrDuplicateDueDate) {
				return fmt.Errorf("project already has a cycle due on %s", args[1])
			} else if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cycle %d is now due on %s.\n", cy.ID, calendar.Format(cy.DueDate))
			return nil
		},
	}

	for _, sub := range []*cobra.Command{archive, unarchive, adjustAmount, adjustDate} {
		sub.Flags().StringVar(&reason, "reason", "", "audit reason (required)")
		_ = sub.MarkFlagRequired("reason")
	}

	create := &cobra.Command{
		Use:   "create <project-id> <YYYY-MM-DD>",
		Short: "Create a single cycle inside the generation window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			date, err := calendar.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[1])
			}
			res, err := c.env.admin.CreateCycle(cmd.Context(), projectID, date)
			if err != nil {
				return err
			}
			if len(res.ValidationErrors) > 0 {
				return printValidation(cmd, res.ValidationErrors)
			}
			if !res.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "No cycle created for %s: outside the window or already present.\n", args[1])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cycle %d created, due %s.\n", res.Cycle.ID, calendar.Format(res.Cycle.DueDate))
			return nil
		},
	}

	history := &cobra.Command{
		Use:   "history <cycle-id>",
		Short: "List reminders sent for a cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "cycle")
			if err != nil {
				return err
			}
			logs, err := c.env.logs.ListForCycle(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reminders sent.")
				return nil
			}
			for _, l := range logs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s member %d\n", calendar.Format(l.SentOn), l.Tier, l.MemberID)
			}
			return nil
		},
	}

	cmd.AddCommand(archive, unarchive, adjustAmount, adjustDate, create, history)
	return cmd
}

func report(cmd *cobra.Command, changed bool, done, unchanged string, id int64) {
	if changed {
		fmt.Fprintf(cmd.OutOrStdout(), done+"\n", id)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), unchanged+"\n", id)
}
