package main

import (
	"fmt"
	"strings"

	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/project"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *cli) projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Register shared subscriptions and their members",
	}

	var (
		name, cost, currency, frequency, renewal string
		ownerID                                  int64
		daysBefore, maxLevel                     int
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(cost)
			if err != nil || !amount.IsPositive() {
				return fmt.Errorf("invalid cost %q", cost)
			}
			f, err := project.ParseFrequency(frequency)
			if err != nil {
				return err
			}
			anchor, err := calendar.Parse(renewal)
			if err != nil {
				return fmt.Errorf("invalid renewal date %q, expected YYYY-MM-DD", renewal)
			}
			p := &project.Project{
				OwnerID:     ownerID,
				Name:        name,
				Cost:        amount.Round(2),
				Currency:    strings.ToUpper(currency),
				Frequency:   f,
				RenewalDate: anchor,
				IsActive:    true,
			}
			if daysBefore >= 0 || maxLevel > 0 {
				p.ReminderOverride = &project.ReminderOverride{DaysBefore: daysBefore, MaxLevel: maxLevel}
			}
			if err := c.env.projects.Create(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %d created.\n", p.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	create.Flags().Int64Var(&ownerID, "owner", 0, "owner user ID")
	create.Flags().StringVar(&cost, "cost", "", "cost per period")
	create.Flags().StringVar(&currency, "currency", "EUR", "ISO currency code")
	create.Flags().StringVar(&frequency, "frequency", string(project.FrequencyMonthly), "daily|weekly|monthly|quarterly|yearly")
	create.Flags().StringVar(&renewal, "renewal", "", "renewal anchor date (YYYY-MM-DD)")
	create.Flags().IntVar(&daysBefore, "reminder-days-before", -1, "gentle reminders wait until the due date is this close")
	create.Flags().IntVar(&maxLevel, "reminder-max-level", 0, "highest reminder tier to dispatch (1-4)")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("cost")
	_ = create.MarkFlagRequired("renewal")

	var (
		userID, chatID int64
		memberName     string
	)
	addMember := &cobra.Command{
		Use:   "add-member <project-id>",
		Short: "Add a member who shares the cost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			m := &project.Member{ProjectID: projectID, UserID: userID, Name: memberName, ChatID: chatID}
			if err := c.env.projects.AddMember(cmd.Context(), m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Member %d added to project %d.\n", m.ID, projectID)
			return nil
		},
	}
	addMember.Flags().Int64Var(&userID, "user", 0, "member user ID")
	addMember.Flags().StringVar(&memberName, "name", "", "member name")
	addMember.Flags().Int64Var(&chatID, "chat", 0, "chat ID reminders are sent to")
	_ = addMember.MarkFlagRequired("user")
	_ = addMember.MarkFlagRequired("name")

	cmd.AddCommand(create, addMember)
	return cmd
}

func (c *cli) paymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Record member payments",
	}

	var (
		memberID         int64
		status, evidence string
	)
	add := &cobra.Command{
		Use:   "add <cycle-id> <amount>",
		Short: "Record a payment against a cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycleID, err := parseID(args[0], "cycle")
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[1])
			if err != nil || !amount.IsPositive() {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			st := cycle.PaymentStatus(status)
			switch st {
			case cycle.PaymentPending, cycle.PaymentConfirmed, cycle.PaymentDisputed, cycle.PaymentRejected:
			default:
				return fmt.Errorf("invalid payment status %q", status)
			}
			p := &cycle.Payment{CycleID: cycleID, MemberID: memberID, Amount: amount.Round(2), Status: st, EvidenceRef: evidence}
			if err := c.env.cycles.AddPayment(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Payment %d recorded.\n", p.ID)
			return nil
		},
	}
	add.Flags().Int64Var(&memberID, "member", 0, "paying member ID")
	add.Flags().StringVar(&status, "status", string(cycle.PaymentConfirmed), "pending|confirmed|disputed|rejected")
	add.Flags().StringVar(&evidence, "evidence", "", "reference to a receipt or transfer")
	_ = add.MarkFlagRequired("member")

	cmd.AddCommand(add)
	return cmd
}
