package main

import (
	"fmt"
	"strings"

	"billing_cycle_bot/internal/app"
	"billing_cycle_bot/internal/domain/settings"
	"billing_cycle_bot/internal/infra/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Lifecycle settings management commands",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the lifecycle settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.env.admin.CurrentConfig(cmd.Context())
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	set := &cobra.Command{
		Use:   "set key=value...",
		Short: "Change individual settings",
		Example: `  cyclectl config set generation_horizon_months=6 urgent_days_overdue=10
  cyclectl config set supported_frequencies=[monthly,yearly]`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := make([]string, 0, len(args))
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				lines = append(lines, fmt.Sprintf("%s: %s", strings.TrimSpace(key), value))
			}
			u, err := config.DecodePolicy(strings.NewReader(strings.Join(lines, "\n")))
			if err != nil {
				return err
			}
			return c.applyUpdate(cmd, u)
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Apply a YAML policy file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := config.LoadPolicyFile(args[0])
			if err != nil {
				return err
			}
			return c.applyUpdate(cmd, u)
		},
	}

	cmd.AddCommand(show, set, importCmd)
	return cmd
}

func (c *cli) applyUpdate(cmd *cobra.Command, u settings.Update) error {
	res, err := c.env.admin.UpdateConfig(cmd.Context(), u)
	if err != nil {
		return err
	}
	return reportConfig(cmd, res)
}

func reportConfig(cmd *cobra.Command, res *app.ConfigResult) error {
	if len(res.ValidationErrors) > 0 {
		return printValidation(cmd, res.ValidationErrors)
	}
	if res.Created {
		fmt.Fprintln(cmd.OutOrStdout(), "Lifecycle settings created.")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Lifecycle settings updated.")
	}
	return nil
}
