package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [admin]",
		Short: "Install the admin role (defaults to the configured Admin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withEngine(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			raw := a.cfg.Admin
			if len(args) == 1 {
				raw = args[0]
			}
			admin, err := parseAddress("admin", raw)
			if err != nil {
				return err
			}
			if err := a.engine.Initialise(ctx, admin); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialised with admin %s\n", admin.Hex())
			return nil
		}),
	}
}

func (a *app) grantCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-operator <address>",
		Short: "Grant the operator role",
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			who, err := parseAddress("operator", args[0])
			if err != nil {
				return err
			}
			caller, err := a.caller()
			if err != nil {
				return err
			}
			return a.engine.GrantOperator(ctx, caller, who)
		}),
	}
}

func (a *app) revokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-operator <address>",
		Short: "Revoke the operator role",
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			who, err := parseAddress("operator", args[0])
			if err != nil {
				return err
			}
			caller, err := a.caller()
			if err != nil {
				return err
			}
			return a.engine.RevokeOperator(ctx, caller, who)
		}),
	}
}

func (a *app) integrationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration",
		Short: "Manage campaign integration programs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <program>",
			Short: "Register a campaign integration",
			Args:  cobra.ExactArgs(1),
			RunE: a.withEngine(func(ctx context.Context, _ *cobra.Command, args []string) error {
				program, err := parseAddress("program", args[0])
				if err != nil {
					return err
				}
				caller, err := a.caller()
				if err != nil {
					return err
				}
				return a.engine.RegisterIntegration(ctx, caller, program)
			}),
		},
		&cobra.Command{
			Use:   "remove <program>",
			Short: "Remove a campaign integration",
			Args:  cobra.ExactArgs(1),
			RunE: a.withEngine(func(ctx context.Context, _ *cobra.Command, args []string) error {
				program, err := parseAddress("program", args[0])
				if err != nil {
					return err
				}
				caller, err := a.caller()
				if err != nil {
					return err
				}
				return a.engine.RemoveIntegration(ctx, caller, program)
			}),
		},
	)
	return cmd
}

func (a *app) rolesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Show the admin, operators and integrations",
		Args:  cobra.NoArgs,
		RunE: a.withEngine(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			roles, err := a.engine.Roles(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, roles)
		}),
	}
}
