package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"haul/internal/accounts"
	"haul/internal/database"
)

const passwordEnv = "HAUL_PASSWORD"

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage web interface accounts",
	}
	usersCmd.AddCommand(newUsersAddCommand(ctx))
	usersCmd.AddCommand(newUsersListCommand(ctx))
	return usersCmd
}

func newUsersAddCommand(ctx *commandContext) *cobra.Command {
	var (
		password   string
		email      string
		role       int
		permission int
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			if password == "" {
				return errors.New("password required: pass --password or set " + passwordEnv)
			}
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				id, err := accounts.NewClient(backend).Add(c, accounts.NewUser{
					Name:       args[0],
					Password:   password,
					Email:      email,
					Role:       role,
					Permission: permission,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added user %s (id %d)\n", args[0], id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Account password (or "+passwordEnv+")")
	cmd.Flags().StringVar(&email, "email", "", "Contact address")
	cmd.Flags().IntVar(&role, "role", 0, "Role id")
	cmd.Flags().IntVar(&permission, "permission", 0, "Permission bit mask")
	return cmd
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				users, err := accounts.NewClient(backend).List(c)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, "No users")
					return nil
				}
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					rows = append(rows, []string{
						u.Name,
						u.Email,
						strconv.Itoa(u.Role),
						strconv.Itoa(u.Permission),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Name", "Email", "Role", "Permission"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}
