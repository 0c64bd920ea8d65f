package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"haul/internal/database"
	"haul/internal/kvstore"
)

func newStorageCommand(ctx *commandContext) *cobra.Command {
	storageCmd := &cobra.Command{
		Use:   "storage",
		Short: "Read and write plugin key/value settings",
	}

	storageCmd.AddCommand(&cobra.Command{
		Use:   "get <identifier> [key]",
		Short: "Print one value, or every value stored for identifier",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				client := kvstore.NewClient(backend)
				out := cmd.OutOrStdout()
				if len(args) == 2 {
					value, err := client.Get(c, args[0], args[1])
					if err != nil {
						return err
					}
					fmt.Fprintln(out, value)
					return nil
				}
				values, err := client.All(c, args[0])
				if err != nil {
					return err
				}
				if len(values) == 0 {
					fmt.Fprintf(out, "No values stored for %s\n", args[0])
					return nil
				}
				rows := make([][]string, 0, len(values))
				for _, key := range slices.Sorted(maps.Keys(values)) {
					rows = append(rows, []string{key, values[key]})
				}
				fmt.Fprintln(out, renderTable([]string{"Key", "Value"}, rows, nil))
				return nil
			})
		},
	})

	storageCmd.AddCommand(&cobra.Command{
		Use:   "set <identifier> <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				if err := kvstore.NewClient(backend).Set(c, args[0], args[1], args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s/%s\n", args[0], args[1])
				return nil
			})
		},
	})

	storageCmd.AddCommand(&cobra.Command{
		Use:   "delete <identifier> <key>",
		Short: "Remove a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				removed, err := kvstore.NewClient(backend).Delete(c, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s/%s: %s\n", args[0], args[1], yesNo(removed))
				return nil
			})
		},
	})

	return storageCmd
}
