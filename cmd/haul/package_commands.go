package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"haul/internal/database"
	"haul/internal/filestore"
)

func newPackagesCommand(ctx *commandContext) *cobra.Command {
	packagesCmd := &cobra.Command{
		Use:   "packages",
		Short: "Manage stored packages and links",
	}
	packagesCmd.AddCommand(newPackagesListCommand(ctx))
	packagesCmd.AddCommand(newPackagesAddCommand(ctx))
	packagesCmd.AddCommand(newPackagesRestartFailedCommand(ctx))
	return packagesCmd
}

func queueFromFlag(collector bool) filestore.Queue {
	if collector {
		return filestore.QueueCollector
	}
	return filestore.QueueActive
}

func newPackagesListCommand(ctx *commandContext) *cobra.Command {
	var collector bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages with their link counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				client := filestore.NewClient(backend)
				packages, err := client.Packages(c, queueFromFlag(collector))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(packages) == 0 {
					fmt.Fprintln(out, "No packages")
					return nil
				}

				rows := make([][]string, 0, len(packages))
				for _, pkg := range packages {
					links, err := client.Links(c, pkg.ID)
					if err != nil {
						return err
					}
					finished := 0
					for _, link := range links {
						if link.Status == filestore.StatusFinished {
							finished++
						}
					}
					rows = append(rows, []string{
						strconv.FormatInt(pkg.ID, 10),
						pkg.Name,
						pkg.Folder,
						fmt.Sprintf("%d/%d", finished, len(links)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Folder", "Finished"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&collector, "collector", false, "List the collector instead of the active queue")
	return cmd
}

func newPackagesAddCommand(ctx *commandContext) *cobra.Command {
	var (
		folder    string
		site      string
		password  string
		collector bool
	)

	cmd := &cobra.Command{
		Use:   "add <name> <url>...",
		Short: "Create a package with links",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				client := filestore.NewClient(backend)
				id, err := client.AddPackage(c, filestore.NewPackage{
					Name:     args[0],
					Folder:   folder,
					Site:     site,
					Password: password,
					Queue:    queueFromFlag(collector),
				})
				if err != nil {
					return err
				}
				ids, err := client.AddLinks(c, id, args[1:]...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added package %d with %d links\n", id, len(ids))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Download folder (defaults to the package name)")
	cmd.Flags().StringVar(&site, "site", "", "Source site")
	cmd.Flags().StringVar(&password, "password", "", "Archive password")
	cmd.Flags().BoolVar(&collector, "collector", false, "Add to the collector instead of the active queue")
	return cmd
}

func newPackagesRestartFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart-failed",
		Short: "Requeue failed, aborted and temporarily offline links",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				n, err := filestore.NewClient(backend).RestartFailed(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d links\n", n)
				return nil
			})
		},
	}
}
