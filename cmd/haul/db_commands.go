package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"haul/internal/database"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and maintain the data file",
	}
	dbCmd.AddCommand(newDBStatusCommand(ctx))
	dbCmd.AddCommand(newDBVersionCommand(ctx))
	dbCmd.AddCommand(newDBVacuumCommand(ctx))
	return dbCmd
}

func newDBStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show data file health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				health, err := backend.CheckHealth(c)
				if err != nil {
					return fmt.Errorf("check health: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderHealth(health, shouldColorize(out)))
				return nil
			})
		},
	}
}

func renderHealth(h database.Health, colorize bool) string {
	var b strings.Builder
	line := func(label string, kind statusKind, msg string) {
		b.WriteString(renderStatusLine(label, kind, msg, colorize))
		b.WriteByte('\n')
	}

	b.WriteString(renderSectionHeader("Database", colorize))
	b.WriteByte('\n')

	if h.DataExists {
		line("Data file", statusOK, fmt.Sprintf("%s (%s)", h.DataPath, humanize.Bytes(uint64(h.DataBytes))))
	} else {
		line("Data file", statusWarn, h.DataPath+" missing")
	}

	if h.MarkerVersion == h.CurrentVersion {
		line("Schema version", statusOK, strconv.Itoa(h.MarkerVersion))
	} else {
		line("Schema version", statusWarn, fmt.Sprintf("marker %d, expected %d", h.MarkerVersion, h.CurrentVersion))
	}

	if len(h.TablesMissing) == 0 {
		line("Tables", statusOK, strings.Join(h.TablesPresent, ", "))
	} else {
		line("Tables", statusError, "missing "+strings.Join(h.TablesMissing, ", "))
	}

	if h.IntegrityOK {
		line("Integrity", statusOK, "")
	} else {
		line("Integrity", statusError, h.IntegrityResult)
	}

	extensions := "none"
	if len(h.Extensions) > 0 {
		extensions = strings.Join(h.Extensions, ", ")
	}
	line("Extensions", statusInfo, extensions)
	line("Jobs", statusInfo, fmt.Sprintf("%d completed, %d failed", h.Stats.Completed, h.Stats.Failed))

	rows := make([][]string, 0, len(h.TablesPresent))
	for _, table := range h.TablesPresent {
		rows = append(rows, []string{table, humanize.Comma(h.RowCounts[table])})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"Table", "Rows"}, rows, []columnAlignment{alignLeft, alignRight}))
		b.WriteByte('\n')
	}
	return b.String()
}

func newDBVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show schema version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				info, err := backend.SchemaVersion(c)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Schema marker:      %d\n", info.Marker)
				fmt.Fprintf(out, "Current schema:     %d\n", info.Current)
				fmt.Fprintf(out, "Oldest migratable:  %d\n", info.Minimum)
				backend.MigratedFrom().WhenSome(func(from int) {
					fmt.Fprintf(out, "Migrated from:      %d\n", from)
				})
				return nil
			})
		},
	}
}

func newDBVacuumCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the data file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(c context.Context, backend *database.Backend) error {
				ran, err := backend.Vacuum(c)
				if err != nil {
					return err
				}
				if ran {
					fmt.Fprintln(cmd.OutOrStdout(), "Vacuum complete")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Vacuum skipped: not enough free disk space")
				}
				return nil
			})
		},
	}
}
