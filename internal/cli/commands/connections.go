package commands

import (
	"fmt"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// NewConnectionsCommand creates the connections command group.
func NewConnectionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage database connections",
		Long: `List and test the connections stored in the state database.

Connections declared under "connections:" in smartsql.yaml are seeded into
the state database every time a command starts.`,
	}

	cmd.AddCommand(newConnectionsListCommand())
	cmd.AddCommand(newConnectionsTestCommand())
	cmd.AddCommand(newConnectionsActivateCommand())
	cmd.AddCommand(newConnectionsTablesCommand())
	return cmd
}

func newConnectionsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connections with credentials redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			conns, err := cmdCtx.Service.Connections(cmd.Context())
			if err != nil {
				return err
			}
			return renderConnections(cmd.OutOrStdout(), conns, cmdCtx.Cfg.Output)
		},
	}
}

func newConnectionsTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test <id>",
		Short: "Check that a connection can be established",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			conn, err := cmdCtx.Store.GetConnection(cmd.Context(), id)
			if err != nil {
				return err
			}
			res := cmdCtx.Service.TestConnection(cmd.Context(), conn)

			if cmdCtx.Cfg.Output == FormatJSON {
				if err := renderJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				renderTestResult(cmd, conn, res)
			}
			if !res.Success {
				return qerr.Newf(qerr.CodeConnectionFailed, "connection %d failed: %s", id, res.Message)
			}
			return nil
		},
	}
}

func newConnectionsActivateCommand() *cobra.Command {
	var deactivate bool

	cmd := &cobra.Command{
		Use:   "activate <id>",
		Short: "Mark a connection as active",
		Long: `Mark a connection as active. Queries without an explicit connection id
run on the first active connection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Store.SetActive(cmd.Context(), id, !deactivate); err != nil {
				return err
			}
			cmdCtx.Logger.Info().Int64("connection_id", id).Bool("active", !deactivate).Msg("connection updated")
			return nil
		},
	}

	cmd.Flags().BoolVar(&deactivate, "off", false, "Deactivate instead")
	return cmd
}

func newConnectionsTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <id> [table]",
		Short: "List tables, or show the schema and indexes of one table",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConnectionID(args[0])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, w, format := cmd.Context(), cmd.OutOrStdout(), cmdCtx.Cfg.Output
			if len(args) == 1 {
				tables, err := cmdCtx.Service.ListTables(ctx, id)
				if err != nil {
					return err
				}
				return renderTables(w, tables, format)
			}

			schema, err := cmdCtx.Service.TableSchema(ctx, id, args[1])
			if err != nil {
				return err
			}
			if err := renderSchema(w, schema, format); err != nil {
				return err
			}
			indexes, err := cmdCtx.Service.Indexes(ctx, id, args[1])
			if err != nil {
				return err
			}
			if len(indexes) == 0 || format == FormatJSON {
				return nil
			}
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w, "Indexes:")
			return renderIndexes(w, indexes, format)
		},
	}
}

func parseConnectionID(s string) (int64, error) {
	id, err := cast.ToInt64E(s)
	if err != nil || id <= 0 {
		return 0, qerr.Newf(qerr.CodeInvalidRequest, "invalid connection id %q", s)
	}
	return id, nil
}

func renderTestResult(cmd *cobra.Command, conn *core.Connection, res *core.ConnectionTestResult) {
	w := cmd.OutOrStdout()
	status := "OK"
	if !res.Success {
		status = "FAILED"
	}
	_, _ = fmt.Fprintf(w, "%s  %s (%s)\n", status, conn.Name, conn.Kind)
	_, _ = fmt.Fprintf(w, "  message:  %s\n", res.Message)
	if res.ServerVersion != "" {
		_, _ = fmt.Fprintf(w, "  version:  %s\n", res.ServerVersion)
	}
	_, _ = fmt.Fprintf(w, "  time:     %dms\n", res.ResponseTimeMs)
}
