package commands

import (
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/spf13/cobra"
)

func explainRequest(text string, connID int64) core.ExplainRequest {
	req := core.ExplainRequest{SQL: text}
	if connID > 0 {
		req.ConnectionID = &connID
	}
	return req
}

// NewExplainCommand creates the explain command.
func NewExplainCommand() *cobra.Command {
	var connID int64

	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Show the execution plan of a query",
		Long: `Ask the backend for the execution plan of a query.

The query passes the same injection guard as query execution. The plan is
flattened into a chain of steps with the operation, table and index used.`,
		Example: `  smartsql explain "SELECT * FROM users WHERE email = 'a@b.c'"
  smartsql explain -c 2 "SELECT count(*) FROM orders" -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			plan, err := cmdCtx.Service.Explain(cmd.Context(), explainRequest(strings.Join(args, " "), connID))
			if err != nil {
				return err
			}
			return renderPlan(cmd.OutOrStdout(), plan, cmdCtx.Cfg.Output)
		},
	}

	cmd.Flags().Int64VarP(&connID, "connection", "c", 0, "Connection id (default: the active connection)")
	return cmd
}
