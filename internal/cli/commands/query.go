package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Input        string
	ConnectionID int64
	Page         int
	PageSize     int
	Timeout      int
}

// request builds a query request for text.
func (o *QueryOptions) request(text string) core.QueryRequest {
	req := core.QueryRequest{
		SQL:         text,
		TimeoutSecs: o.Timeout,
		PageSize:    o.PageSize,
	}
	if o.ConnectionID > 0 {
		id := o.ConnectionID
		req.ConnectionID = &id
	}
	if o.Page > 0 {
		page := o.Page
		req.Page = &page
	}
	return req
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a query against a configured connection",
		Long: `Run an ad hoc query through the safety pipeline.

SQL statements are checked for injection patterns and clamped to a row
limit before they reach the database. MongoDB connections accept
shell-style commands such as db.users.find({...}).limit(10).

When invoked without arguments on a terminal, enters interactive REPL mode.`,
		Example: `  # Execute SQL on the active connection
  smartsql query "SELECT * FROM users"

  # Pick a connection and page through the result
  smartsql query -c 2 --page 2 --page-size 50 "SELECT id, name FROM users"

  # Read from a file, print JSON
  smartsql query -i report.sql -o json

  # Interactive mode
  smartsql query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read the query from a file")
	cmd.Flags().Int64VarP(&opts.ConnectionID, "connection", "c", 0, "Connection id (default: the active connection)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "Return only this page of the result (1-based)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "Rows per page (default from query.default_page_size)")
	cmd.Flags().IntVar(&opts.Timeout, "timeout", 0, "Query timeout in seconds (default from query.default_timeout_secs)")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	var text string

	switch {
	case len(args) > 0:
		text = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		text = string(content)
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(content)
	default:
		cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
		if err != nil {
			return err
		}
		defer cleanup()
		return runQueryREPL(cmd, cmdCtx, opts)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cmdCtx.Service.Execute(cmd.Context(), opts.request(strings.TrimSpace(text)))
	if err != nil {
		return err
	}
	return renderResult(cmd.OutOrStdout(), res, cmdCtx.Cfg.Output)
}
