package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonnyJiang123/smart-sql/internal/cli/config"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/JonnyJiang123/smart-sql/pkg/docfilter"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/JonnyJiang123/smart-sql/pkg/guard"
	"github.com/JonnyJiang123/smart-sql/pkg/limit"
	"github.com/JonnyJiang123/smart-sql/pkg/shell"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

// CheckReport is the outcome of a dry-run safety check.
type CheckReport struct {
	Kind      core.BackendKind `json:"db_type"`
	Allowed   bool             `json:"allowed"`
	Rule      string           `json:"rule,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Rewritten string           `json:"rewritten,omitempty"`
	Fallback  bool             `json:"fallback,omitempty"`
	// Document-store commands only.
	Collection string `json:"collection,omitempty"`
	Operation  string `json:"operation,omitempty"`
	Stripped   bool   `json:"stripped_operators,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "check <query>",
		Short: "Show what the safety pipeline does to a query",
		Long: `Run the injection guard and row-limit rewrite without touching a database.

For SQL kinds the report shows the matched guard rule, or the statement as
it would be sent. For mongodb the shell command is parsed and denied
operators are stripped.`,
		Example: `  smartsql check "SELECT * FROM users"
  smartsql check "SELECT * FROM users WHERE 1=1"
  smartsql check --kind mongodb 'db.users.find({"$where": "1"}).limit(5000)'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := core.ParseBackendKind(kind)
			if err != nil {
				return err
			}
			report, err := Check(k, strings.Join(args, " "))
			if err != nil {
				return err
			}
			cfg := config.FromContext(cmd.Context())
			if err := renderCheck(cmd.OutOrStdout(), report, cfg.Output); err != nil {
				return err
			}
			if !report.Allowed {
				return qerr.Newf(qerr.CodeInjectionDetected, "query rejected by rule %s", report.Rule)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(core.BackendSQLite), "Backend kind: mysql, postgresql, sqlite, mongodb")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		kinds := make([]string, len(core.BackendKinds))
		for i, k := range core.BackendKinds {
			kinds[i] = string(k)
		}
		return kinds, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// Check runs the safety pipeline for kind over text.
func Check(kind core.BackendKind, text string) (*CheckReport, error) {
	report := &CheckReport{Kind: kind, Allowed: true}

	if kind.IsSQL() {
		if v := guard.Default().Inspect(text); v != nil {
			report.Allowed = false
			report.Rule = v.Rule
			report.Reason = v.Reason
			return report, nil
		}
		res := limit.Rewrite(text)
		report.Rewritten = res.SQL
		report.Fallback = res.Fallback
		return report, nil
	}

	cmd, err := shell.Extract(text)
	if err != nil {
		return nil, err
	}
	report.Collection = cmd.Collection
	report.Operation = string(cmd.Operation)

	var doc any
	switch cmd.Operation {
	case shell.OpAggregate:
		for _, stage := range cmd.Pipeline {
			report.Stripped = report.Stripped || docfilter.ContainsDangerous(stage)
		}
		doc = bson.M{"pipeline": docfilter.FilterPipeline(cmd.Pipeline)}
	default:
		report.Stripped = docfilter.ContainsDangerous(cmd.Filter) || docfilter.ContainsDangerous(cmd.Projection)
		find := bson.D{{Key: "filter", Value: nonNil(docfilter.Filter(cmd.Filter))}}
		if cmd.Projection != nil {
			find = append(find, bson.E{Key: "projection", Value: docfilter.Filter(cmd.Projection)})
		}
		doc = append(find, bson.E{Key: "limit", Value: cmd.Limit})
	}

	out, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, qerr.Wrap(err, qerr.CodeInternal, "failed to encode command")
	}
	report.Rewritten = string(out)
	return report, nil
}

func nonNil(d bson.D) bson.D {
	if d == nil {
		return bson.D{}
	}
	return d
}

func renderCheck(w io.Writer, r *CheckReport, format string) error {
	if format == FormatJSON {
		return renderJSON(w, r)
	}

	if !r.Allowed {
		_, _ = fmt.Fprintf(w, "REJECTED (%s): %s\n", r.Rule, r.Reason)
		return nil
	}
	_, _ = fmt.Fprintln(w, "OK")
	if r.Collection != "" {
		_, _ = fmt.Fprintf(w, "collection: %s\noperation:  %s\n", r.Collection, r.Operation)
	}
	_, _ = fmt.Fprintf(w, "rewritten:  %s\n", r.Rewritten)
	if r.Fallback {
		_, _ = fmt.Fprintln(w, "note: statement did not parse; the textual limit fallback was used")
	}
	if r.Stripped {
		_, _ = fmt.Fprintln(w, "note: denied operators were removed")
	}
	return nil
}
