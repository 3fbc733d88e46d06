package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "smartsql> "
	replContPrompt = "     ...> "
)

func runQueryREPL(cmd *cobra.Command, cmdCtx *CommandContext, opts *QueryOptions) error {
	ctx := cmd.Context()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "query_history"),
		AutoComplete:    newTableCompleter(ctx, cmdCtx, opts.ConnectionID),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "smartsql REPL (state: %s)\n", cmdCtx.Cfg.StatePath)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	r := &repl{cmd: cmd, cmdCtx: cmdCtx, opts: opts}

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := r.dotCommand(ctx, line); quit {
				break
			}
			continue
		}

		// Accumulate multi-line input until a semicolon.
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		text := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()
		r.run(ctx, text)
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

type repl struct {
	cmd    *cobra.Command
	cmdCtx *CommandContext
	opts   *QueryOptions
}

func (r *repl) out() io.Writer { return r.cmd.OutOrStdout() }

func (r *repl) fail(err error) {
	_, _ = fmt.Fprintf(r.cmd.ErrOrStderr(), "Error: %v\n", err)
}

func (r *repl) run(ctx context.Context, text string) {
	res, err := r.cmdCtx.Service.Execute(ctx, r.opts.request(text))
	if err != nil {
		r.fail(err)
		return
	}
	if err := renderResult(r.out(), res, r.cmdCtx.Cfg.Output); err != nil {
		r.fail(err)
	}
}

// connID returns the connection the session is bound to, resolving the
// active connection when none was chosen.
func (r *repl) connID(ctx context.Context) (int64, error) {
	if r.opts.ConnectionID > 0 {
		return r.opts.ConnectionID, nil
	}
	active, err := r.cmdCtx.Store.ActiveConnections(ctx)
	if err != nil {
		return 0, err
	}
	if len(active) == 0 {
		return 0, errors.New("no active database connection")
	}
	return active[0].ID, nil
}

// dotCommand handles a REPL meta command and reports whether to exit.
func (r *repl) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	format := r.cmdCtx.Cfg.Output

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.out())

	case ".connections":
		conns, err := r.cmdCtx.Service.Connections(ctx)
		if err != nil {
			r.fail(err)
			return false
		}
		if err := renderConnections(r.out(), conns, format); err != nil {
			r.fail(err)
		}

	case ".use":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(r.cmd.ErrOrStderr(), "Usage: .use <connection-id>")
			return false
		}
		var id int64
		if _, err := fmt.Sscan(parts[1], &id); err != nil || id <= 0 {
			_, _ = fmt.Fprintf(r.cmd.ErrOrStderr(), "invalid connection id %q\n", parts[1])
			return false
		}
		r.opts.ConnectionID = id
		_, _ = fmt.Fprintf(r.out(), "using connection %d\n", id)

	case ".tables":
		id, err := r.connID(ctx)
		if err != nil {
			r.fail(err)
			return false
		}
		tables, err := r.cmdCtx.Service.ListTables(ctx, id)
		if err != nil {
			r.fail(err)
			return false
		}
		if err := renderTables(r.out(), tables, format); err != nil {
			r.fail(err)
		}

	case ".schema", ".indexes":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(r.cmd.ErrOrStderr(), "Usage: %s <table>\n", command)
			return false
		}
		id, err := r.connID(ctx)
		if err != nil {
			r.fail(err)
			return false
		}
		if command == ".schema" {
			schema, err := r.cmdCtx.Service.TableSchema(ctx, id, parts[1])
			if err == nil {
				err = renderSchema(r.out(), schema, format)
			}
			if err != nil {
				r.fail(err)
			}
			return false
		}
		indexes, err := r.cmdCtx.Service.Indexes(ctx, id, parts[1])
		if err == nil {
			err = renderIndexes(r.out(), indexes, format)
		}
		if err != nil {
			r.fail(err)
		}

	case ".explain":
		text := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(line, parts[0])), ";")
		if text == "" {
			_, _ = fmt.Fprintln(r.cmd.ErrOrStderr(), "Usage: .explain <query>")
			return false
		}
		plan, err := r.cmdCtx.Service.Explain(ctx, explainRequest(text, r.opts.ConnectionID))
		if err == nil {
			err = renderPlan(r.out(), plan, format)
		}
		if err != nil {
			r.fail(err)
		}

	case ".clear":
		_, _ = fmt.Fprint(r.out(), "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(r.cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `Commands:
  .help                 Show this help
  .connections          List configured connections
  .use <id>             Switch to another connection
  .tables               List tables (or collections)
  .schema <table>       Show columns and foreign keys
  .indexes <table>      Show indexes
  .explain <query>      Show the execution plan
  .clear                Clear the screen
  .quit                 Exit the REPL

Queries run when a line ends with a semicolon.
`
	_, _ = fmt.Fprint(w, help)
}

// tableCompleter completes dot commands and table names.
type tableCompleter struct {
	tables []string
}

func newTableCompleter(ctx context.Context, cmdCtx *CommandContext, connID int64) *tableCompleter {
	c := &tableCompleter{}
	r := &repl{cmdCtx: cmdCtx, opts: &QueryOptions{ConnectionID: connID}}
	id, err := r.connID(ctx)
	if err != nil {
		return c
	}
	tables, err := cmdCtx.Service.ListTables(ctx, id)
	if err != nil {
		cmdCtx.Logger.Debug().Err(err).Msg("table completion disabled")
		return c
	}
	for _, t := range tables {
		c.tables = append(c.tables, t.Name)
	}
	return c
}

var dotCommands = []string{".help", ".connections", ".use", ".tables", ".schema", ".indexes", ".explain", ".clear", ".quit", ".exit"}

// Do implements readline.AutoCompleter.
func (c *tableCompleter) Do(line []rune, pos int) ([][]rune, int) {
	word := lastWord(string(line[:pos]))

	candidates := c.tables
	if strings.HasPrefix(word, ".") && !strings.Contains(strings.TrimSpace(string(line[:pos])), " ") {
		candidates = dotCommands
	}

	var out [][]rune
	lower := strings.ToLower(word)
	for _, cand := range candidates {
		if strings.HasPrefix(strings.ToLower(cand), lower) {
			out = append(out, []rune(cand[len(word):]))
		}
	}
	return out, len([]rune(word))
}

func lastWord(s string) string {
	if i := strings.LastIndexAny(s, " \t(,"); i >= 0 {
		return s[i+1:]
	}
	return s
}
