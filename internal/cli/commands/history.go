package commands

import (
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		n             int
		clearAll      bool
		keepFavorites bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed queries",
		Example: `  smartsql history
  smartsql history -n 20 -o json
  smartsql history --clear --keep-favorites`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if clearAll {
				removed, err := cmdCtx.Store.ClearHistory(cmd.Context(), keepFavorites)
				if err != nil {
					return err
				}
				cmdCtx.Logger.Info().Int64("removed", removed).Msg("query history cleared")
				return nil
			}

			entries, err := cmdCtx.Service.History(cmd.Context(), min(n, core.MaxLimit))
			if err != nil {
				return err
			}
			return renderHistory(cmd.OutOrStdout(), entries, cmdCtx.Cfg.Output)
		},
	}

	cmd.Flags().IntVarP(&n, "limit", "n", 50, "Number of entries to show")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete history entries")
	cmd.Flags().BoolVar(&keepFavorites, "keep-favorites", false, "Keep favorite entries when clearing")
	return cmd
}
