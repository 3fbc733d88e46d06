package commands

import (
	"fmt"
	"net"

	"github.com/JonnyJiang123/smart-sql/internal/metrics"
	"github.com/JonnyJiang123/smart-sql/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the query API server",
		Long: `Start the JSON HTTP API.

Routes live under /api (query, connections, history). Prometheus metrics
are served on /metrics and a liveness check on /healthz. The server stops
gracefully on SIGINT or SIGTERM.`,
		Example: `  smartsql serve
  smartsql serve --addr 127.0.0.1:9000
  SMARTSQL_SERVER__ADDR=:9000 smartsql serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			collector := metrics.NewPrometheusCollector()
			cmdCtx, cleanup, err := NewCommandContext(cmd, collector)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := cmdCtx.Cfg
			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
			}

			srv := server.New(server.Config{
				Service:           cmdCtx.Service,
				Addr:              cfg.Server.Addr,
				ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
				ShutdownTimeout:   cfg.Server.ShutdownTimeout,
				Logger:            cmdCtx.Logger,
				Metrics:           collector,
			})

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving smartsql API on http://%s\n", ln.Addr())
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

			return srv.ServeListener(cmd.Context(), ln)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	return cmd
}
