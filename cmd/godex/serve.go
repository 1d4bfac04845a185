package main

import (
	"os"
	"os/signal"
	"syscall"

	"godex/adapters/httpapi"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(e *env) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the test engine over HTTP",
		Long: `Starts the HTTP API. Model-based tests need externally fitted
estimates and are not available over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				e.cfg.Server.Addr = addr
			}
			srv, err := httpapi.NewServer(e.cfg, e.logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e.logger.Info("starting server", zap.String("addr", e.cfg.Server.Addr))
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
