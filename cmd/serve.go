package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docpipe/internal/api"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the HTTP API.

Services that cannot be initialized (missing credentials, unreachable
vector store) are reported as unavailable and their endpoints answer
503 instead of failing startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "listen address (overrides configuration)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	svcs := api.Services{
		Connectors: a.store,
		Research:   a.manager,
	}
	// Interface fields stay nil unless the concrete service exists, so the
	// handlers' availability checks see a true nil.
	if a.searcher != nil {
		svcs.Search = a.searcher
	}
	if a.chatSvc != nil {
		svcs.Chat = a.chatSvc
	}
	if a.webSvc != nil {
		svcs.WebSearch = a.webSvc
	}

	addr := a.cfg.ServeAddr
	if flagServeAddr != "" {
		addr = flagServeAddr
	}
	return api.NewServer(svcs, logger).Run(ctx, addr)
}
