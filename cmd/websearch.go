package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"docpipe/internal/websearch"
)

var (
	flagWebTopK    int
	flagWebRefresh bool
)

var websearchCmd = &cobra.Command{
	Use:   "websearch <query>",
	Short: "Search the web with TTL-cached results",
	Long: `Search the web through the configured provider.

Results are cached in the vector store and reused until they expire.
Without a configured provider only cached results are served.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWebSearch(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	websearchCmd.Flags().IntVar(&flagWebTopK, "top-k", 5, "maximum number of results")
	websearchCmd.Flags().BoolVar(&flagWebRefresh, "force-refresh", false, "bypass the cache and fetch fresh results")
	rootCmd.AddCommand(websearchCmd)
}

func runWebSearch(ctx context.Context, query string) error {
	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if a.webSvc == nil {
		return errors.New("web search unavailable: embedding credentials and a vector store are required")
	}

	opts := []websearch.SearchOption{websearch.WithTopK(flagWebTopK)}
	if flagWebRefresh {
		opts = append(opts, websearch.WithForceRefresh())
	}
	resp, err := a.webSvc.Search(ctx, query, opts...)
	if err != nil {
		return err
	}
	return printJSON(resp)
}
