package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"docpipe/internal/search"
	"docpipe/internal/vecstore"
)

var (
	flagSearchTopK       int
	flagSearchCategory   string
	flagSearchObjectType string
	flagSearchWeb        bool
	flagSearchSummaries  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed documentation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchTopK, "top-k", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&flagSearchCategory, "category", "", "filter by doc category")
	searchCmd.Flags().StringVar(&flagSearchObjectType, "object-type", "", "filter by object type")
	searchCmd.Flags().BoolVar(&flagSearchWeb, "web", false, "include cached web results")
	searchCmd.Flags().BoolVar(&flagSearchSummaries, "summaries", false, "summarize top results with the LLM")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(ctx context.Context, query string) error {
	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if a.searcher == nil {
		return errors.New("search unavailable: embedding credentials and a vector store are required")
	}

	opts := []search.Option{search.WithTopK(flagSearchTopK)}
	if flagSearchCategory != "" {
		opts = append(opts, search.WithFilter(vecstore.Eq("doc_category", flagSearchCategory)))
	}
	if flagSearchObjectType != "" {
		opts = append(opts, search.WithFilter(vecstore.Eq("object_type", flagSearchObjectType)))
	}
	if flagSearchSummaries {
		opts = append(opts, search.WithSummaries())
	}

	var resp *search.Response
	if flagSearchWeb {
		resp, err = a.searcher.Search(ctx, query, opts...)
	} else {
		resp, err = a.searcher.SearchDocsOnly(ctx, query, opts...)
	}
	if err != nil {
		return err
	}
	return printJSON(resp)
}
