// Package cmd implements the docpipe command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"docpipe/internal/log"
)

var (
	flagVerbose bool
	flagJSONLog bool

	// logger is built once in the root PersistentPreRun and shared by
	// every command.
	logger log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docpipe",
	Short: "docpipe - documentation ingestion and retrieval pipeline",
	Long: `docpipe ingests documentation (PDF manuals, source trees, research
documents), chunks and embeds it into a vector index, and serves
semantic search, web-search caching and RAG chat over the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		logger = log.New(log.Config{Level: level, JSON: flagJSONLog})
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "json-log", false, "log in JSON format")
}
