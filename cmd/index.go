package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docpipe/internal/document"
)

var flagIndexKind string

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Normalize, chunk, embed and index documents",
	Long: `Index a documentation source into the vector store.

The source kind selects the normalizer:
  pdf       a PDF manual (one document per page)
  code      a source tree (one document per recognized source file)
  research  a directory of research JSON/markdown files

With --kind auto (the default) the kind is inferred from the path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd.Context(), args[0])
	},
}

func init() {
	indexCmd.Flags().StringVar(&flagIndexKind, "kind", "auto", "source kind: pdf, code, research or auto")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context, path string) error {
	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	indexer, err := a.newIndexer()
	if err != nil {
		return err
	}

	normalizer, err := pickNormalizer(a, path)
	if err != nil {
		return err
	}

	docs, err := normalizer.Normalize(ctx, path)
	if err != nil {
		return fmt.Errorf("normalizing %s: %w", path, err)
	}
	logger.Info("normalized source", "path", path, "documents", len(docs))

	stats, err := indexer.IndexAll(ctx, docs)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func pickNormalizer(a *app, path string) (document.Normalizer, error) {
	kind := flagIndexKind
	if kind == "auto" {
		kind = inferKind(path)
	}
	switch kind {
	case "pdf":
		return document.NewPDF(a.log.With("component", "pdf")), nil
	case "code":
		return document.NewCode(a.log.With("component", "code")), nil
	case "research":
		return document.NewResearch(a.log.With("component", "research")), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

func inferKind(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "pdf"
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "code"
	}
	return "research"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
