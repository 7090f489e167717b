package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docpipe/internal/search"
	"docpipe/internal/vecstore"
)

var (
	flagChatTopK     int
	flagChatCategory string
)

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask a question grounded in indexed documentation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	chatCmd.Flags().IntVar(&flagChatTopK, "top-k", 0, "retrieval depth (0 uses the default)")
	chatCmd.Flags().StringVar(&flagChatCategory, "category", "", "restrict retrieval to a doc category")
	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context, question string) error {
	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if a.chatSvc == nil {
		return errors.New("chat unavailable: embedding and LLM credentials and a vector store are required")
	}

	var opts []search.Option
	if flagChatTopK > 0 {
		opts = append(opts, search.WithTopK(flagChatTopK))
	}
	if flagChatCategory != "" {
		opts = append(opts, search.WithFilter(vecstore.Eq("doc_category", flagChatCategory)))
	}

	resp, err := a.chatSvc.Ask(ctx, question, opts...)
	if err != nil {
		return err
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range resp.Sources {
			fmt.Printf("  - %s\n", src)
		}
	}
	return nil
}
