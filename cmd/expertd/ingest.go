package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/knowledge"
)

var (
	ingestCollection string
	ingestInclude    []string
	ingestExclude    []string
	ingestMaxChars   int
)

func init() {
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "target collection (default: configured collection)")
	ingestCmd.Flags().StringSliceVar(&ingestInclude, "include", nil, "glob patterns of files to index (default: *.md, *.markdown, *.txt)")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "glob patterns of files to skip")
	ingestCmd.Flags().IntVar(&ingestMaxChars, "max-passage-chars", 0, "maximum passage length (default: 1200)")
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <directory>",
	Short: "Load knowledge documents into the vector store",
	Long: `Split Markdown and text files into passages and store them, with
embeddings, in the configured vector store.

Examples:
  # Index a directory of breed guides
  expertd ingest ./knowledge/ross

  # Index into a separate collection, skipping drafts
  expertd ingest ./knowledge/health --collection health --exclude "drafts/*"`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	store, err := a.vectorStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("vector store provider is \"none\"; nothing to ingest into")
	}

	start := time.Now()
	res, err := knowledge.NewIngester(store, a.logger.Underlying()).IngestDirectory(ctx, args[0], knowledge.Options{
		IncludePatterns: ingestInclude,
		ExcludePatterns: ingestExclude,
		MaxPassageChars: ingestMaxChars,
		Collection:      ingestCollection,
	})
	if err != nil {
		return fmt.Errorf("ingest %s: %w", args[0], err)
	}

	a.logger.Info(ctx, "ingestion complete",
		zap.String("collection", res.Collection),
		zap.Int("files_indexed", res.FilesIndexed),
		zap.Int("passages", res.Passages),
		zap.Duration("duration", time.Since(start)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d passages, %d skipped) into %s\n",
		res.FilesIndexed, res.Passages, res.FilesSkipped, res.Collection)
	return nil
}
