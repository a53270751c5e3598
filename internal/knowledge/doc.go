// Package knowledge ingests poultry guides into the vector store.
//
// The ingester walks a directory, keeps Markdown and text files within the
// size limit, splits each into paragraph-aligned passages and stores them
// with their relative path as source:
//
//	ing := knowledge.NewIngester(store, logger)
//	result, err := ing.IngestDirectory(ctx, "./guides", knowledge.Options{})
//	fmt.Printf("stored %d passages from %d files\n", result.Passages, result.FilesIndexed)
//
// Paths are cleaned before walking, invalid UTF-8 files are skipped and
// passage IDs are stable (relative path plus passage index), so re-ingesting
// a directory overwrites rather than duplicates.
package knowledge
