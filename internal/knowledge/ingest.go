package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/vectorstore"
)

const (
	defaultMaxFileSize     = 1024 * 1024
	maxAllowedFileSize     = 10 * 1024 * 1024
	defaultMaxPassageChars = 1200
)

var defaultIncludePatterns = []string{"*.md", "*.markdown", "*.txt"}

// defaultSkipDirs are never descended into.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	".cache":       true,
}

// Ingester loads knowledge files into a vector store.
type Ingester struct {
	store  vectorstore.Store
	logger *zap.Logger
}

// NewIngester creates an Ingester writing to store.
func NewIngester(store vectorstore.Store, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{store: store, logger: logger}
}

// IngestDirectory walks path and stores every matching file's passages.
func (ing *Ingester) IngestDirectory(ctx context.Context, path string, opts Options) (*Result, error) {
	cleanPath, err := validatePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	ignored, err := readIgnoreFile(cleanPath)
	if err != nil {
		return nil, err
	}
	opts.ExcludePatterns = append(append([]string(nil), opts.ExcludePatterns...), ignored...)
	if err := applyDefaults(&opts); err != nil {
		return nil, err
	}

	collection := opts.Collection
	if collection == "" {
		collection = ing.store.DefaultCollection()
	}
	result := &Result{Path: cleanPath, Collection: collection}

	err = filepath.WalkDir(cleanPath, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if defaultSkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(cleanPath, filePath)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", relPath, err)
		}
		if !shouldIncludeFile(relPath, info.Size(), opts) {
			return nil
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("reading file %s: %w", filePath, err)
		}
		if !utf8.Valid(content) {
			result.FilesSkipped++
			ing.logger.Debug("skipping non UTF-8 file", zap.String("file", relPath))
			return nil
		}

		passages := SplitPassages(string(content), opts.MaxPassageChars)
		if len(passages) == 0 {
			result.FilesSkipped++
			return nil
		}

		source := filepath.ToSlash(relPath)
		docs := make([]vectorstore.Document, len(passages))
		for i, p := range passages {
			docs[i] = vectorstore.Document{
				ID:         fmt.Sprintf("%s#%d", source, i),
				Content:    p,
				Source:     source,
				Collection: collection,
				Metadata:   map[string]string{"extension": filepath.Ext(relPath)},
			}
		}
		if _, err := ing.store.AddDocuments(ctx, docs); err != nil {
			return fmt.Errorf("storing %s: %w", relPath, err)
		}

		result.FilesIndexed++
		result.Passages += len(docs)
		ing.logger.Debug("ingested file",
			zap.String("file", source),
			zap.Int("passages", len(docs)),
		)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", cleanPath, err)
	}

	result.IndexedAt = time.Now()
	ing.logger.Info("knowledge ingestion complete",
		zap.String("path", cleanPath),
		zap.String("collection", collection),
		zap.Int("files", result.FilesIndexed),
		zap.Int("passages", result.Passages),
	)
	return result, nil
}

// SplitPassages splits text on blank lines and packs paragraphs into
// passages of at most maxChars runes. A single oversized paragraph is cut
// at word boundaries.
func SplitPassages(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = defaultMaxPassageChars
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		passages []string
		current  strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			passages = append(passages, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, piece := range cutWords(para, maxChars) {
			if current.Len() > 0 && utf8.RuneCountInString(current.String())+2+utf8.RuneCountInString(piece) > maxChars {
				flush()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	flush()
	return passages
}

func cutWords(para string, maxChars int) []string {
	if utf8.RuneCountInString(para) <= maxChars {
		return []string{para}
	}
	var (
		out  []string
		line strings.Builder
	)
	for _, w := range strings.Fields(para) {
		if line.Len() > 0 && utf8.RuneCountInString(line.String())+1+utf8.RuneCountInString(w) > maxChars {
			out = append(out, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(w)
	}
	if line.Len() > 0 {
		out = append(out, line.String())
	}
	return out
}

func applyDefaults(opts *Options) error {
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.MaxFileSize > maxAllowedFileSize {
		return fmt.Errorf("max file size cannot exceed 10MB")
	}
	if opts.MaxPassageChars <= 0 {
		opts.MaxPassageChars = defaultMaxPassageChars
	}
	if len(opts.IncludePatterns) == 0 {
		opts.IncludePatterns = defaultIncludePatterns
	}
	for _, p := range append(append([]string(nil), opts.IncludePatterns...), opts.ExcludePatterns...) {
		if _, err := filepath.Match(p, "test"); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return nil
}

func validatePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", cleanPath)
		}
		return "", fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path must be a directory: %s", cleanPath)
	}
	return cleanPath, nil
}

func shouldIncludeFile(relPath string, size int64, opts Options) bool {
	if size > opts.MaxFileSize {
		return false
	}
	base := filepath.Base(relPath)
	for _, pattern := range opts.ExcludePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return false
		}
		if strings.HasSuffix(pattern, "/**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if strings.HasPrefix(relPath, prefix+string(filepath.Separator)) {
				return false
			}
		}
	}
	for _, pattern := range opts.IncludePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
