package knowledge

import "time"

// Options configures ingestion.
type Options struct {
	// IncludePatterns are glob patterns for files to include.
	// Default: *.md, *.markdown, *.txt
	IncludePatterns []string

	// ExcludePatterns take precedence over include patterns.
	ExcludePatterns []string

	// MaxFileSize in bytes. Default: 1MB, maximum: 10MB.
	MaxFileSize int64

	// MaxPassageChars bounds passage length. Default: 1200.
	MaxPassageChars int

	// Collection overrides the store's default collection.
	Collection string
}

// Result summarizes one ingestion run.
type Result struct {
	Path         string
	Collection   string
	FilesIndexed int
	FilesSkipped int
	Passages     int
	IndexedAt    time.Time
}
