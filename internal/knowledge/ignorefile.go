package knowledge

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFile names the file, at the root of an ingested directory, listing
// paths to skip. It uses a subset of gitignore syntax: comments, blank lines,
// "name" (any file with that base name), "dir/" (everything under dir) and
// "/path" (relative to the root). Negations are not supported and ignored.
const IgnoreFile = ".expertignore"

// readIgnoreFile returns the exclude patterns of root's ignore file, or nil
// when there is none.
func readIgnoreFile(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", IgnoreFile, err)
	}
	defer f.Close()

	var patterns []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		p := ignorePattern(scanner.Text())
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		patterns = append(patterns, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", IgnoreFile, err)
	}
	return patterns, nil
}

// ignorePattern converts one ignore-file line to an exclude pattern.
func ignorePattern(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	line = strings.TrimPrefix(line, "/")
	if dir, ok := strings.CutSuffix(line, "/"); ok {
		return filepath.FromSlash(dir) + "/**"
	}
	return filepath.FromSlash(line)
}
