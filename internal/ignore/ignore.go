// Package ignore provides gitignore-style exclude patterns for ingestion
// walks.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ignoreFiles are the files consulted at the walk root, in order.
var ignoreFiles = []string{".ragdignore", ".gitignore"}

// Matcher decides whether a path is excluded from ingestion.
type Matcher struct {
	patterns []string
}

// Load reads ignore files from the walk root and builds a matcher. Missing
// ignore files are fine; the matcher then excludes nothing.
func Load(root string) (*Matcher, error) {
	var patterns []string

	for _, name := range ignoreFiles {
		filePatterns, err := parseFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		patterns = append(patterns, filePatterns...)
	}

	return &Matcher{patterns: deduplicate(patterns)}, nil
}

// NewMatcher builds a matcher from explicit patterns, bypassing ignore
// files.
func NewMatcher(patterns []string) *Matcher {
	converted := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if pattern := parseLine(p); pattern != "" {
			converted = append(converted, pattern)
		}
	}
	return &Matcher{patterns: deduplicate(converted)}
}

// Patterns returns the effective exclude patterns.
func (m *Matcher) Patterns() []string {
	return m.patterns
}

// Match reports whether the path, relative to the walk root, is excluded.
func (m *Matcher) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	basename := filepath.Base(relPath)

	for _, pattern := range m.patterns {
		if matched, _ := filepath.Match(pattern, basename); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		// Directory patterns like "vendor/**" exclude everything beneath
		// the directory, which filepath.Match alone cannot express.
		if strings.HasSuffix(pattern, "/**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if relPath == prefix || strings.HasPrefix(relPath, prefix+"/") {
				return true
			}
		}
	}
	return false
}

// parseFile reads a single gitignore-style file and returns its patterns.
func parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}

// parseLine parses a single gitignore line. Comments, blank lines and
// negation patterns yield the empty string.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	// Negations are not supported; excluding them is safer than excluding
	// everything the pattern re-includes.
	if strings.HasPrefix(line, "!") {
		return ""
	}
	return toPattern(line)
}

// toPattern normalizes a gitignore pattern for Match.
func toPattern(pattern string) string {
	// A leading slash anchors to the root, which relative matching already
	// gives us.
	pattern = strings.TrimPrefix(pattern, "/")

	// Trailing slash marks a directory; exclude its whole subtree.
	if strings.HasSuffix(pattern, "/") {
		pattern += "**"
	}
	return pattern
}

// deduplicate removes duplicate patterns while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	result := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}
