package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"docchat/internal/contextutil"
)

// DefaultPatterns are the glob patterns for the supported file types.
var DefaultPatterns = []string{"**/*.txt", "**/*.md", "**/*.pdf"}

// Loader reads a directory tree and produces Documents for all files
// matching its glob patterns.
type Loader struct {
	root     string
	patterns []string
}

// New creates a Loader for the given root directory. If patterns is empty,
// DefaultPatterns is used. Patterns are matched against paths relative to
// root, with forward slashes.
func New(root string, patterns []string) *Loader {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Loader{
		root:     root,
		patterns: patterns,
	}
}

// Load walks the root directory and returns Documents for all matching
// files. Files that fail to parse are skipped with a warning; a tree with no
// matching files yields an empty slice, not an error.
func (l *Loader) Load(ctx context.Context) ([]Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if _, err := os.Stat(l.root); err != nil {
		return nil, fmt.Errorf("failed to access input directory %s: %w", l.root, err)
	}

	var docs []Document
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(l.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		if !l.matches(relPath) {
			return nil
		}

		loaded, err := l.loadFile(path, relPath)
		if err != nil {
			logger.WarnContext(ctx, "skipping unparseable file", "rel_path", relPath, "error", err)
			return nil
		}

		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", l.root, err)
	}

	logger.InfoContext(ctx, "loaded documents", "root", l.root, "documents", len(docs))
	return docs, nil
}

// matches reports whether the relative path matches any configured pattern.
func (l *Loader) matches(relPath string) bool {
	for _, pattern := range l.patterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// loadFile dispatches on file extension and returns the Documents for a
// single file.
func (l *Loader) loadFile(absPath, relPath string) ([]Document, error) {
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".pdf":
		return loadPDF(absPath, relPath)
	case ".md":
		return loadMarkdown(absPath, relPath)
	default:
		return loadText(absPath, relPath)
	}
}

// loadText reads a plain-text file into a single Document.
func loadText(absPath, relPath string) ([]Document, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return []Document{{
		Text: string(content),
		Metadata: map[string]string{
			MetaSource: relPath,
		},
	}}, nil
}

// loadMarkdown reads a markdown file into a single Document. The text is the
// full file contents; a title extracted from the first heading is recorded
// as extra metadata.
func loadMarkdown(absPath, relPath string) ([]Document, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return []Document{{
		Text: string(content),
		Metadata: map[string]string{
			MetaSource: relPath,
			MetaTitle:  extractMarkdownTitle(content, relPath),
		},
	}}, nil
}

// pageMetadata builds the metadata map for a PDF page. Pages are 0-indexed.
func pageMetadata(relPath string, pageIndex int) map[string]string {
	return map[string]string{
		MetaSource: relPath,
		MetaPage:   strconv.Itoa(pageIndex),
	}
}
