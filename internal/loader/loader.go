package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ragchat/internal/domain"
)

// FileLoader reads PDF and plain-text files.
type FileLoader struct{}

// New creates a FileLoader.
func New() *FileLoader { return &FileLoader{} }

var _ domain.Loader = (*FileLoader)(nil)

// Load returns the text of the file at path. Unsupported extensions return
// domain.ErrUnsupportedType; read failures are wrapped in domain.ErrLoad.
func (l *FileLoader) Load(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := loadPDF(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", domain.ErrLoad, filepath.Base(path), err)
		}
		return text, nil
	case ".txt", ".text", ".md":
		text, err := loadText(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", domain.ErrLoad, filepath.Base(path), err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%s: %w", filepath.Base(path), domain.ErrUnsupportedType)
	}
}

// Supported reports whether the loader handles the file's extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".text", ".md":
		return true
	}
	return false
}

// ExpandPaths resolves glob patterns and directories into an ordered,
// de-duplicated list of files. Directories contribute their supported files
// (non-recursive). Patterns matching nothing are kept as-is so the caller
// reports them as unreadable.
func ExpandPaths(patterns []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.IsDir() {
				add(m)
				continue
			}
			entries, err := os.ReadDir(m)
			if err != nil {
				add(m)
				continue
			}
			var files []string
			for _, e := range entries {
				if !e.IsDir() && Supported(e.Name()) {
					files = append(files, filepath.Join(m, e.Name()))
				}
			}
			sort.Strings(files)
			for _, f := range files {
				add(f)
			}
		}
	}
	return out
}
