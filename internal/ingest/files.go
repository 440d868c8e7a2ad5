package ingest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SupportedExtensions lists the file types read as plain UTF-8 text.
var SupportedExtensions = []string{".txt", ".md"}

// Supported reports whether name has a readable extension.
func Supported(name string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(name)))
}

// Expand resolves files, directories and doublestar patterns into a sorted,
// de-duplicated list of supported files. Directories are walked recursively.
// Paths matching any exclude pattern, by full path or base name, are dropped.
func Expand(patterns, excludes []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok || !Supported(p) || excluded(p, excludes) {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, pattern := range patterns {
		info, err := os.Stat(pattern)
		switch {
		case err == nil && info.IsDir():
			matches, err := doublestar.Glob(os.DirFS(pattern), "**/*", doublestar.WithFilesOnly())
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				add(filepath.Join(pattern, filepath.FromSlash(m)))
			}
		case err == nil:
			add(pattern)
		case errors.Is(err, fs.ErrNotExist):
			matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				add(m)
			}
		default:
			return nil, err
		}
	}
	slices.Sort(out)
	return out, nil
}

func excluded(path string, patterns []string) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, slashed); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// ReadText reads a file as UTF-8, replacing invalid byte sequences.
// The raw bytes are returned as well for content hashing.
func ReadText(path string) (text string, raw []byte, err error) {
	raw, err = os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD"), raw, nil
}
