package storage

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// normalizePath cleans a provider-relative path: forward slashes only,
// no leading slash, no traversal outside the root.
func normalizePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: path is empty", ErrInvalidArgument)
	}

	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: path %q escapes the provider root", ErrInvalidArgument, p)
	}

	if cleaned == "." {
		cleaned = ""
	}

	return cleaned, nil
}

// normalizeDir is normalizePath but allows the empty path (provider root).
func normalizeDir(p string) (string, error) {
	if p == "" || p == "." || p == "/" {
		return "", nil
	}

	return normalizePath(p)
}

// matchPattern reports whether relPath matches the doublestar glob pattern.
// An empty pattern matches everything. Matching is case-insensitive.
func matchPattern(pattern, relPath string) bool {
	if pattern == "" {
		return true
	}

	matched, err := doublestar.Match(strings.ToLower(pattern), strings.ToLower(relPath))
	if err != nil {
		// Invalid patterns match nothing.
		return false
	}

	return matched
}

// relativeTo returns p relative to dir, assuming p is under dir.
func relativeTo(dir, p string) string {
	if dir == "" {
		return p
	}

	return strings.TrimPrefix(p, dir+"/")
}

// isUnder reports whether p is dir itself or inside dir.
func isUnder(dir, p string) bool {
	if dir == "" {
		return true
	}

	return p == dir || strings.HasPrefix(p, dir+"/")
}

// pageFiles applies token-based pagination to a sorted file slice.
// The token is the last path of the previous page.
func pageFiles(files []*FileMetadata, token string, pageSize int) *FileList {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	start := 0
	if token != "" {
		start = sort.Search(len(files), func(i int) bool { return files[i].Path > token })
	}

	end := start + pageSize
	if end > len(files) {
		end = len(files)
	}

	list := &FileList{Files: files[start:end]}
	if end < len(files) && end > start {
		list.NextToken = files[end-1].Path
	}

	return list
}
