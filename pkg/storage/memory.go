package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryProvider is a thread-safe in-memory storage backend.
// Directories are explicit entries, so empty directories round-trip
// through copies. Useful for tests and as a scratch namespace.
type InMemoryProvider struct {
	name     string
	pageSize int
	mu       sync.RWMutex
	entries  map[string]*memEntry
}

// memEntry is one file or directory in the in-memory store.
type memEntry struct {
	data       []byte
	modTime    time.Time
	isDir      bool
	attributes map[string]string
}

// NewInMemoryProvider creates an empty in-memory provider.
func NewInMemoryProvider(name string) *InMemoryProvider {
	return &InMemoryProvider{
		name:     name,
		pageSize: DefaultPageSize,
		entries:  make(map[string]*memEntry),
	}
}

// SetPageSize overrides the List page size. Values <= 0 restore the default.
func (p *InMemoryProvider) SetPageSize(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if size <= 0 {
		size = DefaultPageSize
	}

	p.pageSize = size
}

// Name identifies the provider instance.
func (p *InMemoryProvider) Name() string {
	return p.name
}

// Exists reports whether a file exists at path.
func (p *InMemoryProvider) Exists(ctx context.Context, path string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.entries[normalized]

	return ok && !entry.isDir, nil
}

// ReadFile opens the file at path for reading.
func (p *InMemoryProvider) ReadFile(ctx context.Context, path string, progress ProgressFunc) (io.ReadCloser, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	entry, ok := p.entries[normalized]
	if !ok || entry.isDir {
		p.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	p.mu.RUnlock()

	return &progressReader{
		r:        io.NopCloser(bytes.NewReader(data)),
		path:     normalized,
		total:    int64(len(data)),
		progress: progress,
	}, nil
}

// WriteFile writes the contents of r to path, creating parents as needed.
func (p *InMemoryProvider) WriteFile(ctx context.Context, path string, r io.Reader, progress ProgressFunc) error {
	if r == nil {
		return fmt.Errorf("%w: reader is nil", ErrInvalidArgument)
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer

	_, err = copyStream(ctx, &buf, r, 0, normalized, progress)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.ensureParentsLocked(normalized)
	p.entries[normalized] = &memEntry{
		data:    buf.Bytes(),
		modTime: time.Now(),
	}

	return nil
}

// DeleteFile removes the file at path.
func (p *InMemoryProvider) DeleteFile(ctx context.Context, path string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[normalized]
	if !ok || entry.isDir {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	delete(p.entries, normalized)

	return nil
}

// Checksum returns the SHA-256 hex digest of the file contents.
func (p *InMemoryProvider) Checksum(ctx context.Context, path string) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.entries[normalized]
	if !ok || entry.isDir {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	return HashBytes(entry.data), nil
}

// Metadata returns the stored metadata for path.
func (p *InMemoryProvider) Metadata(ctx context.Context, path string) (*FileMetadata, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.entries[normalized]
	if !ok || entry.isDir {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	return p.metadataLocked(normalized, entry), nil
}

// SetMetadata replaces the custom attributes for path.
func (p *InMemoryProvider) SetMetadata(ctx context.Context, path string, md *FileMetadata) error {
	if md == nil {
		return fmt.Errorf("%w: metadata is nil", ErrInvalidArgument)
	}

	if err := checkContext(ctx); err != nil {
		return err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[normalized]
	if !ok || entry.isDir {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	entry.attributes = cloneAttributes(md.Attributes)
	if !md.ModTime.IsZero() {
		entry.modTime = md.ModTime
	}

	return nil
}

// UpdateMetadata applies a read-modify-write transform to the metadata.
func (p *InMemoryProvider) UpdateMetadata(ctx context.Context, path string, update func(*FileMetadata)) (*FileMetadata, error) {
	if update == nil {
		return nil, fmt.Errorf("%w: update function is nil", ErrInvalidArgument)
	}

	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[normalized]
	if !ok || entry.isDir {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	md := p.metadataLocked(normalized, entry)
	update(md)

	entry.attributes = cloneAttributes(md.Attributes)
	if !md.ModTime.IsZero() {
		entry.modTime = md.ModTime
	}

	return md.Clone(), nil
}

// List returns a page of files under path, sorted by path.
func (p *InMemoryProvider) List(ctx context.Context, path, pattern string, recursive bool, token string) (*FileList, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if dir != "" {
		if entry, ok := p.entries[dir]; !ok || !entry.isDir {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
		}
	}

	files := make([]*FileMetadata, 0)

	for entryPath, entry := range p.entries {
		if entry.isDir || !isUnder(dir, entryPath) {
			continue
		}

		rel := relativeTo(dir, entryPath)
		if !recursive && strings.Contains(rel, "/") {
			continue
		}

		if !matchPattern(pattern, rel) {
			continue
		}

		files = append(files, p.metadataLocked(entryPath, entry))
	}

	return pageFiles(files, token, p.pageSize), nil
}

// DirectoryExists reports whether a directory exists at path.
func (p *InMemoryProvider) DirectoryExists(ctx context.Context, path string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return false, err
	}

	if dir == "" {
		return true, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.entries[dir]

	return ok && entry.isDir, nil
}

// CreateDirectory creates the directory at path and any parents.
func (p *InMemoryProvider) CreateDirectory(ctx context.Context, path string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return err
	}

	if dir == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.ensureParentsLocked(dir)
	p.entries[dir] = &memEntry{isDir: true, modTime: time.Now()}

	return nil
}

// DeleteDirectory removes the directory at path.
func (p *InMemoryProvider) DeleteDirectory(ctx context.Context, path string, recursive bool) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return err
	}

	if dir == "" {
		return fmt.Errorf("%w: cannot delete the provider root", ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[dir]
	if !ok || !entry.isDir {
		return fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	var children []string

	for entryPath := range p.entries {
		if entryPath != dir && isUnder(dir, entryPath) {
			children = append(children, entryPath)
		}
	}

	if len(children) > 0 && !recursive {
		return fmt.Errorf("%w: directory %s is not empty", ErrInvalidArgument, path)
	}

	for _, child := range children {
		delete(p.entries, child)
	}

	delete(p.entries, dir)

	return nil
}

// ListDirectories returns directory paths under path, sorted.
func (p *InMemoryProvider) ListDirectories(ctx context.Context, path, pattern string, recursive bool) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	dirs := make([]string, 0)

	for entryPath, entry := range p.entries {
		if !entry.isDir || entryPath == dir || !isUnder(dir, entryPath) {
			continue
		}

		rel := relativeTo(dir, entryPath)
		if !recursive && strings.Contains(rel, "/") {
			continue
		}

		if !matchPattern(pattern, rel) {
			continue
		}

		dirs = append(dirs, entryPath)
	}

	sort.Strings(dirs)

	return dirs, nil
}

// CheckHealth verifies the backend is usable. Always healthy in memory.
func (p *InMemoryProvider) CheckHealth(_ context.Context) error {
	return nil
}

// metadataLocked builds metadata for an entry. Caller holds at least a read lock.
func (p *InMemoryProvider) metadataLocked(path string, entry *memEntry) *FileMetadata {
	return &FileMetadata{
		Path:       path,
		Size:       int64(len(entry.data)),
		ModTime:    entry.modTime,
		Attributes: cloneAttributes(entry.attributes),
	}
}

// ensureParentsLocked creates implicit parent directories for a path.
// Caller holds the write lock.
func (p *InMemoryProvider) ensureParentsLocked(path string) {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		parent := strings.Join(parts[:i], "/")
		if entry, ok := p.entries[parent]; !ok || !entry.isDir {
			p.entries[parent] = &memEntry{isDir: true, modTime: time.Now()}
		}
	}
}

func cloneAttributes(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}

	clone := make(map[string]string, len(attrs))
	for k, v := range attrs {
		clone[k] = v
	}

	return clone
}
