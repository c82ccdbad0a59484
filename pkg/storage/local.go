package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// Exported constants.
const (
	// DefaultDirPermissions is the permission mode for created directories.
	DefaultDirPermissions = 0o750
	// DefaultFilePermissions is the permission mode for created files.
	DefaultFilePermissions = 0o600
	// DefaultWalkWorkers is the number of parallel workers used for
	// recursive enumeration.
	DefaultWalkWorkers = 4
)

// LocalProvider is a storage backend rooted at a directory on local disk.
// All paths are relative to the root; attempts to escape it are rejected.
type LocalProvider struct {
	name string
	root string

	// Custom attributes are not representable on a plain filesystem, so
	// they are held in memory per path.
	attrMu sync.RWMutex
	attrs  map[string]map[string]string
}

// NewLocalProvider creates a provider rooted at root, creating the root
// directory if it does not exist.
func NewLocalProvider(name, root string) (*LocalProvider, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: root is empty", ErrInvalidArgument)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	err = os.MkdirAll(abs, DefaultDirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create root %s: %w", abs, err)
	}

	return &LocalProvider{
		name:  name,
		root:  abs,
		attrs: make(map[string]map[string]string),
	}, nil
}

// Root returns the absolute root directory of the provider.
func (p *LocalProvider) Root() string {
	return p.root
}

// Name identifies the provider instance.
func (p *LocalProvider) Name() string {
	return p.name
}

// abs converts a normalized relative path to an absolute path under the root.
func (p *LocalProvider) abs(relPath string) string {
	return filepath.Join(p.root, filepath.FromSlash(relPath))
}

// Exists reports whether a file exists at path.
func (p *LocalProvider) Exists(ctx context.Context, path string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p.abs(normalized))
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return !info.IsDir(), nil
}

// ReadFile opens the file at path for reading.
func (p *LocalProvider) ReadFile(ctx context.Context, path string, progress ProgressFunc) (io.ReadCloser, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(p.abs(normalized)) // #nosec G304 - path is validated against the root
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return &progressReader{
		r:        file,
		path:     normalized,
		total:    info.Size(),
		progress: progress,
	}, nil
}

// WriteFile writes the contents of r to path, creating parents as needed.
func (p *LocalProvider) WriteFile(ctx context.Context, path string, r io.Reader, progress ProgressFunc) error {
	if r == nil {
		return fmt.Errorf("%w: reader is nil", ErrInvalidArgument)
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	target := p.abs(normalized)

	err = os.MkdirAll(filepath.Dir(target), DefaultDirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, DefaultFilePermissions) // #nosec G304 - path is validated against the root
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	completed := false

	defer func() {
		_ = file.Close()
		// Remove partial files left behind by cancellation or write errors.
		if !completed {
			_ = os.Remove(target)
		}
	}()

	_, err = copyStream(ctx, file, r, 0, normalized, progress)
	if err != nil {
		return err
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	completed = true

	return nil
}

// DeleteFile removes the file at path.
func (p *LocalProvider) DeleteFile(ctx context.Context, path string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	err = os.Remove(p.abs(normalized))
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	p.attrMu.Lock()
	delete(p.attrs, normalized)
	p.attrMu.Unlock()

	return nil
}

// Checksum returns the SHA-256 hex digest of the file contents.
func (p *LocalProvider) Checksum(ctx context.Context, path string) (string, error) {
	reader, err := p.ReadFile(ctx, path, nil)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = reader.Close()
	}()

	return hashReader(reader)
}

// Metadata returns the metadata for path.
func (p *LocalProvider) Metadata(ctx context.Context, path string) (*FileMetadata, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p.abs(normalized))
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	p.attrMu.RLock()
	attrs := cloneAttributes(p.attrs[normalized])
	p.attrMu.RUnlock()

	return &FileMetadata{
		Path:       normalized,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		Attributes: attrs,
	}, nil
}

// SetMetadata replaces the custom attributes for path.
func (p *LocalProvider) SetMetadata(ctx context.Context, path string, md *FileMetadata) error {
	if md == nil {
		return fmt.Errorf("%w: metadata is nil", ErrInvalidArgument)
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	exists, err := p.Exists(ctx, normalized)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if !md.ModTime.IsZero() {
		err = os.Chtimes(p.abs(normalized), md.ModTime, md.ModTime)
		if err != nil {
			return fmt.Errorf("failed to change times for %s: %w", path, err)
		}
	}

	p.attrMu.Lock()
	p.attrs[normalized] = cloneAttributes(md.Attributes)
	p.attrMu.Unlock()

	return nil
}

// UpdateMetadata applies a read-modify-write transform to the metadata.
func (p *LocalProvider) UpdateMetadata(ctx context.Context, path string, update func(*FileMetadata)) (*FileMetadata, error) {
	if update == nil {
		return nil, fmt.Errorf("%w: update function is nil", ErrInvalidArgument)
	}

	md, err := p.Metadata(ctx, path)
	if err != nil {
		return nil, err
	}

	update(md)

	err = p.SetMetadata(ctx, path, md)
	if err != nil {
		return nil, err
	}

	return p.Metadata(ctx, path)
}

// List returns a page of files under path, sorted by path.
// Recursive listings use a parallel walk.
func (p *LocalProvider) List(ctx context.Context, path, pattern string, recursive bool, token string) (*FileList, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return nil, err
	}

	base := p.abs(dir)

	info, err := os.Stat(base)
	if errors.Is(err, iofs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	var files []*FileMetadata

	if recursive {
		files, err = p.walkFiles(ctx, base, dir, pattern)
	} else {
		files, err = p.listShallow(base, dir, pattern)
	}

	if err != nil {
		return nil, err
	}

	return pageFiles(files, token, DefaultPageSize), nil
}

// listShallow lists the immediate files of a directory.
func (p *LocalProvider) listShallow(base, dir, pattern string) ([]*FileMetadata, error) {
	dirEntries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	files := make([]*FileMetadata, 0, len(dirEntries))

	for _, entry := range dirEntries {
		if entry.IsDir() || !matchPattern(pattern, entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		files = append(files, p.fileMetadata(joinRel(dir, entry.Name()), info))
	}

	return files, nil
}

// walkFiles enumerates files under base recursively using fastwalk.
func (p *LocalProvider) walkFiles(ctx context.Context, base, dir, pattern string) ([]*FileMetadata, error) {
	var (
		mu    sync.Mutex
		files []*FileMetadata
	)

	conf := &fastwalk.Config{NumWorkers: DefaultWalkWorkers}

	err := fastwalk.Walk(conf, base, func(walkPath string, d iofs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := checkContext(ctx); err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(base, walkPath)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", walkPath, err)
		}

		rel = filepath.ToSlash(rel)
		if !matchPattern(pattern, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", walkPath, err)
		}

		mu.Lock()
		files = append(files, p.fileMetadata(joinRel(dir, rel), info))
		mu.Unlock()

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	return files, nil
}

// DirectoryExists reports whether a directory exists at path.
func (p *LocalProvider) DirectoryExists(ctx context.Context, path string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p.abs(dir))
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return info.IsDir(), nil
}

// CreateDirectory creates the directory at path and any parents.
func (p *LocalProvider) CreateDirectory(ctx context.Context, path string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return err
	}

	err = os.MkdirAll(p.abs(dir), DefaultDirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}

	return nil
}

// DeleteDirectory removes the directory at path.
func (p *LocalProvider) DeleteDirectory(ctx context.Context, path string, recursive bool) error {
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

	target := p.abs(dir)

	info, err := os.Stat(target)
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	if recursive {
		err = os.RemoveAll(target)
	} else {
		err = os.Remove(target)
	}

	if err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", path, err)
	}

	return nil
}

// ListDirectories returns directory paths under path, sorted.
func (p *LocalProvider) ListDirectories(ctx context.Context, path, pattern string, recursive bool) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	dir, err := normalizeDir(path)
	if err != nil {
		return nil, err
	}

	base := p.abs(dir)
	dirs := make([]string, 0)

	if recursive {
		err = filepath.WalkDir(base, func(walkPath string, d iofs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			if !d.IsDir() || walkPath == base {
				return nil
			}

			rel, relErr := filepath.Rel(base, walkPath)
			if relErr != nil {
				return relErr
			}

			rel = filepath.ToSlash(rel)
			if matchPattern(pattern, rel) {
				dirs = append(dirs, joinRel(dir, rel))
			}

			return nil
		})
	} else {
		var dirEntries []iofs.DirEntry

		dirEntries, err = os.ReadDir(base)
		for _, entry := range dirEntries {
			if entry.IsDir() && matchPattern(pattern, entry.Name()) {
				dirs = append(dirs, joinRel(dir, entry.Name()))
			}
		}
	}

	if errors.Is(err, iofs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list directories under %s: %w", path, err)
	}

	sort.Strings(dirs)

	return dirs, nil
}

// CheckHealth verifies the root directory is accessible.
func (p *LocalProvider) CheckHealth(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	_, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("%w: root %s: %w", ErrProviderUnavailable, p.root, err)
	}

	return nil
}

// fileMetadata builds metadata for a file, merging in stored attributes.
func (p *LocalProvider) fileMetadata(relPath string, info iofs.FileInfo) *FileMetadata {
	p.attrMu.RLock()
	attrs := cloneAttributes(p.attrs[relPath])
	p.attrMu.RUnlock()

	return &FileMetadata{
		Path:       relPath,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		Attributes: attrs,
	}
}

// joinRel joins a directory and a relative child path with forward slashes.
func joinRel(dir, child string) string {
	if dir == "" {
		return child
	}

	return dir + "/" + strings.TrimPrefix(child, "/")
}
