package storage

import (
	"context"
	"io"
	"sync"
	"time"
)

// DefaultCacheTTL is the cache duration used when none is configured.
const DefaultCacheTTL = 5 * time.Minute

// cacheEntry is one cached read result with its expiry.
type cacheEntry struct {
	exists    bool
	hasExists bool
	metadata  *FileMetadata
	checksum  string
	expiresAt time.Time
}

// CachingBehavior caches read-like results (existence, metadata,
// checksum) keyed by provider name and path, and invalidates affected
// entries on every mutating call. Listings and file contents are never
// cached.
type CachingBehavior struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// WithCaching returns a BehaviorFunc that wraps providers with a
// read cache of the given duration. ttl <= 0 uses DefaultCacheTTL.
func WithCaching(ttl time.Duration) BehaviorFunc {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return func(inner Provider) Behavior {
		return &CachingBehavior{
			inner:   inner,
			ttl:     ttl,
			now:     time.Now,
			entries: make(map[string]*cacheEntry),
		}
	}
}

// InnerProvider returns the wrapped provider.
func (b *CachingBehavior) InnerProvider() Provider {
	return b.inner
}

// Name identifies the underlying provider instance.
func (b *CachingBehavior) Name() string {
	return b.inner.Name()
}

// key builds the cache key for a path.
func (b *CachingBehavior) key(path string) string {
	return b.inner.Name() + ":" + path
}

// entry returns the live cache entry for path, creating it if needed.
// Expired entries are replaced. Caller holds the lock.
func (b *CachingBehavior) entryLocked(path string) *cacheEntry {
	key := b.key(path)

	entry, ok := b.entries[key]
	if !ok || b.now().After(entry.expiresAt) {
		entry = &cacheEntry{expiresAt: b.now().Add(b.ttl)}
		b.entries[key] = entry
	}

	return entry
}

// Invalidate drops any cached state for path.
func (b *CachingBehavior) Invalidate(path string) {
	b.mu.Lock()
	delete(b.entries, b.key(path))
	b.mu.Unlock()
}

// InvalidateAll drops the entire cache.
func (b *CachingBehavior) InvalidateAll() {
	b.mu.Lock()
	b.entries = make(map[string]*cacheEntry)
	b.mu.Unlock()
}

// Exists reports whether a file exists at path, from cache when possible.
func (b *CachingBehavior) Exists(ctx context.Context, path string) (bool, error) {
	b.mu.Lock()
	entry := b.entryLocked(path)
	if entry.hasExists {
		exists := entry.exists
		b.mu.Unlock()

		return exists, nil
	}
	b.mu.Unlock()

	exists, err := b.inner.Exists(ctx, path)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	entry = b.entryLocked(path)
	entry.exists = exists
	entry.hasExists = true
	b.mu.Unlock()

	return exists, nil
}

// ReadFile opens the file at path for reading. Contents are not cached.
func (b *CachingBehavior) ReadFile(ctx context.Context, path string, progress ProgressFunc) (io.ReadCloser, error) {
	return b.inner.ReadFile(ctx, path, progress)
}

// WriteFile writes to path and invalidates its cached state.
func (b *CachingBehavior) WriteFile(ctx context.Context, path string, r io.Reader, progress ProgressFunc) error {
	err := b.inner.WriteFile(ctx, path, r, progress)

	b.Invalidate(path)

	return err
}

// DeleteFile removes the file at path and invalidates its cached state.
func (b *CachingBehavior) DeleteFile(ctx context.Context, path string) error {
	err := b.inner.DeleteFile(ctx, path)

	b.Invalidate(path)

	return err
}

// Checksum returns the file's checksum, from cache when possible.
func (b *CachingBehavior) Checksum(ctx context.Context, path string) (string, error) {
	b.mu.Lock()
	entry := b.entryLocked(path)
	if entry.checksum != "" {
		sum := entry.checksum
		b.mu.Unlock()

		return sum, nil
	}
	b.mu.Unlock()

	sum, err := b.inner.Checksum(ctx, path)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.entryLocked(path).checksum = sum
	b.mu.Unlock()

	return sum, nil
}

// Metadata returns the metadata for path, from cache when possible.
func (b *CachingBehavior) Metadata(ctx context.Context, path string) (*FileMetadata, error) {
	b.mu.Lock()
	entry := b.entryLocked(path)
	if entry.metadata != nil {
		md := entry.metadata.Clone()
		b.mu.Unlock()

		return md, nil
	}
	b.mu.Unlock()

	md, err := b.inner.Metadata(ctx, path)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.entryLocked(path).metadata = md.Clone()
	b.mu.Unlock()

	return md, nil
}

// SetMetadata replaces the attributes for path and invalidates its cache.
func (b *CachingBehavior) SetMetadata(ctx context.Context, path string, md *FileMetadata) error {
	err := b.inner.SetMetadata(ctx, path, md)

	b.Invalidate(path)

	return err
}

// UpdateMetadata transforms the metadata for path and invalidates its cache.
func (b *CachingBehavior) UpdateMetadata(ctx context.Context, path string, update func(*FileMetadata)) (*FileMetadata, error) {
	md, err := b.inner.UpdateMetadata(ctx, path, update)

	b.Invalidate(path)

	return md, err
}

// List returns a page of files under path. Listings are not cached.
func (b *CachingBehavior) List(ctx context.Context, path, pattern string, recursive bool, token string) (*FileList, error) {
	return b.inner.List(ctx, path, pattern, recursive, token)
}

// DirectoryExists reports whether a directory exists at path.
func (b *CachingBehavior) DirectoryExists(ctx context.Context, path string) (bool, error) {
	return b.inner.DirectoryExists(ctx, path)
}

// CreateDirectory creates the directory at path and any parents.
func (b *CachingBehavior) CreateDirectory(ctx context.Context, path string) error {
	return b.inner.CreateDirectory(ctx, path)
}

// DeleteDirectory removes the directory at path and drops the whole
// cache, since any cached path under it may now be gone.
func (b *CachingBehavior) DeleteDirectory(ctx context.Context, path string, recursive bool) error {
	err := b.inner.DeleteDirectory(ctx, path, recursive)

	b.InvalidateAll()

	return err
}

// ListDirectories returns directory paths under path.
func (b *CachingBehavior) ListDirectories(ctx context.Context, path, pattern string, recursive bool) ([]string, error) {
	return b.inner.ListDirectories(ctx, path, pattern, recursive)
}

// CheckHealth verifies the backend is reachable.
func (b *CachingBehavior) CheckHealth(ctx context.Context) error {
	return b.inner.CheckHealth(ctx)
}
