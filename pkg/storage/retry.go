package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Exported constants.
const (
	// DefaultMaxRetries is the retry count used when none is configured.
	DefaultMaxRetries = 3
	// DefaultRetryBackoff is the initial delay between retries; it
	// doubles on each attempt.
	DefaultRetryBackoff = 100 * time.Millisecond
)

// RetryBehavior re-invokes inner calls on transient failures with
// exponential backoff. Not-found, validation and cancellation errors are
// never retried.
type RetryBehavior struct {
	inner      Provider
	maxRetries int
	backoff    time.Duration
	sleep      func(time.Duration)
}

// WithRetry returns a BehaviorFunc that wraps providers with retry.
// maxRetries <= 0 and backoff <= 0 fall back to the defaults.
func WithRetry(maxRetries int, backoff time.Duration) BehaviorFunc {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}

	return func(inner Provider) Behavior {
		return &RetryBehavior{
			inner:      inner,
			maxRetries: maxRetries,
			backoff:    backoff,
			sleep:      time.Sleep,
		}
	}
}

// InnerProvider returns the wrapped provider.
func (b *RetryBehavior) InnerProvider() Provider {
	return b.inner
}

// Name identifies the underlying provider instance.
func (b *RetryBehavior) Name() string {
	return b.inner.Name()
}

// retry runs call up to maxRetries+1 times, backing off between
// transient failures.
func (b *RetryBehavior) retry(call func() error) error {
	var err error

	delay := b.backoff

	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			b.sleep(delay)
			delay *= 2
		}

		err = call()
		if err == nil || !IsTransient(err) {
			return err
		}
	}

	return fmt.Errorf("giving up after %d retries: %w", b.maxRetries, err)
}

// Exists reports whether a file exists at path, retrying transient failures.
func (b *RetryBehavior) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool

	err := b.retry(func() error {
		var innerErr error
		exists, innerErr = b.inner.Exists(ctx, path)

		return innerErr
	})

	return exists, err
}

// ReadFile opens the file at path for reading, retrying transient failures.
func (b *RetryBehavior) ReadFile(ctx context.Context, path string, progress ProgressFunc) (io.ReadCloser, error) {
	var reader io.ReadCloser

	err := b.retry(func() error {
		var innerErr error
		reader, innerErr = b.inner.ReadFile(ctx, path, progress)

		return innerErr
	})

	return reader, err
}

// WriteFile writes the contents of r to path. Writes are not retried:
// the reader may already be partially consumed after a failure.
func (b *RetryBehavior) WriteFile(ctx context.Context, path string, r io.Reader, progress ProgressFunc) error {
	return b.inner.WriteFile(ctx, path, r, progress)
}

// DeleteFile removes the file at path, retrying transient failures.
func (b *RetryBehavior) DeleteFile(ctx context.Context, path string) error {
	return b.retry(func() error {
		return b.inner.DeleteFile(ctx, path)
	})
}

// Checksum returns the file's checksum, retrying transient failures.
func (b *RetryBehavior) Checksum(ctx context.Context, path string) (string, error) {
	var sum string

	err := b.retry(func() error {
		var innerErr error
		sum, innerErr = b.inner.Checksum(ctx, path)

		return innerErr
	})

	return sum, err
}

// Metadata returns the metadata for path, retrying transient failures.
func (b *RetryBehavior) Metadata(ctx context.Context, path string) (*FileMetadata, error) {
	var md *FileMetadata

	err := b.retry(func() error {
		var innerErr error
		md, innerErr = b.inner.Metadata(ctx, path)

		return innerErr
	})

	return md, err
}

// SetMetadata replaces the attributes for path, retrying transient failures.
func (b *RetryBehavior) SetMetadata(ctx context.Context, path string, md *FileMetadata) error {
	return b.retry(func() error {
		return b.inner.SetMetadata(ctx, path, md)
	})
}

// UpdateMetadata transforms the metadata for path. Not retried: the
// transform is not guaranteed idempotent.
func (b *RetryBehavior) UpdateMetadata(ctx context.Context, path string, update func(*FileMetadata)) (*FileMetadata, error) {
	return b.inner.UpdateMetadata(ctx, path, update)
}

// List returns a page of files under path, retrying transient failures.
func (b *RetryBehavior) List(ctx context.Context, path, pattern string, recursive bool, token string) (*FileList, error) {
	var list *FileList

	err := b.retry(func() error {
		var innerErr error
		list, innerErr = b.inner.List(ctx, path, pattern, recursive, token)

		return innerErr
	})

	return list, err
}

// DirectoryExists reports whether a directory exists at path.
func (b *RetryBehavior) DirectoryExists(ctx context.Context, path string) (bool, error) {
	var exists bool

	err := b.retry(func() error {
		var innerErr error
		exists, innerErr = b.inner.DirectoryExists(ctx, path)

		return innerErr
	})

	return exists, err
}

// CreateDirectory creates the directory at path, retrying transient failures.
func (b *RetryBehavior) CreateDirectory(ctx context.Context, path string) error {
	return b.retry(func() error {
		return b.inner.CreateDirectory(ctx, path)
	})
}

// DeleteDirectory removes the directory at path, retrying transient failures.
func (b *RetryBehavior) DeleteDirectory(ctx context.Context, path string, recursive bool) error {
	return b.retry(func() error {
		return b.inner.DeleteDirectory(ctx, path, recursive)
	})
}

// ListDirectories returns directory paths under path, retrying transient failures.
func (b *RetryBehavior) ListDirectories(ctx context.Context, path, pattern string, recursive bool) ([]string, error) {
	var dirs []string

	err := b.retry(func() error {
		var innerErr error
		dirs, innerErr = b.inner.ListDirectories(ctx, path, pattern, recursive)

		return innerErr
	})

	return dirs, err
}

// CheckHealth verifies the backend is reachable, retrying transient failures.
func (b *RetryBehavior) CheckHealth(ctx context.Context) error {
	return b.retry(func() error {
		return b.inner.CheckHealth(ctx)
	})
}
