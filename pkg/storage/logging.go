package storage

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// LoggingBehavior wraps a provider with structured start/end/error log
// entries around every call. Results pass through unaltered.
type LoggingBehavior struct {
	inner  Provider
	logger *zap.Logger
}

// WithLogging returns a BehaviorFunc that wraps providers with logging.
// A nil logger logs nothing.
func WithLogging(logger *zap.Logger) BehaviorFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(inner Provider) Behavior {
		return &LoggingBehavior{inner: inner, logger: logger}
	}
}

// InnerProvider returns the wrapped provider.
func (b *LoggingBehavior) InnerProvider() Provider {
	return b.inner
}

// Name identifies the underlying provider instance.
func (b *LoggingBehavior) Name() string {
	return b.inner.Name()
}

// log wraps one call with start/end/error entries.
func (b *LoggingBehavior) log(op, path string, call func() error) error {
	start := time.Now()
	b.logger.Debug("storage operation starting",
		zap.String("provider", b.inner.Name()),
		zap.String("op", op),
		zap.String("path", path))

	err := call()

	fields := []zap.Field{
		zap.String("provider", b.inner.Name()),
		zap.String("op", op),
		zap.String("path", path),
		zap.Duration("took", time.Since(start)),
	}

	if err != nil {
		b.logger.Warn("storage operation failed", append(fields, zap.Error(err))...)
		return err
	}

	b.logger.Debug("storage operation finished", fields...)

	return nil
}

// Exists reports whether a file exists at path.
func (b *LoggingBehavior) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool

	err := b.log("exists", path, func() error {
		var innerErr error
		exists, innerErr = b.inner.Exists(ctx, path)

		return innerErr
	})

	return exists, err
}

// ReadFile opens the file at path for reading.
func (b *LoggingBehavior) ReadFile(ctx context.Context, path string, progress ProgressFunc) (io.ReadCloser, error) {
	var reader io.ReadCloser

	err := b.log("read", path, func() error {
		var innerErr error
		reader, innerErr = b.inner.ReadFile(ctx, path, progress)

		return innerErr
	})

	return reader, err
}

// WriteFile writes the contents of r to path.
func (b *LoggingBehavior) WriteFile(ctx context.Context, path string, r io.Reader, progress ProgressFunc) error {
	return b.log("write", path, func() error {
		return b.inner.WriteFile(ctx, path, r, progress)
	})
}

// DeleteFile removes the file at path.
func (b *LoggingBehavior) DeleteFile(ctx context.Context, path string) error {
	return b.log("delete", path, func() error {
		return b.inner.DeleteFile(ctx, path)
	})
}

// Checksum returns the SHA-256 hex digest of the file contents.
func (b *LoggingBehavior) Checksum(ctx context.Context, path string) (string, error) {
	var sum string

	err := b.log("checksum", path, func() error {
		var innerErr error
		sum, innerErr = b.inner.Checksum(ctx, path)

		return innerErr
	})

	return sum, err
}

// Metadata returns the stored metadata for path.
func (b *LoggingBehavior) Metadata(ctx context.Context, path string) (*FileMetadata, error) {
	var md *FileMetadata

	err := b.log("metadata", path, func() error {
		var innerErr error
		md, innerErr = b.inner.Metadata(ctx, path)

		return innerErr
	})

	return md, err
}

// SetMetadata replaces the custom attributes for path.
func (b *LoggingBehavior) SetMetadata(ctx context.Context, path string, md *FileMetadata) error {
	return b.log("set-metadata", path, func() error {
		return b.inner.SetMetadata(ctx, path, md)
	})
}

// UpdateMetadata applies a read-modify-write transform to the metadata.
func (b *LoggingBehavior) UpdateMetadata(ctx context.Context, path string, update func(*FileMetadata)) (*FileMetadata, error) {
	var md *FileMetadata

	err := b.log("update-metadata", path, func() error {
		var innerErr error
		md, innerErr = b.inner.UpdateMetadata(ctx, path, update)

		return innerErr
	})

	return md, err
}

// List returns a page of files under path.
func (b *LoggingBehavior) List(ctx context.Context, path, pattern string, recursive bool, token string) (*FileList, error) {
	var list *FileList

	err := b.log("list", path, func() error {
		var innerErr error
		list, innerErr = b.inner.List(ctx, path, pattern, recursive, token)

		return innerErr
	})

	return list, err
}

// DirectoryExists reports whether a directory exists at path.
func (b *LoggingBehavior) DirectoryExists(ctx context.Context, path string) (bool, error) {
	var exists bool

	err := b.log("dir-exists", path, func() error {
		var innerErr error
		exists, innerErr = b.inner.DirectoryExists(ctx, path)

		return innerErr
	})

	return exists, err
}

// CreateDirectory creates the directory at path and any parents.
func (b *LoggingBehavior) CreateDirectory(ctx context.Context, path string) error {
	return b.log("create-dir", path, func() error {
		return b.inner.CreateDirectory(ctx, path)
	})
}

// DeleteDirectory removes the directory at path.
func (b *LoggingBehavior) DeleteDirectory(ctx context.Context, path string, recursive bool) error {
	return b.log("delete-dir", path, func() error {
		return b.inner.DeleteDirectory(ctx, path, recursive)
	})
}

// ListDirectories returns directory paths under path.
func (b *LoggingBehavior) ListDirectories(ctx context.Context, path, pattern string, recursive bool) ([]string, error) {
	var dirs []string

	err := b.log("list-dirs", path, func() error {
		var innerErr error
		dirs, innerErr = b.inner.ListDirectories(ctx, path, pattern, recursive)

		return innerErr
	})

	return dirs, err
}

// CheckHealth verifies the backend is reachable.
func (b *LoggingBehavior) CheckHealth(ctx context.Context) error {
	return b.log("health", "", func() error {
		return b.inner.CheckHealth(ctx)
	})
}
