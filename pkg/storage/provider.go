// Package storage provides a capability interface over file storage backends
// (in-memory, local disk, SFTP shares) together with composable behavior
// decorators, a named provider registry, and cross-provider transfer helpers.
package storage

import (
	"context"
	"io"
)

// Exported constants.
const (
	// BufferSize is the size of the buffer used for streaming copies (32KB).
	BufferSize = 32 * 1024
	// DefaultPageSize is the default number of entries returned per List page.
	DefaultPageSize = 1000
)

// ProgressFunc is called during streaming operations to report progress.
// totalBytes is 0 when the total is unknown.
type ProgressFunc func(bytesProcessed, totalBytes int64, path string)

// FileList is one page of a file listing.
// NextToken is empty when no further pages exist; pass it back to List
// to continue.
type FileList struct {
	Files     []*FileMetadata
	NextToken string
}

// Provider is the capability surface implemented by every storage backend.
// All operations accept a context for cancellation; expected conditions
// (missing file, missing directory) are reported through typed errors,
// never panics.
type Provider interface {
	// Name identifies the provider instance, used for logging and cache keys.
	Name() string

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// ReadFile opens the file at path for reading. The caller must close
	// the returned reader. progress may be nil.
	ReadFile(ctx context.Context, path string, progress ProgressFunc) (io.ReadCloser, error)

	// WriteFile writes the contents of r to path, creating parent
	// directories as needed. progress may be nil.
	WriteFile(ctx context.Context, path string, r io.Reader, progress ProgressFunc) error

	// DeleteFile removes the file at path.
	DeleteFile(ctx context.Context, path string) error

	// Checksum returns the SHA-256 hex digest of the file contents.
	Checksum(ctx context.Context, path string) (string, error)

	// Metadata returns the stored metadata for path.
	Metadata(ctx context.Context, path string) (*FileMetadata, error)

	// SetMetadata replaces the custom attributes for path.
	SetMetadata(ctx context.Context, path string, md *FileMetadata) error

	// UpdateMetadata applies a read-modify-write transform to the
	// metadata for path and returns the result.
	UpdateMetadata(ctx context.Context, path string, update func(*FileMetadata)) (*FileMetadata, error)

	// List returns a page of files under path, sorted by path.
	// pattern is a doublestar glob matched against the path relative to
	// the listed directory; empty matches everything. token continues a
	// previous listing.
	List(ctx context.Context, path, pattern string, recursive bool, token string) (*FileList, error)

	// DirectoryExists reports whether a directory exists at path.
	DirectoryExists(ctx context.Context, path string) (bool, error)

	// CreateDirectory creates the directory at path and any parents.
	CreateDirectory(ctx context.Context, path string) error

	// DeleteDirectory removes the directory at path. A non-empty
	// directory requires recursive=true.
	DeleteDirectory(ctx context.Context, path string, recursive bool) error

	// ListDirectories returns directory paths under path, sorted.
	ListDirectories(ctx context.Context, path, pattern string, recursive bool) ([]string, error)

	// CheckHealth verifies the backend is reachable and usable.
	CheckHealth(ctx context.Context) error
}
