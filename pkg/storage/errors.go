package storage

import (
	"context"
	"errors"
	"fmt"
)

// Exported variables.
var (
	// ErrFileNotFound indicates the requested file does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrDirectoryNotFound indicates the requested directory does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrCancelled indicates the operation was stopped by cancellation or timeout.
	ErrCancelled = errors.New("operation cancelled")
	// ErrInvalidArgument indicates a caller-supplied argument failed validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPartialFailure indicates a batch operation where some items failed.
	// The error message carries the success ratio; succeeded items stay committed.
	ErrPartialFailure = errors.New("partial failure")
	// ErrProviderUnavailable indicates the backing store cannot be reached.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// IsNotFound reports whether err represents a missing file or directory.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrDirectoryNotFound)
}

// IsTransient reports whether err is worth retrying.
// Not-found, validation and cancellation errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if IsNotFound(err) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return true
}

// checkContext converts a cancelled or expired context into ErrCancelled.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	default:
		return nil
	}
}

// BatchResult reports the outcome of a batch operation.
// Items are processed independently; succeeded items are not rolled back
// when later items fail.
type BatchResult struct {
	Succeeded int
	Failed    int
	Errors    []error
}

// Total returns the number of items processed.
func (r *BatchResult) Total() int {
	return r.Succeeded + r.Failed
}

// Ratio returns the success ratio formatted as "N/M".
func (r *BatchResult) Ratio() string {
	return fmt.Sprintf("%d/%d", r.Succeeded, r.Total())
}

// Err returns nil when every item succeeded, otherwise an error wrapping
// ErrPartialFailure that states the success ratio.
func (r *BatchResult) Err() error {
	if r.Failed == 0 {
		return nil
	}

	return fmt.Errorf("%w: %s succeeded", ErrPartialFailure, r.Ratio())
}
