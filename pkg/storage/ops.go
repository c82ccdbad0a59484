package storage

import (
	"context"
	"fmt"
)

// FilePair names a source and destination path for copy and move batches.
type FilePair struct {
	Source      string
	Destination string
}

// CopyFile copies a file within a single provider.
func CopyFile(ctx context.Context, p Provider, src, dst string, progress ProgressFunc) error {
	if p == nil {
		return fmt.Errorf("%w: provider is nil", ErrInvalidArgument)
	}

	reader, err := p.ReadFile(ctx, src, nil)
	if err != nil {
		return err
	}

	defer func() {
		_ = reader.Close()
	}()

	return p.WriteFile(ctx, dst, reader, progress)
}

// MoveFile copies a file within a provider and removes the source.
func MoveFile(ctx context.Context, p Provider, src, dst string, progress ProgressFunc) error {
	err := CopyFile(ctx, p, src, dst, progress)
	if err != nil {
		return err
	}

	return p.DeleteFile(ctx, src)
}

// RenameFile is MoveFile without progress, for same-directory renames.
func RenameFile(ctx context.Context, p Provider, src, dst string) error {
	return MoveFile(ctx, p, src, dst, nil)
}

// CopyFiles copies each pair independently. Pairs that fail do not stop
// the batch and already copied pairs are not rolled back; the returned
// BatchResult carries the success ratio.
func CopyFiles(ctx context.Context, p Provider, pairs []FilePair, progress ProgressFunc) (*BatchResult, error) {
	result := &BatchResult{}

	for _, pair := range pairs {
		err := CopyFile(ctx, p, pair.Source, pair.Destination, progress)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("copy %s -> %s: %w", pair.Source, pair.Destination, err))

			continue
		}

		result.Succeeded++
	}

	return result, result.Err()
}

// MoveFiles moves each pair independently, reporting partial failure.
func MoveFiles(ctx context.Context, p Provider, pairs []FilePair, progress ProgressFunc) (*BatchResult, error) {
	result := &BatchResult{}

	for _, pair := range pairs {
		err := MoveFile(ctx, p, pair.Source, pair.Destination, progress)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("move %s -> %s: %w", pair.Source, pair.Destination, err))

			continue
		}

		result.Succeeded++
	}

	return result, result.Err()
}

// DeleteFiles deletes each path independently, reporting partial failure.
func DeleteFiles(ctx context.Context, p Provider, paths []string) (*BatchResult, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is nil", ErrInvalidArgument)
	}

	result := &BatchResult{}

	for _, path := range paths {
		err := p.DeleteFile(ctx, path)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("delete %s: %w", path, err))

			continue
		}

		result.Succeeded++
	}

	return result, result.Err()
}
