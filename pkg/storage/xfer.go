package storage

import (
	"context"
	"fmt"
)

// DeepCopyOptions configures a recursive cross-provider structure copy.
type DeepCopyOptions struct {
	// Pattern optionally filters copied files by a doublestar glob
	// matched against the path relative to the source root.
	Pattern string
	// StructureOnly recreates the directory tree without copying any
	// file contents.
	StructureOnly bool
	// Progress receives per-file byte progress. May be nil.
	Progress ProgressFunc
}

// CopyAcross streams a file from one provider to another through an
// intermediate buffer. src and dst may be different backends.
func CopyAcross(ctx context.Context, src Provider, srcPath string, dst Provider, dstPath string, progress ProgressFunc) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: provider is nil", ErrInvalidArgument)
	}

	reader, err := src.ReadFile(ctx, srcPath, progress)
	if err != nil {
		return err
	}

	defer func() {
		_ = reader.Close()
	}()

	return dst.WriteFile(ctx, dstPath, reader, nil)
}

// MoveAcross copies a file to another provider and removes the source.
func MoveAcross(ctx context.Context, src Provider, srcPath string, dst Provider, dstPath string, progress ProgressFunc) error {
	err := CopyAcross(ctx, src, srcPath, dst, dstPath, progress)
	if err != nil {
		return err
	}

	return src.DeleteFile(ctx, srcPath)
}

// CopyFilesAcross copies each pair independently between two providers.
// Partial failure is reported through the BatchResult; succeeded pairs
// stay committed.
func CopyFilesAcross(ctx context.Context, src, dst Provider, pairs []FilePair, progress ProgressFunc) (*BatchResult, error) {
	result := &BatchResult{}

	for _, pair := range pairs {
		err := CopyAcross(ctx, src, pair.Source, dst, pair.Destination, progress)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("copy %s -> %s: %w", pair.Source, pair.Destination, err))

			continue
		}

		result.Succeeded++
	}

	return result, result.Err()
}

// MoveFilesAcross moves each pair independently between two providers.
func MoveFilesAcross(ctx context.Context, src, dst Provider, pairs []FilePair, progress ProgressFunc) (*BatchResult, error) {
	result := &BatchResult{}

	for _, pair := range pairs {
		err := MoveAcross(ctx, src, pair.Source, dst, pair.Destination, progress)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("move %s -> %s: %w", pair.Source, pair.Destination, err))

			continue
		}

		result.Succeeded++
	}

	return result, result.Err()
}

// DeepCopy recreates the directory tree under srcRoot at dstRoot,
// directories first so empty directories survive, then copies files.
// Cancellation mid-walk returns ErrCancelled with partial work in place.
func DeepCopy(ctx context.Context, src Provider, srcRoot string, dst Provider, dstRoot string, opts DeepCopyOptions) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: provider is nil", ErrInvalidArgument)
	}

	srcDir, err := normalizeDir(srcRoot)
	if err != nil {
		return err
	}

	dstDir, err := normalizeDir(dstRoot)
	if err != nil {
		return err
	}

	exists, err := src.DirectoryExists(ctx, srcDir)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrDirectoryNotFound, srcRoot)
	}

	err = dst.CreateDirectory(ctx, dstDir)
	if err != nil {
		return err
	}

	// Recreate the full directory tree first, including empty directories.
	dirs, err := src.ListDirectories(ctx, srcDir, "", true)
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if err := checkContext(ctx); err != nil {
			return fmt.Errorf("deep copy interrupted while creating directories: %w", err)
		}

		err = dst.CreateDirectory(ctx, joinRel(dstDir, relativeTo(srcDir, dir)))
		if err != nil {
			return err
		}
	}

	if opts.StructureOnly {
		return nil
	}

	token := ""

	for {
		page, err := src.List(ctx, srcDir, opts.Pattern, true, token)
		if err != nil {
			return err
		}

		for _, file := range page.Files {
			if err := checkContext(ctx); err != nil {
				return fmt.Errorf("deep copy interrupted while copying files: %w", err)
			}

			rel := relativeTo(srcDir, file.Path)

			err = CopyAcross(ctx, src, file.Path, dst, joinRel(dstDir, rel), opts.Progress)
			if err != nil {
				return err
			}
		}

		if page.NextToken == "" {
			return nil
		}

		token = page.NextToken
	}
}
