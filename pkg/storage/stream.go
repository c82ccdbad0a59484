package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// copyStream copies src to dst through a fixed-size buffer, checking the
// context between chunks and reporting progress. totalBytes is 0 when the
// total is unknown.
func copyStream(ctx context.Context, dst io.Writer, src io.Reader, totalBytes int64, path string, progress ProgressFunc) (int64, error) {
	var written int64

	buf := make([]byte, BufferSize)

	for {
		select {
		case <-ctx.Done():
			return written, fmt.Errorf("%w: copy of %s interrupted: %w", ErrCancelled, path, ctx.Err())
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[0:nr])
			if werr != nil {
				return written, fmt.Errorf("failed to write to %s: %w", path, werr)
			}

			if nr != nw {
				return written, fmt.Errorf("short write to %s: %w", path, io.ErrShortWrite)
			}

			written += int64(nw)

			if progress != nil {
				progress(written, totalBytes, path)
			}
		}

		if errors.Is(err, io.EOF) {
			return written, nil
		}

		if err != nil {
			return written, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
}

// hashReader computes the SHA-256 hex digest of everything in r.
func hashReader(r io.Reader) (string, error) {
	hash := sha256.New()

	_, err := io.Copy(hash, r)
	if err != nil {
		return "", fmt.Errorf("failed to read for hashing: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HashBytes computes the SHA-256 hex digest of b.
// Useful for verifying Checksum results in callers and tests.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// progressReader wraps a reader and reports cumulative bytes read.
type progressReader struct {
	r        io.ReadCloser
	path     string
	total    int64
	read     int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.progress != nil {
			p.progress(p.read, p.total, p.path)
		}
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("failed to read %s: %w", p.path, err)
	}

	return n, err //nolint:wrapcheck // io.EOF must pass through unwrapped
}

func (p *progressReader) Close() error {
	err := p.r.Close()
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", p.path, err)
	}

	return nil
}
