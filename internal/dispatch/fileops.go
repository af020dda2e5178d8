package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileDigest returns the hex sha256 of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// existingDigest returns the digest of path, or "" when it does not exist.
func existingDigest(path string) (string, error) {
	digest, err := FileDigest(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	return digest, err
}

// ErrDigestMismatch is returned when written content does not hash to the
// expected digest.
var ErrDigestMismatch = errors.New("content digest mismatch")

// copyDurable copies src to dst through a temporary file in dst's directory.
// The data is synced before the rename, and dst is re-hashed afterwards.
// dst is replaced if it exists.
func copyDurable(src, dst, wantDigest string) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	tmpPath := filepath.Join(dir, fmt.Sprintf(".paperflow-%s.tmp", uuid.New().String()))
	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmpPath) }

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		_ = out.Close()
		cleanup()
		return fmt.Errorf("failed to copy: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		cleanup()
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != wantDigest {
		cleanup()
		return fmt.Errorf("%w: source changed while copying", ErrDigestMismatch)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return fmt.Errorf("failed to install file: %w", err)
	}
	syncDir(dir)

	return verify(dst, wantDigest)
}

// renameVerified renames src to dst on the same filesystem and checks the result.
func renameVerified(src, dst, wantDigest string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}
	syncDir(filepath.Dir(dst))
	return verify(dst, wantDigest)
}

func verify(path, wantDigest string) error {
	got, err := FileDigest(path)
	if err != nil {
		return fmt.Errorf("failed to verify %s: %w", path, err)
	}
	if got != wantDigest {
		return fmt.Errorf("%w: %s", ErrDigestMismatch, path)
	}
	return nil
}

// syncDir flushes directory entries so a rename survives a crash. Some
// platforms cannot sync directories; that is not an error.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
