// Package fileutil provides small streaming file helpers shared by storage
// and the worker completion endpoints.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SaveStream writes r to dst, creating parent directories as needed, and
// returns the number of bytes written. A failed write removes dst.
func SaveStream(r io.Reader, dst string, mode os.FileMode) (int64, error) {
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, r)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	return written, nil
}

// CopyFile streams src to dst using SaveStream with default permissions.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = SaveStream(in, dst, 0o644)
	return err
}
