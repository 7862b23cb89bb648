package file

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// ReplaceFileWithReader writes the reader contents to a temp file in the destination directory and
// renames it over the final path, so that other processes never observe a partially written file.
func ReplaceFileWithReader(fs afero.Fs, path string, reader io.Reader) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unable to create directory for %s: %w", path, err)
	}

	tempFile, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+"-")
	if err != nil {
		return fmt.Errorf("unable to create temp file for %s: %w", path, err)
	}
	tempPath := tempFile.Name()

	cleanup := func() {
		_ = tempFile.Close()
		_ = fs.Remove(tempPath)
	}

	if _, err := io.Copy(tempFile, reader); err != nil {
		cleanup()
		return fmt.Errorf("unable to write temp file for %s: %w", path, err)
	}

	if err := tempFile.Close(); err != nil {
		cleanup()
		return fmt.Errorf("unable to close temp file for %s: %w", path, err)
	}

	if err := fs.Rename(tempPath, path); err != nil {
		cleanup()
		return fmt.Errorf("unable to move %s into place: %w", tempPath, err)
	}

	return nil
}

// ReplaceFileWithBytes is a convenience wrapper around ReplaceFileWithReader for in-memory payloads.
func ReplaceFileWithBytes(fs afero.Fs, path string, contents []byte) error {
	return ReplaceFileWithReader(fs, path, bytes.NewReader(contents))
}
