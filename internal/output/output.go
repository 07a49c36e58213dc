// Package output writes dump artifacts through an afero filesystem.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteFile creates path (and its parent directories) and fills it with
// what write produces. The file is truncated first.
func WriteFile(fs afero.Fs, path string, write func(w io.Writer) error) (err error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("output: close %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("output: flush %s: %w", path, err)
	}
	return nil
}

// WriteText writes text to path.
func WriteText(fs afero.Fs, path, text string) error {
	return WriteFile(fs, path, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

// WriteJSON writes v as indented JSON.
func WriteJSON(fs afero.Fs, path string, v any) error {
	return WriteFile(fs, path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// OpenLog opens path for appending, creating it if needed. Used for
// Generator.log, which accumulates across the run.
func OpenLog(fs afero.Fs, path string) (afero.File, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("output: open %s: %w", path, err)
	}
	return f, nil
}
