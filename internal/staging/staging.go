// Package staging writes snapshot artifacts under a hidden staging tree and
// moves a run into its final location only once every file is complete.
package staging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type Manager struct {
	baseDir     string
	stagingRoot string
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:     baseDir,
		stagingRoot: filepath.Join(baseDir, ".staging"),
	}
}

func (m *Manager) FinalDir() string {
	return m.baseDir
}

func (m *Manager) StagingRoot() string {
	return m.stagingRoot
}

func (m *Manager) StagingDir(run string) string {
	return filepath.Join(m.stagingRoot, run)
}

func (m *Manager) PrepareStaging(run string) error {
	return os.MkdirAll(m.StagingDir(run), 0750)
}

// WriteFile streams write into destPath through a temp file and renames it
// into place, so readers never observe a partial file.
func (m *Manager) WriteFile(destPath string, write func(io.Writer) error) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		return 0, fmt.Errorf("creating directories: %w", err)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	cw := &countingWriter{w: f}
	err = write(cw)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("writing file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}

	return cw.n, nil
}

// WriteBytes is WriteFile for an in-memory payload.
func (m *Manager) WriteBytes(destPath string, data []byte) (int64, error) {
	return m.WriteFile(destPath, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteJSON encodes v as indented JSON into destPath.
func (m *Manager) WriteJSON(destPath string, v any) (int64, error) {
	return m.WriteFile(destPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// CommitStaging moves every file of a staged run into the final tree.
func (m *Manager) CommitStaging(run string) error {
	stagingDir := m.StagingDir(run)
	finalDir := filepath.Join(m.baseDir, run)

	return filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(finalDir, relPath)
		if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
			return err
		}

		return os.Rename(path, destPath)
	})
}

func (m *Manager) CleanupStaging(run string) error {
	return os.RemoveAll(m.StagingDir(run))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
