package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bilbasen-scraper/models"
)

const (
	DefaultOutputDir  = "data"
	DefaultLatestFile = "latest_cars.json"

	filenameLayout = "20060102_150405"
)

// JSONWriter writes snapshots as indented JSON files under dir. When latest
// is set, the same document is also written to dir/latest.
type JSONWriter struct {
	dir    string
	latest string
}

var _ SnapshotWriter = (*JSONWriter)(nil)

func NewJSONWriter(dir, latest string) *JSONWriter {
	if dir == "" {
		dir = DefaultOutputDir
	}
	return &JSONWriter{dir: dir, latest: latest}
}

// DefaultFilename is bilbasen_cars_YYYYMMDD_HHMMSS.json for the snapshot time.
func DefaultFilename(snap *models.Snapshot) string {
	return fmt.Sprintf("bilbasen_cars_%s.json", snap.ScrapedAt.Format(filenameLayout))
}

// Write encodes snap and stores it. An empty filename gets DefaultFilename;
// absolute names bypass dir. Errors are *models.PersistenceError.
func (w *JSONWriter) Write(snap *models.Snapshot, filename string) (string, error) {
	if filename == "" {
		filename = DefaultFilename(snap)
	}
	path := filename
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.dir, filename)
	}

	data, err := encodeSnapshot(snap)
	if err != nil {
		return "", &models.PersistenceError{Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", &models.PersistenceError{Path: path, Err: err}
	}

	if w.latest != "" {
		latest := filepath.Join(w.dir, w.latest)
		if filepath.Clean(latest) != filepath.Clean(path) {
			if err := writeFileAtomic(latest, data); err != nil {
				return path, &models.PersistenceError{Path: latest, Err: err}
			}
		}
	}
	return path, nil
}

func encodeSnapshot(snap *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes through a temp file in the target directory so
// readers never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
