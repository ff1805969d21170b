package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/ansuz/internal/models"
)

// FileStore implements Persister on a single JSON file holding an array of
// records (array order = insertion order). Each Put rewrites the file
// atomically: tmp file, fsync, rename.
type FileStore struct {
	path  string
	recs  []models.Record
	index map[string]int // title to position in recs
}

// NewFileStore creates a file-backed persister at path. The file does not
// need to exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, index: make(map[string]int)}
}

// Load reads the JSON array. A missing file yields an empty catalog; a
// corrupt file is an error for the caller to log.
func (f *FileStore) Load() ([]models.Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: read %s: %w", f.path, err)
	}
	var recs []models.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", f.path, err)
	}
	f.recs = recs
	for i, r := range recs {
		f.index[r.Title] = i
	}
	return recs, nil
}

// Put updates the in-process copy and rewrites the whole file.
func (f *FileStore) Put(rec models.Record) error {
	if i, ok := f.index[rec.Title]; ok {
		f.recs[i] = rec
	} else {
		f.index[rec.Title] = len(f.recs)
		f.recs = append(f.recs, rec)
	}
	return f.flush()
}

// Close is a no-op; every Put already leaves the file consistent.
func (f *FileStore) Close() error { return nil }

func (f *FileStore) flush() error {
	data, err := json.MarshalIndent(f.recs, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalog: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ansuz-tmp-*")
	if err != nil {
		return fmt.Errorf("catalog: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("catalog: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("catalog: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalog: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("catalog: rename: %w", err)
	}
	success = true
	return nil
}
