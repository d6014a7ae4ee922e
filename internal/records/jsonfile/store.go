// Package jsonfile persists DayRecords as indented JSON files.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
)

// LatestKey names the alias overwritten on every save.
const LatestKey = "latest"

// Store writes <dir>/<date>.json and <dir>/latest.json.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("records directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create records directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Encode renders record the way it is stored: two-space indent, non-ASCII
// and HTML characters left as-is.
func Encode(record bing.DayRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}

// Save implements bing.RecordStore. Failures wrap bing.ErrPersistence.
func (s *Store) Save(_ context.Context, record bing.DayRecord) error {
	if record.Date == "" {
		return fmt.Errorf("%w: record has no date", bing.ErrPersistence)
	}
	data, err := Encode(record)
	if err != nil {
		return fmt.Errorf("%w: %w", bing.ErrPersistence, err)
	}
	for _, key := range []string{record.Date, LatestKey} {
		if err := s.write(key, data); err != nil {
			return fmt.Errorf("%w: %w", bing.ErrPersistence, err)
		}
	}
	return nil
}

// Load reads the record stored under key (a date or LatestKey).
func (s *Store) Load(key string) (bing.DayRecord, error) {
	var record bing.DayRecord
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return record, fmt.Errorf("read record %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("decode record %s: %w", key, err)
	}
	return record, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) write(key string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".record-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", key, err)
	}
	// #nosec G302 -- records are published alongside the images.
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}
