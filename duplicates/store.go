package duplicates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/TuringFantasy/simple-dedupe/types"
)

// IndexName is the well-known name the match table is persisted under
const IndexName = "matches"

// IndexMetaVersion is bumped when the meta layout changes
const IndexMetaVersion = 1

// IndexMeta describes a persisted match table
type IndexMeta struct {
	Version     int       `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	BuildID     string    `json:"build_id"`
	BuiltAt     time.Time `json:"built_at"`
	Images      int       `json:"images"`
	Rows        int       `json:"rows"`
}

// StoredIndex is a match table together with its meta
type StoredIndex struct {
	Table types.MatchTable
	Meta  IndexMeta
}

// IndexStore persists one match table under a fixed name.
// Load returns ErrNoStoredIndex when nothing has been saved.
type IndexStore interface {
	Load(ctx context.Context) (*StoredIndex, error)
	Save(ctx context.Context, index *StoredIndex) error
	Delete(ctx context.Context) error
}

// FileStore keeps the match table as a JSON array at a fixed path, with its
// meta in a sidecar "<path>.meta" file. The table file's presence is the
// cache hit signal, so it is written last.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) metaPath() string {
	return s.path + ".meta"
}

// Load reads the table and, if present, its meta. A table without meta loads
// with an empty fingerprint.
func (s *FileStore) Load(ctx context.Context) (*StoredIndex, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoStoredIndex
	}
	if err != nil {
		return nil, fmt.Errorf("reading match index %s: %w", s.path, err)
	}

	var table types.MatchTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decoding match index %s: %w", s.path, err)
	}
	if table == nil {
		table = types.MatchTable{}
	}

	stored := &StoredIndex{Table: table}

	metaData, err := os.ReadFile(s.metaPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		stored.Meta = IndexMeta{Rows: len(table)}
	case err != nil:
		return nil, fmt.Errorf("reading match index meta: %w", err)
	default:
		if err := json.Unmarshal(metaData, &stored.Meta); err != nil {
			return nil, fmt.Errorf("decoding match index meta: %w", err)
		}
	}

	return stored, nil
}

// Save writes meta then table, each through a temp file and rename
func (s *FileStore) Save(ctx context.Context, index *StoredIndex) error {
	table := index.Table
	if table == nil {
		table = types.MatchTable{}
	}

	meta := index.Meta
	meta.Version = IndexMetaVersion
	meta.Rows = len(table)

	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding match index meta: %w", err)
	}
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encoding match index: %w", err)
	}

	if err := writeFileAtomic(s.metaPath(), metaData); err != nil {
		return fmt.Errorf("writing match index meta: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("writing match index: %w", err)
	}
	return nil
}

// Delete removes the table and its meta; missing files are not an error
func (s *FileStore) Delete(ctx context.Context) error {
	for _, p := range []string{s.path, s.metaPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}
