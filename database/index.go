package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TuringFantasy/simple-dedupe/duplicates"
	"github.com/TuringFantasy/simple-dedupe/types"
)

// IndexRepository persists the match table as one JSON row of the
// match_index table, keyed by duplicates.IndexName.
type IndexRepository struct {
	db   *sql.DB
	name string
}

var _ duplicates.IndexStore = (*IndexRepository)(nil)

// NewIndexRepository creates a repository on an initialised database
func NewIndexRepository(db *sql.DB) *IndexRepository {
	return &IndexRepository{db: db, name: duplicates.IndexName}
}

// Load returns the stored table or duplicates.ErrNoStoredIndex
func (r *IndexRepository) Load(ctx context.Context) (*duplicates.StoredIndex, error) {
	var (
		version                       int
		fingerprint, buildID, builtAt sql.NullString
		images                        sql.NullInt64
		payload                       string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT version, fingerprint, build_id, built_at, images, payload
		FROM match_index WHERE name = ?
	`, r.name).Scan(&version, &fingerprint, &buildID, &builtAt, &images, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, duplicates.ErrNoStoredIndex
	}
	if err != nil {
		return nil, fmt.Errorf("reading match index: %w", err)
	}

	var table types.MatchTable
	if err := json.Unmarshal([]byte(payload), &table); err != nil {
		return nil, fmt.Errorf("decoding match index: %w", err)
	}
	if table == nil {
		table = types.MatchTable{}
	}

	meta := duplicates.IndexMeta{
		Version:     version,
		Fingerprint: fingerprint.String,
		BuildID:     buildID.String,
		Images:      int(images.Int64),
		Rows:        len(table),
	}
	if builtAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, builtAt.String); err == nil {
			meta.BuiltAt = t
		}
	}

	return &duplicates.StoredIndex{Table: table, Meta: meta}, nil
}

// Save replaces the stored table in a single statement
func (r *IndexRepository) Save(ctx context.Context, index *duplicates.StoredIndex) error {
	table := index.Table
	if table == nil {
		table = types.MatchTable{}
	}

	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encoding match index: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO match_index (name, version, fingerprint, build_id, built_at, images, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.name,
		duplicates.IndexMetaVersion,
		index.Meta.Fingerprint,
		index.Meta.BuildID,
		index.Meta.BuiltAt.UTC().Format(time.RFC3339Nano),
		index.Meta.Images,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("cannot store match index: %w", err)
	}
	return nil
}

// Delete removes the stored table; deleting nothing is not an error
func (r *IndexRepository) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM match_index WHERE name = ?", r.name); err != nil {
		return fmt.Errorf("cannot delete match index: %w", err)
	}
	return nil
}
