package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TuringFantasy/simple-dedupe/types"
)

// ImageRepository is the image directory kept in the images table.
// Listing order is insertion order.
type ImageRepository struct {
	db *sql.DB
}

// NewImageRepository creates a repository on an initialised database
func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// ListImages returns every image in insertion order
func (r *ImageRepository) ListImages(ctx context.Context) ([]types.ImageEntry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, path FROM images ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	entries := []types.ImageEntry{}
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("scanning image row: %w", err)
		}
		entries = append(entries, types.ImageEntry{ID: types.ID(id), Path: path})
	}
	return entries, rows.Err()
}

// UpsertImage stores entry, replacing the path of an existing id in place
func (r *ImageRepository) UpsertImage(ctx context.Context, entry types.ImageEntry) error {
	now := time.Now().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO images (id, path, added_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET path = excluded.path
	`, entry.ID.String(), entry.Path, now)
	if err != nil {
		return fmt.Errorf("cannot store image %s: %w", entry.ID, err)
	}
	return nil
}

// ImportImages upserts all entries in one transaction
func (r *ImageRepository) ImportImages(ctx context.Context, entries []types.ImageEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO images (id, path, added_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET path = excluded.path
	`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339)
	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, entry.ID.String(), entry.Path, now); err != nil {
			return fmt.Errorf("cannot store image %s: %w", entry.ID, err)
		}
	}

	return tx.Commit()
}
