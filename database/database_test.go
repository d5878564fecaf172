package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuringFantasy/simple-dedupe/duplicates"
	"github.com/TuringFantasy/simple-dedupe/types"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDatabase(filepath.Join(t.TempDir(), "dedupe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitDatabase_IsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedupe.db")

	db, err := InitDatabase(path)
	require.NoError(t, err)
	require.NoError(t, NewImageRepository(db).UpsertImage(context.Background(), types.ImageEntry{ID: "1", Path: "a.jpg"}))
	require.NoError(t, db.Close())

	db, err = InitDatabase(path)
	require.NoError(t, err)
	defer db.Close()

	entries, err := NewImageRepository(db).ListImages(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestInitDatabase_AddsMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	old, err := OpenDatabase(path)
	require.NoError(t, err)
	_, err = old.Exec(`CREATE TABLE images (seq INTEGER PRIMARY KEY AUTOINCREMENT, id TEXT NOT NULL UNIQUE, path TEXT NOT NULL)`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	db, err := InitDatabase(path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('images') WHERE name='added_at'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestImageRepository_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewImageRepository(newTestDB(t))

	require.NoError(t, repo.ImportImages(ctx, []types.ImageEntry{
		{ID: "30", Path: "/img/c.jpg"},
		{ID: "10", Path: "/img/a.jpg"},
		{ID: "20", Path: "/img/b.jpg"},
	}))
	require.NoError(t, repo.UpsertImage(ctx, types.ImageEntry{ID: "10", Path: "/img/a2.jpg"}))

	entries, err := repo.ListImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.ImageEntry{
		{ID: "30", Path: "/img/c.jpg"},
		{ID: "10", Path: "/img/a2.jpg"},
		{ID: "20", Path: "/img/b.jpg"},
	}, entries)
}

func TestImageRepository_EmptyListIsNotNil(t *testing.T) {
	entries, err := NewImageRepository(newTestDB(t)).ListImages(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestIndexRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewIndexRepository(db)

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, duplicates.ErrNoStoredIndex)

	builtAt := time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)
	table := types.MatchTable{
		{ID: "1", DuplicateID: "2", MatchIndex: 5},
		{ID: "2", DuplicateID: "1", MatchIndex: 0.4},
	}
	require.NoError(t, repo.Save(ctx, &duplicates.StoredIndex{
		Table: table,
		Meta:  duplicates.IndexMeta{Fingerprint: "fp", BuildID: "b-1", BuiltAt: builtAt, Images: 2},
	}))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, table, loaded.Table)
	assert.Equal(t, "fp", loaded.Meta.Fingerprint)
	assert.Equal(t, "b-1", loaded.Meta.BuildID)
	assert.True(t, builtAt.Equal(loaded.Meta.BuiltAt))
	assert.Equal(t, 2, loaded.Meta.Images)
	assert.Equal(t, 2, loaded.Meta.Rows)
	assert.Equal(t, duplicates.IndexMetaVersion, loaded.Meta.Version)

	stats, err := GetStats(db)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.IndexedPairs)
	assert.Equal(t, "b-1", stats.IndexBuildID)

	require.NoError(t, repo.Delete(ctx))
	require.NoError(t, repo.Delete(ctx))
	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, duplicates.ErrNoStoredIndex)
}

func TestIndexRepository_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewIndexRepository(newTestDB(t))

	require.NoError(t, repo.Save(ctx, &duplicates.StoredIndex{Table: types.MatchTable{{ID: "1", DuplicateID: "2", MatchIndex: 1}}}))
	require.NoError(t, repo.Save(ctx, &duplicates.StoredIndex{}))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Table)
	assert.NotNil(t, loaded.Table)
}

func TestIndexRepository_BacksCache(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	images := NewImageRepository(db)

	dir := t.TempDir()
	var entries []types.ImageEntry
	for _, id := range []string{"1", "2"} {
		path := filepath.Join(dir, id+".jpg")
		require.NoError(t, writeBytes(path, 2000))
		entries = append(entries, types.ImageEntry{ID: types.ID(id), Path: path})
	}
	require.NoError(t, images.ImportImages(ctx, entries))

	builder := &stubBuilder{table: types.MatchTable{{ID: "1", DuplicateID: "2", MatchIndex: 7}}}
	cache := duplicates.NewCache(images, builder, NewIndexRepository(db), duplicates.CacheOptions{Fingerprint: true})

	_, err := cache.LoadOrBuild(ctx)
	require.NoError(t, err)

	restarted := duplicates.NewCache(images, builder, NewIndexRepository(db), duplicates.CacheOptions{Fingerprint: true})
	table, err := restarted.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, builder.table, table)
	assert.Equal(t, 1, builder.builds)
}
