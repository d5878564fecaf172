package database

import (
	"database/sql"
	"fmt"

	"github.com/TuringFantasy/simple-dedupe/duplicates"
	"github.com/TuringFantasy/simple-dedupe/logging"

	_ "github.com/mattn/go-sqlite3"
)

// InitDatabase opens dbPath, creating the schema when it is missing
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := OpenDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS images (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		path TEXT NOT NULL,
		added_at TEXT
	);
	CREATE TABLE IF NOT EXISTS match_index (
		name TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		fingerprint TEXT,
		build_id TEXT,
		built_at TEXT,
		images INTEGER,
		payload TEXT NOT NULL
	);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}

	// Databases written before images carried a timestamp get the column added
	if err := ensureColumn(db, "images", "added_at", "TEXT"); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenDatabase opens an existing database connection
func OpenDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return db, nil
}

func ensureColumn(db *sql.DB, table, column, decl string) error {
	var hasColumn bool
	err := db.QueryRow(
		fmt.Sprintf("SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name=?", table), column,
	).Scan(&hasColumn)
	if err != nil {
		return fmt.Errorf("error checking for %s column: %w", column, err)
	}

	if hasColumn {
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", table, column, decl)); err != nil {
		return fmt.Errorf("error adding %s column: %w", column, err)
	}
	logging.DebugLog("Added '%s' column to %s table", column, table)
	return nil
}

// Stats summarises the database contents
type Stats struct {
	TotalImages  int
	IndexedPairs int
	IndexBuildID string
}

// GetStats retrieves row counts and the build id of the stored match index
func GetStats(db *sql.DB) (*Stats, error) {
	var stats Stats

	if err := db.QueryRow("SELECT COUNT(*) FROM images").Scan(&stats.TotalImages); err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
	}

	var buildID sql.NullString
	var payloadLen sql.NullInt64
	err := db.QueryRow(
		"SELECT build_id, json_array_length(payload) FROM match_index WHERE name = ?", duplicates.IndexName,
	).Scan(&buildID, &payloadLen)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("failed to read match index: %w", err)
	default:
		stats.IndexBuildID = buildID.String
		stats.IndexedPairs = int(payloadLen.Int64)
	}

	return &stats, nil
}
