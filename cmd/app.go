package cmd

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/TuringFantasy/simple-dedupe/config"
	"github.com/TuringFantasy/simple-dedupe/database"
	"github.com/TuringFantasy/simple-dedupe/directory"
	"github.com/TuringFantasy/simple-dedupe/duplicates"
	"github.com/TuringFantasy/simple-dedupe/imageprocessor"
	"github.com/TuringFantasy/simple-dedupe/logging"
)

// app holds the wired components shared by the subcommands
type app struct {
	cfg      *config.Config
	db       *sql.DB
	users    *directory.UserStore
	images   duplicates.ImageLister
	cache    *duplicates.Cache
	resolver *duplicates.Resolver
}

// newApp wires stores, adapters, builder and cache from cfg.
// onProgress may be nil.
func newApp(cfg *config.Config, onProgress func(stage string, done, total int)) (*app, error) {
	a := &app{
		cfg:      cfg,
		users:    directory.NewUserStore(cfg.Data.Users),
		resolver: duplicates.NewResolver(cfg.Duplicates.Threshold),
	}

	if cfg.UsesDatabase() {
		db, err := initDatabaseWithRetry(cfg.Data.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
	}

	switch cfg.Data.ImageSource {
	case config.SourceSQLite:
		a.images = database.NewImageRepository(a.db)
	default:
		a.images = directory.NewImageStore(cfg.Data.Images)
	}

	var store duplicates.IndexStore
	switch cfg.Index.Store {
	case config.StoreSQLite:
		store = database.NewIndexRepository(a.db)
	default:
		store = duplicates.NewFileStore(cfg.Index.Path)
	}

	algorithm, err := imageprocessor.ParseAlgorithm(cfg.Features.Algorithm)
	if err != nil {
		a.Close()
		return nil, err
	}

	builder := duplicates.NewBuilder(
		imageprocessor.NewExtractor(algorithm),
		imageprocessor.NewMatcher(),
		duplicates.BuildOptions{Workers: cfg.Build.Workers, OnProgress: onProgress},
	)
	a.cache = duplicates.NewCache(a.images, builder, store, duplicates.CacheOptions{Fingerprint: cfg.Index.Fingerprint})

	logging.DebugLog("Wired app: images=%s store=%s algorithm=%s threshold=%d",
		cfg.Data.ImageSource, cfg.Index.Store, algorithm, cfg.Duplicates.Threshold)
	return a, nil
}

// Close releases the database, if one was opened
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// initDatabaseWithRetry opens the SQLite file, retrying briefly while another
// process holds it
func initDatabaseWithRetry(dbPath string) (*sql.DB, error) {
	const maxRetries = 3

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := database.InitDatabase(dbPath)
		if err == nil {
			return db, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			logging.LogWarning("Error initializing database (attempt %d/%d): %v - retrying...", i+1, maxRetries, err)
			time.Sleep(time.Second * time.Duration(i+1))
		}
	}
	return nil, fmt.Errorf("error initializing database after %d attempts: %w", maxRetries, lastErr)
}
