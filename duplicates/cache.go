package duplicates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/TuringFantasy/simple-dedupe/logging"
	"github.com/TuringFantasy/simple-dedupe/types"
)

// ImageLister lists the image directory
type ImageLister interface {
	ListImages(ctx context.Context) ([]types.ImageEntry, error)
}

// IndexBuilder produces a match table for a set of images
type IndexBuilder interface {
	Build(ctx context.Context, entries []types.ImageEntry) (types.MatchTable, error)
}

// CacheOptions tunes a Cache
type CacheOptions struct {
	// Fingerprint keys the persisted index by the image directory contents.
	// When false, the presence of a persisted index is the only hit signal and
	// it is reused regardless of later directory changes.
	Fingerprint bool
}

// Index states reported by Cache.State
const (
	StateMissing  = "missing"
	StateBuilding = "building"
	StateReady    = "ready"
)

// Cache loads the persisted match table or builds and persists it. One mutex
// covers the whole check, build and write sequence, so at most one build runs
// and callers arriving during a build wait for its result. The in-memory
// table sits behind a second, short-held mutex so Peek never waits on a build.
type Cache struct {
	images  ImageLister
	builder IndexBuilder
	store   IndexStore
	opts    CacheOptions

	buildMu sync.Mutex

	stateMu     sync.Mutex
	table       types.MatchTable
	fingerprint string
	loaded      bool
	generation  uint64

	ready    atomic.Bool
	building atomic.Bool
}

// NewCache creates a cache
func NewCache(images ImageLister, builder IndexBuilder, store IndexStore, opts CacheOptions) *Cache {
	return &Cache{
		images:  images,
		builder: builder,
		store:   store,
		opts:    opts,
	}
}

// LoadOrBuild returns the current match table, building it when nothing
// usable is persisted. The build is detached from ctx cancellation: a caller
// that gives up does not stop it, and its result is still persisted.
func (c *Cache) LoadOrBuild(ctx context.Context) (types.MatchTable, error) {
	entries, fingerprint, err := c.currentImages(ctx)
	if err != nil {
		return nil, err
	}

	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	if table, ok, _ := c.cached(fingerprint); ok {
		return table, nil
	}

	stored, err := c.store.Load(ctx)
	switch {
	case err == nil && c.fresh(stored.Meta.Fingerprint, fingerprint):
		c.remember(stored.Table, stored.Meta.Fingerprint)
		logging.LogInfo("Loaded match index (%d rows, build %s)", len(stored.Table), stored.Meta.BuildID)
		return stored.Table, nil
	case err == nil:
		logging.LogWarning("Persisted match index is stale for the current image set, rebuilding")
	case errors.Is(err, ErrNoStoredIndex):
		logging.LogInfo("No persisted match index, building")
	default:
		return nil, fmt.Errorf("loading match index: %w", err)
	}

	c.building.Store(true)
	defer c.building.Store(false)
	c.forget()

	buildCtx := context.WithoutCancel(ctx)

	table, err := c.builder.Build(buildCtx, entries)
	if err != nil {
		return nil, fmt.Errorf("building match index: %w", err)
	}

	index := &StoredIndex{
		Table: table,
		Meta: IndexMeta{
			Fingerprint: fingerprint,
			BuildID:     uuid.New().String(),
			BuiltAt:     time.Now().UTC(),
			Images:      len(entries),
		},
	}
	if err := c.store.Save(buildCtx, index); err != nil {
		return nil, fmt.Errorf("persisting match index: %w", err)
	}

	logging.LogInfo("Persisted match index build %s (%d rows)", index.Meta.BuildID, len(table))
	c.remember(table, fingerprint)
	return table, nil
}

// Peek returns the persisted match table without ever building one.
// It fails with ErrIndexNotBuilt when none is usable, including while the
// first build is still running.
func (c *Cache) Peek(ctx context.Context) (types.MatchTable, error) {
	_, fingerprint, err := c.currentImages(ctx)
	if err != nil {
		return nil, err
	}

	table, ok, generation := c.cached(fingerprint)
	if ok {
		return table, nil
	}
	if c.building.Load() {
		return nil, ErrIndexNotBuilt
	}

	stored, err := c.store.Load(ctx)
	if errors.Is(err, ErrNoStoredIndex) {
		return nil, ErrIndexNotBuilt
	}
	if err != nil {
		return nil, fmt.Errorf("loading match index: %w", err)
	}
	if !c.fresh(stored.Meta.Fingerprint, fingerprint) {
		c.forgetIf(generation)
		return nil, ErrIndexNotBuilt
	}

	c.rememberIf(generation, stored.Table, stored.Meta.Fingerprint)
	return stored.Table, nil
}

// Invalidate drops the in-memory table and deletes the persisted one
func (c *Cache) Invalidate(ctx context.Context) error {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	c.forget()
	if err := c.store.Delete(ctx); err != nil {
		return fmt.Errorf("deleting match index: %w", err)
	}
	return nil
}

// State reports the in-memory index state without blocking on a build
func (c *Cache) State() string {
	switch {
	case c.building.Load():
		return StateBuilding
	case c.ready.Load():
		return StateReady
	default:
		return StateMissing
	}
}

func (c *Cache) currentImages(ctx context.Context) ([]types.ImageEntry, string, error) {
	entries, err := c.images.ListImages(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("listing images: %w", err)
	}
	if !c.opts.Fingerprint {
		return entries, "", nil
	}
	return entries, Fingerprint(entries), nil
}

func (c *Cache) fresh(stored, current string) bool {
	if !c.opts.Fingerprint {
		return true
	}
	return stored == current
}

// cached returns the in-memory table when it matches fingerprint, plus the
// generation it was read at
func (c *Cache) cached(fingerprint string) (types.MatchTable, bool, uint64) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.loaded && c.fresh(c.fingerprint, fingerprint) {
		return c.table, true, c.generation
	}
	return nil, false, c.generation
}

func (c *Cache) remember(table types.MatchTable, fingerprint string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.set(table, fingerprint, true)
}

func (c *Cache) forget() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.set(nil, "", false)
}

// rememberIf stores a table read by Peek unless a build or invalidation has
// replaced the state since generation was read
func (c *Cache) rememberIf(generation uint64, table types.MatchTable, fingerprint string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.generation == generation {
		c.set(table, fingerprint, true)
	}
}

func (c *Cache) forgetIf(generation uint64) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.generation == generation {
		c.set(nil, "", false)
	}
}

// set must be called with stateMu held
func (c *Cache) set(table types.MatchTable, fingerprint string, loaded bool) {
	c.table = table
	c.fingerprint = fingerprint
	c.loaded = loaded
	c.generation++
	c.ready.Store(loaded)
}
