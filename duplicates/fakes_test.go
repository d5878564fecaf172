package duplicates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TuringFantasy/simple-dedupe/types"
)

// fakeDescriptors names the image it was extracted from
type fakeDescriptors struct {
	name   string
	closed *atomic.Int32
}

func (d *fakeDescriptors) Len() int { return 1 }

func (d *fakeDescriptors) Close() error {
	d.closed.Add(1)
	return nil
}

// fakeExtractor produces fakeDescriptors named after the file's base name
type fakeExtractor struct {
	failOn  map[string]error
	created atomic.Int32
	closed  atomic.Int32
	calls   atomic.Int32
}

func (e *fakeExtractor) Extract(path string) (*types.ExtractedFeatures, error) {
	e.calls.Add(1)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err, ok := e.failOn[name]; ok {
		return nil, err
	}
	e.created.Add(1)
	return &types.ExtractedFeatures{
		Keypoints:   make([]types.Keypoint, 3),
		Descriptors: &fakeDescriptors{name: name, closed: &e.closed},
	}, nil
}

// fakeMatcher returns `good` unambiguous candidates for "query->train",
// padded with ambiguous and single-candidate rows that never count.
type fakeMatcher struct {
	good  map[string]int
	fail  map[string]error
	calls atomic.Int32
}

func (m *fakeMatcher) KnnMatch(query, train types.Descriptors, k int) ([][]types.Candidate, error) {
	m.calls.Add(1)
	if k != KNearest {
		return nil, fmt.Errorf("unexpected k %d", k)
	}

	key := query.(*fakeDescriptors).name + "->" + train.(*fakeDescriptors).name
	if err, ok := m.fail[key]; ok {
		return nil, err
	}

	var out [][]types.Candidate
	for i := 0; i < m.good[key]; i++ {
		out = append(out, []types.Candidate{{QueryIdx: i, Distance: 1}, {QueryIdx: i, Distance: 10}})
	}
	for i := 0; i < 5; i++ {
		out = append(out, []types.Candidate{{Distance: 9}, {Distance: 10}})
	}
	out = append(out, []types.Candidate{{Distance: 0}})
	return out, nil
}

// fakeLister serves a fixed image directory
type fakeLister struct {
	mu      sync.Mutex
	entries []types.ImageEntry
	err     error
}

func (l *fakeLister) ListImages(ctx context.Context) ([]types.ImageEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return append([]types.ImageEntry(nil), l.entries...), nil
}

// countingBuilder returns a fixed table and counts builds
type countingBuilder struct {
	table   types.MatchTable
	err     error
	release chan struct{}
	builds  atomic.Int32
	lastCtx context.Context
}

func (b *countingBuilder) Build(ctx context.Context, entries []types.ImageEntry) (types.MatchTable, error) {
	b.builds.Add(1)
	b.lastCtx = ctx
	if b.release != nil {
		<-b.release
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.table, nil
}

var errBoom = errors.New("boom")

// writeImage writes a file of exactly size bytes named <id>.jpg
func writeImage(t *testing.T, dir, id string, size int) types.ImageEntry {
	t.Helper()
	path := filepath.Join(dir, id+".jpg")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	return types.ImageEntry{ID: types.ID(id), Path: path}
}

// threeImages is the 10KB / 10KB / 50KB collection
func threeImages(t *testing.T) []types.ImageEntry {
	t.Helper()
	dir := t.TempDir()
	return []types.ImageEntry{
		writeImage(t, dir, "1", 10000),
		writeImage(t, dir, "2", 10000),
		writeImage(t, dir, "3", 50000),
	}
}

func findMatch(table types.MatchTable, id, other types.ID) (types.PairwiseMatch, bool) {
	for _, m := range table {
		if m.ID == id && m.DuplicateID == other {
			return m, true
		}
	}
	return types.PairwiseMatch{}, false
}
