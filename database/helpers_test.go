package database

import (
	"context"
	"os"

	"github.com/TuringFantasy/simple-dedupe/types"
)

type stubBuilder struct {
	table  types.MatchTable
	builds int
}

func (b *stubBuilder) Build(ctx context.Context, entries []types.ImageEntry) (types.MatchTable, error) {
	b.builds++
	return b.table, nil
}

func writeBytes(path string, n int) error {
	return os.WriteFile(path, make([]byte, n), 0644)
}
