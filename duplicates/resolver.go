package duplicates

import (
	"math"

	"github.com/TuringFantasy/simple-dedupe/types"
)

// DefaultThreshold is the duplicate weight threshold
const DefaultThreshold = 3

// Resolver applies the duplicate threshold to a match table.
// Both queries are projections of the same flagged rows: ResolveAll filters,
// Resolve filters and groups by partner.
type Resolver struct {
	threshold int
}

// NewResolver creates a resolver with the given threshold
func NewResolver(threshold int) *Resolver {
	return &Resolver{threshold: threshold}
}

// Threshold returns the configured threshold
func (r *Resolver) Threshold() int {
	return r.threshold
}

// IsFlagged truncates the match index before comparing, so 3.99 does not
// pass a threshold of 3 and 4.0 does.
func (r *Resolver) IsFlagged(m types.PairwiseMatch) bool {
	return math.Trunc(m.MatchIndex) > float64(r.threshold)
}

// Resolve reports every other id flagged against id in either direction,
// each listed once in the order first seen.
func (r *Resolver) Resolve(table types.MatchTable, id types.ID) types.DuplicateVerdict {
	verdict := types.DuplicateVerdict{
		ID:           id,
		DuplicateIDs: []types.ID{},
	}

	seen := make(map[types.ID]struct{})
	for _, m := range table {
		var other types.ID
		switch id {
		case m.ID:
			other = m.DuplicateID
		case m.DuplicateID:
			other = m.ID
		default:
			continue
		}

		if !r.IsFlagged(m) {
			continue
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		verdict.DuplicateIDs = append(verdict.DuplicateIDs, other)
	}

	verdict.Duplicate = len(verdict.DuplicateIDs) > 0
	return verdict
}

// ResolveAll returns one row per flagged directed pair. A mutually flagged
// pair yields two rows.
func (r *Resolver) ResolveAll(table types.MatchTable) []types.DuplicateRow {
	rows := []types.DuplicateRow{}
	for _, m := range table {
		if !r.IsFlagged(m) {
			continue
		}
		rows = append(rows, types.DuplicateRow{
			ID:          m.ID,
			DuplicateID: m.DuplicateID,
			MatchIndex:  m.MatchIndex,
			Duplicate:   true,
		})
	}
	return rows
}
