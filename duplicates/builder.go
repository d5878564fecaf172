// Package duplicates builds the pairwise match index over the image
// directory, caches it, and turns it into duplicate verdicts.
package duplicates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TuringFantasy/simple-dedupe/logging"
	"github.com/TuringFantasy/simple-dedupe/signalhandler"
	"github.com/TuringFantasy/simple-dedupe/types"
)

const (
	// GoodMatchRatio is the ratio test bound: the best candidate is a good
	// match only when its distance is below this fraction of the runner-up's.
	GoodMatchRatio = 0.75

	// KNearest is the number of candidates requested per query descriptor
	KNearest = 2
)

// Build stages reported through BuildOptions.OnProgress
const (
	StageExtract = "extract"
	StageMatch   = "match"
)

// FeatureExtractor turns an image file into keypoints and descriptors
type FeatureExtractor interface {
	Extract(path string) (*types.ExtractedFeatures, error)
}

// DescriptorMatcher returns, for every query descriptor, its k nearest
// candidates in train ranked by ascending distance.
type DescriptorMatcher interface {
	KnnMatch(query, train types.Descriptors, k int) ([][]types.Candidate, error)
}

// BuildOptions tunes a Builder
type BuildOptions struct {
	// Workers bounds concurrent extractions and matching rows.
	// Zero means signalhandler.GetOptimalProcs().
	Workers int

	// OnProgress, if set, is called after each unit of work. Calls are serialized.
	OnProgress func(stage string, done, total int)
}

// Builder drives extraction and matching across the full image set
type Builder struct {
	extractor FeatureExtractor
	matcher   DescriptorMatcher
	opts      BuildOptions
}

// NewBuilder creates a builder over the given adapters
func NewBuilder(extractor FeatureExtractor, matcher DescriptorMatcher, opts BuildOptions) *Builder {
	return &Builder{
		extractor: extractor,
		matcher:   matcher,
		opts:      opts,
	}
}

// Build produces the match table for every ordered pair of distinct images.
// It is all-or-nothing: any failure returns no table.
func (b *Builder) Build(ctx context.Context, entries []types.ImageEntry) (types.MatchTable, error) {
	startTime := time.Now()

	records, err := measureImages(entries)
	if err != nil {
		return nil, err
	}

	logging.LogInfo("Building match index over %d images (%d ordered pairs, %d workers)",
		len(records), len(records)*(len(records)-1), b.workers())

	features, err := b.extractAll(ctx, records)
	if err != nil {
		return nil, err
	}
	defer closeFeatures(features)

	table, err := b.matchAll(ctx, records, features)
	if err != nil {
		return nil, err
	}

	logging.LogInfo("Match index built: %d rows in %v", len(table), time.Since(startTime).Round(time.Millisecond))
	return table, nil
}

func (b *Builder) workers() int {
	if b.opts.Workers > 0 {
		return b.opts.Workers
	}
	return signalhandler.GetOptimalProcs()
}

// measureImages resolves the on-disk size of every image
func measureImages(entries []types.ImageEntry) ([]types.ImageRecord, error) {
	seen := make(map[types.ID]struct{}, len(entries))
	records := make([]types.ImageRecord, 0, len(entries))

	for _, entry := range entries {
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("image directory lists id %s more than once", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		info, err := os.Stat(entry.Path)
		if err != nil {
			return nil, &DecodeError{ID: entry.ID, Path: entry.Path, Err: err}
		}
		if info.IsDir() {
			return nil, &DecodeError{ID: entry.ID, Path: entry.Path, Err: errors.New("path is a directory")}
		}
		if info.Size() == 0 {
			return nil, &DecodeError{ID: entry.ID, Path: entry.Path, Err: errors.New("file is empty")}
		}

		records = append(records, types.ImageRecord{
			ID:     entry.ID,
			Path:   entry.Path,
			SizeKB: float64(info.Size()) / 1000,
		})
	}

	return records, nil
}

// extractAll extracts features for every image, holding all of them at once
func (b *Builder) extractAll(ctx context.Context, records []types.ImageRecord) ([]*types.ExtractedFeatures, error) {
	features := make([]*types.ExtractedFeatures, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())

	var mutex sync.Mutex // guards done and progress calls
	var done int

	for i, record := range records {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			extracted, err := b.extractor.Extract(record.Path)
			if err != nil {
				logging.LogImageExtracted(record.ID.String(), record.Path, 0, err)
				extracted.Close()
				return &DecodeError{ID: record.ID, Path: record.Path, Err: err}
			}
			if extracted == nil {
				extracted = &types.ExtractedFeatures{}
			}
			features[i] = extracted
			logging.LogImageExtracted(record.ID.String(), record.Path, len(extracted.Keypoints), nil)

			mutex.Lock()
			done++
			b.progress(StageExtract, done, len(records))
			mutex.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		closeFeatures(features)
		return nil, err
	}
	return features, nil
}

// matchAll compares every ordered pair. Row i holds image i matched against
// every other image, so slot order is deterministic.
func (b *Builder) matchAll(ctx context.Context, records []types.ImageRecord, features []*types.ExtractedFeatures) (types.MatchTable, error) {
	n := len(records)
	if n < 2 {
		return types.MatchTable{}, nil
	}

	table := make(types.MatchTable, n*(n-1))
	total := len(table)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())

	var mutex sync.Mutex // guards done and progress calls
	var done int

	for i := range records {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			image := records[i]
			slot := i * (n - 1)

			for j, other := range records {
				if j == i {
					continue
				}
				if err := gctx.Err(); err != nil {
					return err
				}

				candidates, err := b.matcher.KnnMatch(features[i].Descriptors, features[j].Descriptors, KNearest)
				if err != nil {
					return fmt.Errorf("matching %s against %s: %w", image.ID, other.ID, err)
				}

				good := CountGoodMatches(candidates)
				match := types.PairwiseMatch{
					ID:          image.ID,
					DuplicateID: other.ID,
					MatchIndex:  MatchIndex(good, image.SizeKB, other.SizeKB),
				}
				table[slot] = match
				slot++

				logging.DebugLog("Pair %s -> %s: %d good matches, index %.4f",
					match.ID, match.DuplicateID, good, match.MatchIndex)

				mutex.Lock()
				done++
				b.progress(StageMatch, done, total)
				mutex.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (b *Builder) progress(stage string, done, total int) {
	if b.opts.OnProgress != nil {
		b.opts.OnProgress(stage, done, total)
	}
}

// CountGoodMatches applies the ratio test to each query descriptor's two
// best candidates. Descriptors with fewer than two candidates are skipped.
func CountGoodMatches(candidates [][]types.Candidate) int {
	var good int
	for _, pair := range candidates {
		if len(pair) < 2 {
			continue
		}
		m, n := pair[0], pair[1]
		if m.Distance < GoodMatchRatio*n.Distance {
			good++
		}
	}
	return good
}

// MatchIndex normalizes a good-match count by the product of both file sizes in KB
func MatchIndex(goodMatches int, sizeKB, otherSizeKB float64) float64 {
	return float64(goodMatches) / (sizeKB * otherSizeKB)
}

func closeFeatures(features []*types.ExtractedFeatures) {
	for _, f := range features {
		if err := f.Close(); err != nil {
			logging.LogWarning("Failed to release descriptors: %v", err)
		}
	}
}
