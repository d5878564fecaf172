package imageprocessor

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/TuringFantasy/simple-dedupe/types"
)

// Matcher runs an exhaustive brute-force k-nearest-neighbour search.
// The distance norm follows the descriptors' algorithm.
type Matcher struct{}

// NewMatcher creates a brute-force matcher
func NewMatcher() *Matcher {
	return &Matcher{}
}

// KnnMatch returns up to k candidates per query descriptor, nearest first.
// Empty descriptor sets produce no candidates.
func (m *Matcher) KnnMatch(query, train types.Descriptors, k int) ([][]types.Candidate, error) {
	q, err := asMatDescriptors(query)
	if err != nil {
		return nil, err
	}
	t, err := asMatDescriptors(train)
	if err != nil {
		return nil, err
	}

	if q.Len() == 0 || t.Len() == 0 {
		return nil, nil
	}
	if q.norm != t.norm {
		return nil, fmt.Errorf("descriptor sets come from different algorithms")
	}

	bf := gocv.NewBFMatcherWithParams(q.norm, false)
	defer bf.Close()

	matches := bf.KnnMatch(q.mat, t.mat, k)

	out := make([][]types.Candidate, 0, len(matches))
	for _, ranked := range matches {
		candidates := make([]types.Candidate, 0, len(ranked))
		for _, dm := range ranked {
			candidates = append(candidates, types.Candidate{
				QueryIdx: dm.QueryIdx,
				TrainIdx: dm.TrainIdx,
				Distance: dm.Distance,
			})
		}
		out = append(out, candidates)
	}
	return out, nil
}

func asMatDescriptors(d types.Descriptors) (*MatDescriptors, error) {
	if d == nil {
		return nil, nil
	}
	md, ok := d.(*MatDescriptors)
	if !ok {
		return nil, fmt.Errorf("unsupported descriptor set %T", d)
	}
	return md, nil
}
