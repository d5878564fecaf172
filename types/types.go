package types

// User is one entry of the user directory
type User struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// ImageEntry is one row of the image directory
type ImageEntry struct {
	ID   ID     `json:"id"`
	Path string `json:"path"`
}

// ImageRecord holds an image taking part in an index build.
// SizeKB is the on-disk byte size divided by 1000.
type ImageRecord struct {
	ID     ID
	Path   string
	SizeKB float64
}

// Keypoint is a local feature location found by the extractor
type Keypoint struct {
	X        float64
	Y        float64
	Size     float64
	Angle    float64
	Response float64
}

// Descriptors is an opaque descriptor set owned by the extractor that made it.
// Only the matcher that pairs with that extractor knows how to read it.
type Descriptors interface {
	// Len returns the number of descriptor rows
	Len() int

	// Close releases any native memory held by the set
	Close() error
}

// ExtractedFeatures holds the keypoints and descriptors of one image
type ExtractedFeatures struct {
	Keypoints   []Keypoint
	Descriptors Descriptors
}

// Close releases the descriptor set, if any
func (f *ExtractedFeatures) Close() error {
	if f == nil || f.Descriptors == nil {
		return nil
	}
	return f.Descriptors.Close()
}

// Candidate is one nearest-neighbour candidate for a query descriptor
type Candidate struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// PairwiseMatch is one directed comparison: ID is the query image and
// DuplicateID the reference image.
type PairwiseMatch struct {
	ID          ID      `json:"id"`
	DuplicateID ID      `json:"duplicate_id"`
	MatchIndex  float64 `json:"match_index"`
}

// MatchTable holds every directed comparison of one image set
type MatchTable []PairwiseMatch

// DuplicateVerdict answers whether one id is a duplicate of anything
type DuplicateVerdict struct {
	ID           ID   `json:"id"`
	Duplicate    bool `json:"duplicate"`
	DuplicateIDs []ID `json:"duplicateId"`
}

// DuplicateRow is one flagged directed pair
type DuplicateRow struct {
	ID          ID      `json:"id"`
	DuplicateID ID      `json:"duplicateId"`
	MatchIndex  float64 `json:"matchIndex"`
	Duplicate   bool    `json:"duplicate"`
}
