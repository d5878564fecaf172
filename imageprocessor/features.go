package imageprocessor

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"github.com/TuringFantasy/simple-dedupe/types"
)

// Algorithm selects the keypoint detector and descriptor
type Algorithm string

const (
	// AlgorithmSIFT yields float descriptors compared with L2 distance
	AlgorithmSIFT Algorithm = "sift"

	// AlgorithmORB yields binary descriptors compared with Hamming distance
	AlgorithmORB Algorithm = "orb"
)

// ParseAlgorithm validates an algorithm name
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case AlgorithmSIFT, "":
		return AlgorithmSIFT, nil
	case AlgorithmORB:
		return AlgorithmORB, nil
	default:
		return "", fmt.Errorf("unknown feature algorithm %q (want sift or orb)", name)
	}
}

// MatDescriptors is a descriptor set backed by an OpenCV Mat
type MatDescriptors struct {
	mat  gocv.Mat
	norm gocv.NormType
}

// Len returns the number of descriptor rows
func (d *MatDescriptors) Len() int {
	if d == nil || d.mat.Empty() {
		return 0
	}
	return d.mat.Rows()
}

// Close releases the native Mat
func (d *MatDescriptors) Close() error {
	if d == nil {
		return nil
	}
	return d.mat.Close()
}

// Extractor detects keypoints and computes descriptors for an image file.
// It is safe for concurrent use; every call owns its own detector.
type Extractor struct {
	algorithm Algorithm
	registry  *ImageLoaderRegistry
}

// NewExtractor creates an extractor for the given algorithm
func NewExtractor(algorithm Algorithm) *Extractor {
	return &Extractor{
		algorithm: algorithm,
		registry:  NewImageLoaderRegistry(),
	}
}

// Extract loads the image as grayscale and runs the detector over it
func (e *Extractor) Extract(path string) (*types.ExtractedFeatures, error) {
	img, err := e.registry.LoadImage(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	var keypoints []gocv.KeyPoint
	var descriptors gocv.Mat
	var norm gocv.NormType

	switch e.algorithm {
	case AlgorithmORB:
		orb := gocv.NewORB()
		defer orb.Close()
		keypoints, descriptors = orb.DetectAndCompute(img, mask)
		norm = gocv.NormHamming
	default:
		sift := gocv.NewSIFT()
		defer sift.Close()
		keypoints, descriptors = sift.DetectAndCompute(img, mask)
		norm = gocv.NormL2
	}

	features := &types.ExtractedFeatures{
		Keypoints:   make([]types.Keypoint, 0, len(keypoints)),
		Descriptors: &MatDescriptors{mat: descriptors, norm: norm},
	}
	for _, kp := range keypoints {
		features.Keypoints = append(features.Keypoints, types.Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
		})
	}

	return features, nil
}
