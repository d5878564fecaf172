// Package imageprocessor loads images through OpenCV and adapts its feature
// detectors and brute-force matcher to the duplicate index builder.
package imageprocessor

import "gocv.io/x/gocv"

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// CanLoad checks if the loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads the image as a single-channel grayscale Mat
	LoadImage(path string) (gocv.Mat, error)
}
