package imageprocessor

import (
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	// Decoders for the pure-Go fallback
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnreadableImage is wrapped by every loader failure
var ErrUnreadableImage = errors.New("unreadable image")

// BaseImageLoader provides common functionality for all image loaders
type BaseImageLoader struct {
	// Formats this loader can handle
	SupportedFormats []FormatType
}

// CanLoad checks if this loader supports the file's format
func (l *BaseImageLoader) CanLoad(path string) bool {
	format := GetFileFormat(path)
	for _, supported := range l.SupportedFormats {
		if format == supported {
			return fileExists(path)
		}
	}
	return false
}

// OpenCVImageLoader reads files with OpenCV's own codecs
type OpenCVImageLoader struct {
	BaseImageLoader
}

// NewOpenCVImageLoader creates a loader for the formats OpenCV decodes natively
func NewOpenCVImageLoader() *OpenCVImageLoader {
	return &OpenCVImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatTIFF,
				FormatBMP,
				FormatWEBP,
			},
		},
	}
}

// LoadImage loads the file as grayscale
func (l *OpenCVImageLoader) LoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), newImageLoadError("OpenCV could not decode image", path)
	}
	return img, nil
}

// GoImageLoader decodes with Go's image packages and converts to a Mat.
// It covers GIF and serves as the fallback when OpenCV was built without a codec.
type GoImageLoader struct {
	BaseImageLoader
}

// NewGoImageLoader creates the pure-Go loader
func NewGoImageLoader() *GoImageLoader {
	return &GoImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatGIF,
				FormatTIFF,
				FormatBMP,
				FormatWEBP,
			},
		},
	}
}

// LoadImage decodes the file and converts it to a grayscale Mat
func (l *GoImageLoader) LoadImage(path string) (gocv.Mat, error) {
	img, err := tryGoImagePackages(path)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %s: %v", ErrUnreadableImage, path, err)
	}
	return gocvMatFromGoImage(img)
}

// tryGoImagePackages decodes an image using Go's registered decoders
func tryGoImagePackages(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// gocvMatFromGoImage converts a Go image to a grayscale OpenCV Mat
func gocvMatFromGoImage(img image.Image) (gocv.Mat, error) {
	rgb, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: converting to Mat: %v", ErrUnreadableImage, err)
	}
	defer rgb.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)
	if gray.Empty() {
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("%w: grayscale conversion produced an empty Mat", ErrUnreadableImage)
	}
	return gray, nil
}

// fileExists checks if a file exists and is accessible
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// newImageLoadError creates a standardized error for image loading failures
func newImageLoadError(message, path string) error {
	return fmt.Errorf("%w: %s: %s", ErrUnreadableImage, message, path)
}
