package imageprocessor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/TuringFantasy/simple-dedupe/logging"
)

// ImageLoaderRegistry maps file extensions to loaders, with a fallback
// loader tried whenever the primary one fails
type ImageLoaderRegistry struct {
	loaders        map[string]ImageLoader
	fallbackLoader ImageLoader
	mutex          sync.RWMutex
}

// NewImageLoaderRegistry creates a registry with the default loaders
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	openCVLoader := NewOpenCVImageLoader()
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp", ".webp"} {
		registry.RegisterLoader(ext, openCVLoader)
	}

	goLoader := NewGoImageLoader()
	registry.RegisterLoader(".gif", goLoader)
	registry.fallbackLoader = goLoader

	return registry
}

// RegisterLoader registers a new loader for a specific file extension
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.loaders[strings.ToLower(ext)] = loader
}

// GetLoader returns the loader registered for the path's extension, if any
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.loaders[strings.ToLower(filepath.Ext(path))]
}

// CanLoadFile checks if any registered loader can handle the given file
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	loader := r.GetLoader(path)
	return loader != nil && loader.CanLoad(path)
}

// LoadImage loads a grayscale image with the registered loader, falling back
// to the pure-Go decoder
func (r *ImageLoaderRegistry) LoadImage(path string) (gocv.Mat, error) {
	if !fileExists(path) {
		return gocv.NewMat(), newImageLoadError("file does not exist", path)
	}

	loader := r.GetLoader(path)
	if loader == nil {
		loader = r.fallbackLoader
	}

	img, err := loader.LoadImage(path)
	if err == nil {
		return img, nil
	}
	img.Close()

	if loader == r.fallbackLoader {
		return gocv.NewMat(), err
	}

	logging.DebugLog("Primary loader failed for %s (%v), trying Go decoders", path, err)
	img, fallbackErr := r.fallbackLoader.LoadImage(path)
	if fallbackErr != nil {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("%w (fallback: %v)", err, fallbackErr)
	}
	return img, nil
}
