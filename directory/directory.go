// Package directory reads the user and image directories from JSON files.
// Files are re-read on every call so edits show up without a restart.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/TuringFantasy/simple-dedupe/types"
)

// ErrUserNotFound is returned when no user carries the requested id
var ErrUserNotFound = errors.New("user not found")

// UserStore serves the user directory from a JSON array of {id, name}
type UserStore struct {
	path string
}

// NewUserStore creates a store reading path
func NewUserStore(path string) *UserStore {
	return &UserStore{path: path}
}

// ListUsers returns every user in file order
func (s *UserStore) ListUsers(ctx context.Context) ([]types.User, error) {
	users := []types.User{}
	if err := readJSON(s.path, &users); err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}
	if users == nil {
		users = []types.User{}
	}
	return users, nil
}

// FindUser returns the first user whose id string-equals id
func (s *UserStore) FindUser(ctx context.Context, id string) (*types.User, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID.String() == id {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
}

// ImageStore serves the image directory from a JSON array of {id, path}.
// Relative paths resolve against the JSON file's directory.
type ImageStore struct {
	path string
}

// NewImageStore creates a store reading path
func NewImageStore(path string) *ImageStore {
	return &ImageStore{path: path}
}

// ListImages returns every image in file order
func (s *ImageStore) ListImages(ctx context.Context) ([]types.ImageEntry, error) {
	var entries []types.ImageEntry
	if err := readJSON(s.path, &entries); err != nil {
		return nil, fmt.Errorf("reading images: %w", err)
	}

	base := filepath.Dir(s.path)
	out := make([]types.ImageEntry, 0, len(entries))
	for _, e := range entries {
		if e.Path == "" {
			return nil, fmt.Errorf("image %s has no path", e.ID)
		}
		if !filepath.IsAbs(e.Path) {
			e.Path = filepath.Join(base, e.Path)
		}
		out = append(out, e)
	}
	return out, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// ScanFolder walks root and returns one entry per file accepted by match,
// using the file name without extension as the id. Unreadable entries are
// skipped; two files with the same id are an error.
func ScanFolder(root string, match func(path string) bool) ([]types.ImageEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access folder path %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	seen := make(map[types.ID]string)
	entries := []types.ImageEntry{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip files that can't be accessed
		}
		if d.IsDir() || !match(path) {
			return nil
		}

		name := filepath.Base(path)
		id := types.ID(strings.TrimSuffix(name, filepath.Ext(name)))
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("id %s used by both %s and %s", id, prev, path)
		}
		seen[id] = path

		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		entries = append(entries, types.ImageEntry{ID: id, Path: abs})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
