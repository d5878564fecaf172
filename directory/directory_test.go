package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuringFantasy/simple-dedupe/types"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestUserStore_ListUsers(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.json", `[
		{"id": 1, "name": "Ada"},
		{"id": "2", "name": "Grace"}
	]`)

	users, err := NewUserStore(path).ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.User{{ID: "1", Name: "Ada"}, {ID: "2", Name: "Grace"}}, users)
}

func TestUserStore_EmptyDirectory(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.json", `[]`)

	users, err := NewUserStore(path).ListUsers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserStore_FindUser(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.json", `[{"id": 7, "name": "Linus"}]`)
	store := NewUserStore(path)

	user, err := store.FindUser(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Linus", user.Name)

	_, err = store.FindUser(context.Background(), "8")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.FindUser(context.Background(), "07")
	assert.ErrorIs(t, err, ErrUserNotFound, "ids compare as strings")
}

func TestUserStore_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewUserStore(filepath.Join(dir, "missing.json")).ListUsers(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := writeFile(t, dir, "bad.json", `{"id": 1}`)
	_, err = NewUserStore(bad).ListUsers(context.Background())
	assert.Error(t, err)
}

func TestImageStore_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "images.json", `[
		{"id": 1, "path": "img/1.jpg"},
		{"id": 2, "path": "/abs/2.jpg"}
	]`)

	entries, err := NewImageStore(path).ListImages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.ImageEntry{
		{ID: "1", Path: filepath.Join(dir, "img", "1.jpg")},
		{ID: "2", Path: "/abs/2.jpg"},
	}, entries)
}

func TestImageStore_RejectsMissingPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "images.json", `[{"id": 1}]`)

	_, err := NewImageStore(path).ListImages(context.Background())
	assert.Error(t, err)
}

func TestScanFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	writeFile(t, dir, "10.jpg", "x")
	writeFile(t, dir, "notes.txt", "x")
	writeFile(t, filepath.Join(dir, "sub"), "11.png", "x")

	isImage := func(path string) bool {
		ext := filepath.Ext(path)
		return ext == ".jpg" || ext == ".png"
	}

	entries, err := ScanFolder(dir, isImage)
	require.NoError(t, err)
	assert.Equal(t, []types.ImageEntry{
		{ID: "10", Path: filepath.Join(dir, "10.jpg")},
		{ID: "11", Path: filepath.Join(dir, "sub", "11.png")},
	}, entries)

	writeFile(t, dir, "11.jpg", "x")
	_, err = ScanFolder(dir, isImage)
	assert.Error(t, err, "two files claim id 11")

	_, err = ScanFolder(filepath.Join(dir, "10.jpg"), isImage)
	assert.Error(t, err)
}
