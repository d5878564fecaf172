package duplicates

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/TuringFantasy/simple-dedupe/types"
)

// Fingerprint hashes the sorted {id, path, size, mtime} tuples of the image
// directory. Any added, removed, moved or rewritten image changes it.
// Missing files hash as missing rather than failing; the build reports them.
func Fingerprint(entries []types.ImageEntry) string {
	sorted := make([]types.ImageEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Path < sorted[j].Path
	})

	h := sha256.New()
	for _, entry := range sorted {
		info, err := os.Stat(entry.Path)
		if err != nil {
			fmt.Fprintf(h, "%s\x00%s\x00missing\n", entry.ID, entry.Path)
			continue
		}
		fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\n", entry.ID, entry.Path, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}
