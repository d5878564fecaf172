package duplicates

import (
	"errors"
	"fmt"

	"github.com/TuringFantasy/simple-dedupe/types"
)

// ErrIndexNotBuilt is returned by single-id queries that arrive before any
// match index exists. Callers should hit the collection-wide query first.
var ErrIndexNotBuilt = errors.New("duplicate index has not been built")

// ErrNoStoredIndex is returned by an IndexStore that holds nothing
var ErrNoStoredIndex = errors.New("no stored match index")

// DecodeError reports an image that could not be read or decoded during a
// build. It aborts the whole build.
type DecodeError struct {
	ID   types.ID
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image %s (%s): %v", e.ID, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
