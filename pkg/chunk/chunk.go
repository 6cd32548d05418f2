// Package chunk splits ordered sequences into fixed-size ordered chunks.
package chunk

import (
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidArgument is returned when the chunk size is not positive.
var ErrInvalidArgument = errors.New("chunk: invalid argument")

// Chunks returns a lazy sequence of consecutive sub-slices of items, each of
// length size except possibly the last. Concatenating the chunks in order
// reconstructs items. The yielded slices share the backing array of items.
func Chunks[T any](items []T, size int) (iter.Seq[[]T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d must be positive", ErrInvalidArgument, size)
	}
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end:end]) {
				return
			}
		}
	}, nil
}

// Split is the eager form of Chunks.
func Split[T any](items []T, size int) ([][]T, error) {
	seq, err := Chunks(items, size)
	if err != nil {
		return nil, err
	}
	out := make([][]T, 0, Count(len(items), size))
	for c := range seq {
		out = append(out, c)
	}
	return out, nil
}

// Count returns how many chunks n items produce at the given size.
// It returns 0 for a non-positive size.
func Count(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
