// Package batch groups a sequence into consecutive fixed-size chunks.
//
// Chunks preserve input order, every chunk except possibly the last holds
// exactly size elements, and nothing is buffered beyond the current chunk.
package batch

import (
	"errors"
	"iter"
)

// ErrInvalidSize is returned for a chunk size <= 0.
var ErrInvalidSize = errors.New("batch: size must be > 0")

// Seq yields consecutive chunks of at most size elements from seq. The
// yielded slice is freshly allocated per chunk, so callers may retain it.
func Seq[T any](seq iter.Seq[T], size int) (iter.Seq[[]T], error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return func(yield func([]T) bool) {
		chunk := make([]T, 0, size)
		for v := range seq {
			chunk = append(chunk, v)
			if len(chunk) == size {
				if !yield(chunk) {
					return
				}
				chunk = make([]T, 0, size)
			}
		}
		if len(chunk) > 0 {
			yield(chunk)
		}
	}, nil
}

// Slice is Seq over an in-memory slice. Chunks alias s; no copy is made.
func Slice[T any](s []T, size int) (iter.Seq[[]T], error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return func(yield func([]T) bool) {
		for len(s) > 0 {
			n := min(size, len(s))
			if !yield(s[:n:n]) {
				return
			}
			s = s[n:]
		}
	}, nil
}

// Count reports how many chunks Slice or Seq would yield for n elements.
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
