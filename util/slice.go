package util

import (
	"math/rand"

	"golang.org/x/exp/slices"
)

// PickRandom returns a random element of in, false when in is empty.
func PickRandom[T any](rnd *rand.Rand, in []T) (T, bool) {
	var zero T
	if len(in) == 0 {
		return zero, false
	}
	return in[rnd.Intn(len(in))], true
}

// Dedup keeps the first occurrence of each element, preserving order.
func Dedup[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
