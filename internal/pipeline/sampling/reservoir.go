// Package sampling selects the bounded product and review subsets the index is built from.
package sampling

import "math/rand/v2"

// Reservoir keeps a uniform random sample of at most k items from a stream of
// unknown length in O(k) memory. Not safe for concurrent use; determinism
// requires a fixed offer order.
type Reservoir[T any] struct {
	k     int
	items []T
	seen  int
	rng   *rand.Rand
}

// NewReservoir creates a reservoir of size k seeded for reproducibility.
func NewReservoir[T any](k int, seed uint64) *Reservoir[T] {
	if k < 0 {
		k = 0
	}
	return &Reservoir[T]{
		k:     k,
		items: make([]T, 0, min(k, 1<<16)),
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Offer presents the next item. The i-th offered item (1-based) replaces a
// uniformly chosen slot with probability k/i once the reservoir is full.
func (r *Reservoir[T]) Offer(item T) {
	r.seen++
	if len(r.items) < r.k {
		r.items = append(r.items, item)
		return
	}
	if r.k == 0 {
		return
	}
	if j := r.rng.IntN(r.seen); j < r.k {
		r.items[j] = item
	}
}

// Items returns the current sample. The slice is owned by the reservoir.
func (r *Reservoir[T]) Items() []T { return r.items }

// Seen returns how many items were offered.
func (r *Reservoir[T]) Seen() int { return r.seen }
