package memory

// Bank is a typed LIFO free list. The book owns one bank per pooled
// kind (orders, buckets); access is single-writer only.
//
// Recycled objects are NOT zeroed. Every checkout site must overwrite
// all fields before use.
type Bank[T any] struct {
	free  []*T
	alloc func() *T
}

// NewBank creates a bank with a constructor for cold allocations.
func NewBank[T any](alloc func() *T) *Bank[T] {
	return &Bank[T]{
		free:  make([]*T, 0, 64),
		alloc: alloc,
	}
}

// Get returns a recycled instance, or allocates a fresh one when the
// free list is empty.
func (b *Bank[T]) Get() *T {
	if n := len(b.free); n > 0 {
		v := b.free[n-1]
		b.free[n-1] = nil
		b.free = b.free[:n-1]
		return v
	}
	return b.alloc()
}

// Put returns an instance to the free list.
func (b *Bank[T]) Put(v *T) {
	b.free = append(b.free, v)
}

// Len reports how many instances are waiting for reuse.
func (b *Bank[T]) Len() int { return len(b.free) }
