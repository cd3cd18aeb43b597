package orderbook

// Bucket aggregates all resting orders at one price on one side.
//
// tail is the newest (lowest-priority) order at this price; the oldest
// order of the bucket is reached by walking next from tail until the
// parent changes.
type Bucket struct {
	volume    int64
	numOrders int32
	tail      *Order
}

// Volume is the sum of remaining quantities at this price.
func (b *Bucket) Volume() int64 { return b.volume }

// NumOrders is the count of resting orders at this price.
func (b *Bucket) NumOrders() int32 { return b.numOrders }
