package orderbook

import (
	"fmt"
	"math"
)

// ValidateInternalState cross-checks every redundant structure of the
// book: chain links, bucket aggregates, price trees and the order
// index. Intended for tests and post-replay verification; cost is
// linear in the number of resting orders.
func (ob *OrderBook) ValidateInternalState() error {
	if err := ob.askBuckets.Validate(); err != nil {
		return fmt.Errorf("ask tree: %w", err)
	}
	if err := ob.bidBuckets.Validate(); err != nil {
		return fmt.Errorf("bid tree: %w", err)
	}
	if err := ob.orderIndex.Validate(); err != nil {
		return fmt.Errorf("order index: %w", err)
	}

	// Note: a crossed book is legal here. Skipped own orders are
	// reinserted untouched, so one uid can rest on both sides at
	// overlapping prices.

	askOrders, err := ob.validateChain(Ask)
	if err != nil {
		return fmt.Errorf("ask chain: %w", err)
	}
	bidOrders, err := ob.validateChain(Bid)
	if err != nil {
		return fmt.Errorf("bid chain: %w", err)
	}

	indexed := ob.orderIndex.Size(math.MaxInt)
	if askOrders+bidOrders != indexed {
		return fmt.Errorf("order index holds %d orders, chains hold %d", indexed, askOrders+bidOrders)
	}

	return nil
}

// validateChain walks one side from its head toward worse prices and
// verifies links, price monotonicity, bucket aggregates and the
// bucket/tree correspondence. Returns the number of orders seen.
func (ob *OrderBook) validateChain(side Action) (int, error) {
	head := ob.bestAsk
	if side == Bid {
		head = ob.bestBid
	}
	buckets := ob.sideBuckets(side)

	if head == nil {
		if n := buckets.Size(math.MaxInt); n != 0 {
			return 0, fmt.Errorf("empty chain but %d price levels in tree", n)
		}
		return 0, nil
	}
	if head.next != nil {
		return 0, fmt.Errorf("head order %d has a next link", head.OrderID)
	}

	seenBuckets := make(map[int64]*Bucket)
	orders := 0

	var bucket *Bucket
	var bucketVolume int64
	var bucketCount int32
	var lastInBucket *Order

	closeBucket := func() error {
		if bucket == nil {
			return nil
		}
		if bucket.volume != bucketVolume {
			return fmt.Errorf("bucket %d volume %d, chain sums to %d", lastInBucket.Price, bucket.volume, bucketVolume)
		}
		if bucket.numOrders != bucketCount {
			return fmt.Errorf("bucket %d holds %d orders, chain has %d", lastInBucket.Price, bucket.numOrders, bucketCount)
		}
		if bucket.tail != lastInBucket {
			return fmt.Errorf("bucket %d tail is order %d, chain ends at %d", lastInBucket.Price, bucket.tail.OrderID, lastInBucket.OrderID)
		}
		return nil
	}

	for o := head; o != nil; o = o.prev {
		if o.Action != side {
			return 0, fmt.Errorf("order %d with action %s linked into %s chain", o.OrderID, o.Action, side)
		}
		if o.prev != nil && o.prev.next != o {
			return 0, fmt.Errorf("broken link at order %d", o.OrderID)
		}
		if o.Remaining() <= 0 {
			return 0, fmt.Errorf("order %d rests with no remaining size", o.OrderID)
		}
		if lastInBucket != nil {
			worse := o.Price > lastInBucket.Price
			if side == Bid {
				worse = o.Price < lastInBucket.Price
			}
			if o.Price != lastInBucket.Price && !worse {
				return 0, fmt.Errorf("price %d after better price %d", o.Price, lastInBucket.Price)
			}
		}

		if o.parent != bucket {
			if err := closeBucket(); err != nil {
				return 0, err
			}
			if o.parent == nil {
				return 0, fmt.Errorf("order %d has no bucket", o.OrderID)
			}
			if seenBuckets[o.Price] != nil {
				return 0, fmt.Errorf("price %d appears in two chain segments", o.Price)
			}
			if got := buckets.Get(o.Price); got != o.parent {
				return 0, fmt.Errorf("bucket at price %d not registered in tree", o.Price)
			}
			seenBuckets[o.Price] = o.parent
			bucket = o.parent
			bucketVolume = 0
			bucketCount = 0
		}
		bucketVolume += o.Remaining()
		bucketCount++
		lastInBucket = o

		if got := ob.orderIndex.Get(o.OrderID); got != o {
			return 0, fmt.Errorf("order %d not in index", o.OrderID)
		}
		orders++
	}
	if err := closeBucket(); err != nil {
		return 0, err
	}

	if n := buckets.Size(math.MaxInt); n != len(seenBuckets) {
		return 0, fmt.Errorf("tree holds %d price levels, chain visits %d", n, len(seenBuckets))
	}

	return orders, nil
}
