package orderbook

import (
	"math"

	"matchbook/infra/memory"
)

// OrderBook is a single-symbol limit order book with direct order
// chaining: every resting order is a node of one doubly-linked chain
// per side, ordered best-to-worst, and each price level keeps only an
// aggregate bucket with a tail reference into that chain.
//
// The book is strictly single-writer. It holds no locks; callers must
// serialize all mutating and reading access externally.
type OrderBook struct {
	symbolSpec SymbolSpec

	askBuckets *Index[int64, *Bucket]
	bidBuckets *Index[int64, *Bucket]

	// orderId -> order
	orderIndex *Index[uint64, *Order]

	// Heads of the per-side chains: the best-priced, oldest order.
	// nil iff the side is empty; the head's next is always nil.
	bestAsk *Order
	bestBid *Order

	orders  *memory.Bank[Order]
	buckets *memory.Bank[Bucket]
}

// NewOrderBook creates an empty book for one instrument.
func NewOrderBook(spec SymbolSpec) *OrderBook {
	return &OrderBook{
		symbolSpec: spec,
		askBuckets: NewIndex[int64, *Bucket](),
		bidBuckets: NewIndex[int64, *Bucket](),
		orderIndex: NewIndex[uint64, *Order](),
		orders:     memory.NewBank(func() *Order { return &Order{} }),
		buckets:    memory.NewBank(func() *Bucket { return &Bucket{} }),
	}
}

// SymbolSpec returns the instrument this book trades.
func (ob *OrderBook) SymbolSpec() SymbolSpec { return ob.symbolSpec }

func (ob *OrderBook) sideBuckets(a Action) *Index[int64, *Bucket] {
	if a == Ask {
		return ob.askBuckets
	}
	return ob.bidBuckets
}

// takerView is the matching-relevant slice of an incoming command or a
// moved order.
type takerView struct {
	price           int64
	size            int64
	filled          int64
	reserveBidPrice int64
	action          Action
	uid             uint64
}

// NewOrder matches the command against the opposing side and rests any
// GTC remainder. Trade, reject and cancel details are prepended to
// cmd.MatcherEvent.
func (ob *OrderBook) NewOrder(cmd *Command) ResultCode {
	size := cmd.Size

	// Check if the order is marketable against resting orders.
	filled := ob.tryMatchInstantly(takerView{
		price:           cmd.Price,
		size:            size,
		reserveBidPrice: cmd.ReserveBidPrice,
		action:          cmd.Action,
		uid:             cmd.UID,
	}, cmd)
	if filled == size {
		// Completed before being placed.
		return Success
	}

	if cmd.OrderType == IOC {
		attachRejectEvent(cmd, size-filled)
		return Success
	}

	if ob.orderIndex.Get(cmd.OrderID) != nil {
		// Duplicate order id: could match, but cannot be placed. The
		// partial trades already attached stand.
		attachRejectEvent(cmd, size-filled)
		return MatchingDuplicateOrderID
	}

	order := ob.orders.Get()
	*order = Order{
		OrderID:         cmd.OrderID,
		Price:           cmd.Price,
		Size:            size,
		Filled:          filled,
		ReserveBidPrice: cmd.ReserveBidPrice,
		Action:          cmd.Action,
		UID:             cmd.UID,
		Timestamp:       cmd.Timestamp,
	}

	ob.orderIndex.Put(order.OrderID, order)
	ob.insertOrder(order, nil)

	return Success
}

// tryMatchInstantly consumes opposing liquidity for the taker, walking
// the opposing chain from its head (best price, oldest order) toward
// worse prices via prev. Orders owned by the taker's uid are detached
// without trading and reinserted afterwards. Returns the taker's total
// filled quantity.
func (ob *OrderBook) tryMatchInstantly(taker takerView, cmd *Command) int64 {
	limitPrice := taker.price
	isBid := taker.action == Bid

	var maker *Order
	if isBid {
		maker = ob.bestAsk
		if maker == nil || maker.Price > limitPrice {
			return taker.filled
		}
	} else {
		maker = ob.bestBid
		if maker == nil || maker.Price < limitPrice {
			return taker.filled
		}
	}

	remaining := taker.size - taker.filled
	if remaining == 0 {
		return taker.filled
	}

	priceBucketTail := maker.parent.tail

	// LIFO stack of the taker's own orders met during the walk.
	var skipOwn *Order

	for {
		if maker.UID != taker.uid {
			tradeSize := min(remaining, maker.Remaining())

			maker.Filled += tradeSize
			maker.parent.volume -= tradeSize
			remaining -= tradeSize

			makerCompleted := maker.Size == maker.Filled
			if makerCompleted {
				maker.parent.numOrders--
			}

			bidReservePrice := maker.ReserveBidPrice
			if isBid {
				bidReservePrice = taker.reserveBidPrice
			}
			attachTradeEvent(cmd, maker, taker.uid, makerCompleted, remaining == 0, tradeSize, bidReservePrice)

			if !makerCompleted {
				// Maker has residue -> the taker is exhausted.
				break
			}

			ob.orderIndex.Remove(maker.OrderID)
			// The node stays linked until the cursor advances; the
			// bank never hands it out before then (single writer).
			ob.orders.Put(maker)
		} else {
			// Own order: pretend it is gone, keep it for reinsertion.
			maker.next = skipOwn
			skipOwn = maker
			maker.parent.volume -= maker.Remaining()
			maker.parent.numOrders--
		}

		if maker == priceBucketTail {
			// Bucket exhausted: drop it from the opposing side's tree.
			ob.sideBuckets(taker.action.Opposite()).Remove(maker.Price)
			ob.buckets.Put(maker.parent)

			if maker.prev != nil {
				priceBucketTail = maker.prev.parent.tail
			}
		}

		maker = maker.prev
		if maker == nil || remaining == 0 {
			break
		}
		if isBid {
			if maker.Price > limitPrice {
				break
			}
		} else if maker.Price < limitPrice {
			break
		}
	}

	// Sever the chain after the last consumed order and update the
	// opposing head.
	if maker != nil {
		maker.next = nil
	}
	if isBid {
		ob.bestAsk = maker
	} else {
		ob.bestBid = maker
	}

	// Reinsert skipped own orders at the front of their side. The LIFO
	// traversal restores original arrival order.
	for skipOwn != nil {
		toInsert := skipOwn
		skipOwn = skipOwn.next
		ob.insertOwnOrderIntoFront(toInsert)
	}

	return taker.size - remaining
}

// insertOwnOrderIntoFront restores a self-trade-skipped order at the
// best-priority end of its own side. The order keeps its filled state.
func (ob *OrderBook) insertOwnOrderIntoFront(selfOrder *Order) {
	isAsk := selfOrder.Action == Ask

	var best *Order
	if isAsk {
		best = ob.bestAsk
	} else {
		best = ob.bestBid
	}

	selfOrder.next = nil
	selfOrder.prev = best
	if best != nil {
		best.next = selfOrder
	}
	if isAsk {
		ob.bestAsk = selfOrder
	} else {
		ob.bestBid = selfOrder
	}

	buckets := ob.sideBuckets(selfOrder.Action)
	bucket := buckets.Get(selfOrder.Price)
	if bucket == nil {
		bucket = ob.buckets.Get()
		bucket.tail = selfOrder
		bucket.volume = 0
		bucket.numOrders = 0
		buckets.Put(selfOrder.Price, bucket)
	}
	bucket.numOrders++
	bucket.volume += selfOrder.Remaining()
	selfOrder.parent = bucket
}

// CancelOrder removes a resting order owned by cmd.UID and attaches a
// cancel event carrying the remaining size.
func (ob *OrderBook) CancelOrder(cmd *Command) ResultCode {
	order := ob.orderIndex.Get(cmd.OrderID)
	if order == nil || order.UID != cmd.UID {
		return MatchingUnknownOrderID
	}
	ob.orderIndex.Remove(cmd.OrderID)

	freeBucket := ob.removeOrder(order)
	if freeBucket != nil {
		ob.buckets.Put(freeBucket)
	}

	// Annotate the command with the resting side for events handling.
	cmd.Action = order.Action

	attachCancelEvent(cmd, order)
	ob.orders.Put(order)

	return Success
}

// MoveOrder re-prices a resting order: detach, re-match as a taker at
// the new price, rest the remainder (reusing a freed bucket if the old
// level emptied).
func (ob *OrderBook) MoveOrder(cmd *Command) ResultCode {
	order := ob.orderIndex.Get(cmd.OrderID)
	if order == nil || order.UID != cmd.UID {
		return MatchingUnknownOrderID
	}

	// Risk check for exchange bids: cannot move above the collateral
	// reserved at placement.
	if ob.symbolSpec.Type == CurrencyExchangePair && order.Action == Bid && cmd.Price > order.ReserveBidPrice {
		return MatchingMoveFailedPriceOverRiskLimit
	}

	freeBucket := ob.removeOrder(order)

	order.Price = cmd.Price

	cmd.Action = order.Action

	filled := ob.tryMatchInstantly(takerView{
		price:           order.Price,
		size:            order.Size,
		filled:          order.Filled,
		reserveBidPrice: order.ReserveBidPrice,
		action:          order.Action,
		uid:             order.UID,
	}, cmd)
	if filled == order.Size {
		ob.orderIndex.Remove(cmd.OrderID)
		ob.orders.Put(order)
		if freeBucket != nil {
			ob.buckets.Put(freeBucket)
		}
		return Success
	}

	order.Filled = filled

	ob.insertOrder(order, freeBucket)

	return Success
}

// removeOrder unlinks an order from its bucket and the chain. When the
// bucket empties it is pulled from the price tree and returned to the
// caller for reuse (or pooling).
func (ob *OrderBook) removeOrder(order *Order) *Bucket {
	bucket := order.parent
	bucket.volume -= order.Remaining()
	bucket.numOrders--
	var bucketRemoved *Bucket

	if bucket.tail == order {
		if order.next == nil || order.next.parent != bucket {
			// No same-price successor: the bucket is empty.
			ob.sideBuckets(order.Action).Remove(order.Price)
			bucketRemoved = bucket
		} else {
			bucket.tail = order.next
		}
	}

	if order.next != nil {
		order.next.prev = order.prev
	}
	if order.prev != nil {
		order.prev.next = order.next
	}

	if order == ob.bestAsk {
		ob.bestAsk = order.prev
	} else if order == ob.bestBid {
		ob.bestBid = order.prev
	}

	return bucketRemoved
}

// insertOrder places an order at its price-time position on its own
// side. freeBucket, when non-nil, is a just-emptied bucket the insert
// may reuse instead of going to the pool.
func (ob *OrderBook) insertOrder(order *Order, freeBucket *Bucket) {
	isAsk := order.Action == Ask
	buckets := ob.sideBuckets(order.Action)
	toBucket := buckets.Get(order.Price)

	if toBucket != nil {
		// Existing price level: the order becomes the new tail.
		if freeBucket != nil {
			ob.buckets.Put(freeBucket)
		}

		toBucket.volume += order.Remaining()
		toBucket.numOrders++
		oldTail := toBucket.tail // always exists
		prevOrder := oldTail.prev

		toBucket.tail = order
		oldTail.prev = order
		if prevOrder != nil {
			prevOrder.next = order
		}
		order.next = oldTail
		order.prev = prevOrder
		order.parent = toBucket
		return
	}

	// New price level.
	newBucket := freeBucket
	if newBucket == nil {
		newBucket = ob.buckets.Get()
	}
	newBucket.tail = order
	newBucket.volume = order.Remaining()
	newBucket.numOrders = 1
	order.parent = newBucket
	buckets.Put(order.Price, newBucket)

	// Find the neighbor level toward better prices and splice in front
	// of its tail; with no such neighbor this order is the new best.
	var betterBucket *Bucket
	if isAsk {
		betterBucket = buckets.LowerValue(order.Price)
	} else {
		betterBucket = buckets.HigherValue(order.Price)
	}
	if betterBucket != nil {
		betterTail := betterBucket.tail
		prevOrder := betterTail.prev

		betterTail.prev = order
		if prevOrder != nil {
			prevOrder.next = order
		}
		order.next = betterTail
		order.prev = prevOrder
		return
	}

	var oldBest *Order
	if isAsk {
		oldBest = ob.bestAsk
	} else {
		oldBest = ob.bestBid
	}
	if oldBest != nil {
		oldBest.next = order
	}
	if isAsk {
		ob.bestAsk = order
	} else {
		ob.bestBid = order
	}
	order.next = nil
	order.prev = oldBest
}

/******************** Read-only projections ********************/

// GetOrderByID looks up a resting order. The returned order must be
// treated as read-only.
func (ob *OrderBook) GetOrderByID(orderID uint64) *Order {
	return ob.orderIndex.Get(orderID)
}

// GetOrdersNum counts resting orders on one side.
func (ob *OrderBook) GetOrdersNum(action Action) int {
	total := 0
	ob.sideBuckets(action).Ascend(math.MaxInt, func(_ int64, b *Bucket) bool {
		total += int(b.numOrders)
		return true
	})
	return total
}

// GetTotalOrdersVolume sums remaining quantity on one side.
func (ob *OrderBook) GetTotalOrdersVolume(action Action) int64 {
	var total int64
	ob.sideBuckets(action).Ascend(math.MaxInt, func(_ int64, b *Bucket) bool {
		total += b.volume
		return true
	})
	return total
}

// TotalAskBuckets counts ask price levels up to limit.
func (ob *OrderBook) TotalAskBuckets(limit int) int {
	return ob.askBuckets.Size(limit)
}

// TotalBidBuckets counts bid price levels up to limit.
func (ob *OrderBook) TotalBidBuckets(limit int) int {
	return ob.bidBuckets.Size(limit)
}

// BestAskOrder returns the chain head of the ask side (nil when empty).
func (ob *OrderBook) BestAskOrder() *Order { return ob.bestAsk }

// BestBidOrder returns the chain head of the bid side (nil when empty).
func (ob *OrderBook) BestBidOrder() *Order { return ob.bestBid }

// FindUserOrders collects value copies of all live orders owned by uid,
// in ascending order id.
func (ob *OrderBook) FindUserOrders(uid uint64) []Order {
	var list []Order
	ob.orderIndex.Ascend(math.MaxInt, func(_ uint64, o *Order) bool {
		if o.UID == uid {
			list = append(list, Order{
				OrderID:         o.OrderID,
				Price:           o.Price,
				Size:            o.Size,
				Filled:          o.Filled,
				ReserveBidPrice: o.ReserveBidPrice,
				Action:          o.Action,
				UID:             o.UID,
				Timestamp:       o.Timestamp,
			})
		}
		return true
	})
	return list
}

// AskOrders walks the ask chain from best to worst until fn returns
// false.
func (ob *OrderBook) AskOrders(fn func(*Order) bool) {
	for o := ob.bestAsk; o != nil; o = o.prev {
		if !fn(o) {
			return
		}
	}
}

// BidOrders walks the bid chain from best to worst until fn returns
// false.
func (ob *OrderBook) BidOrders(fn func(*Order) bool) {
	for o := ob.bestBid; o != nil; o = o.prev {
		if !fn(o) {
			return
		}
	}
}

// FillAsks writes up to limit ask levels into data, best first.
func (ob *OrderBook) FillAsks(limit int, data *L2MarketData) {
	if limit > len(data.AskPrices) {
		limit = len(data.AskPrices)
	}
	data.AskSize = 0
	ob.askBuckets.Ascend(limit, func(price int64, b *Bucket) bool {
		i := data.AskSize
		data.AskSize++
		data.AskPrices[i] = price
		data.AskVolumes[i] = b.volume
		data.AskOrders[i] = int64(b.numOrders)
		return true
	})
}

// FillBids writes up to limit bid levels into data, best first.
func (ob *OrderBook) FillBids(limit int, data *L2MarketData) {
	if limit > len(data.BidPrices) {
		limit = len(data.BidPrices)
	}
	data.BidSize = 0
	ob.bidBuckets.Descend(limit, func(price int64, b *Bucket) bool {
		i := data.BidSize
		data.BidSize++
		data.BidPrices[i] = price
		data.BidVolumes[i] = b.volume
		data.BidOrders[i] = int64(b.numOrders)
		return true
	})
}
