package orderbook

// Action is the side of an order.
type Action uint8

const (
	Ask Action = 0
	Bid Action = 1
)

func (a Action) String() string {
	if a == Ask {
		return "ASK"
	}
	return "BID"
}

// Opposite returns the other side.
func (a Action) Opposite() Action {
	return 1 - a
}

// OrderType controls what happens to the unmatched remainder of a
// taker order.
type OrderType uint8

const (
	// GTC rests the remainder in the book.
	GTC OrderType = 0
	// IOC rejects the remainder.
	IOC OrderType = 1
)

// Order is a resting order. Besides its value fields it is a link in
// two structures: the parent bucket's tail reference and the side-wide
// doubly-linked priority chain.
type Order struct {
	OrderID uint64
	Price   int64
	Size    int64
	Filled  int64

	// ReserveBidPrice caps fast moves of GTC bids on exchange-pair
	// symbols; ignored for asks and futures.
	ReserveBidPrice int64

	Action    Action
	UID       uint64
	Timestamp int64

	parent *Bucket

	// next points toward the best-priced, oldest end of the chain
	// (nil for the head); prev points toward worse prices.
	next *Order
	prev *Order
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() int64 {
	return o.Size - o.Filled
}

// ClearLinks strips the structural references from a copied order so
// it can leave the book's single-writer section safely.
func (o *Order) ClearLinks() {
	o.parent = nil
	o.next = nil
	o.prev = nil
}
