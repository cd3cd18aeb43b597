package orderbook

// EventKind discriminates entries on a command's event chain.
type EventKind uint8

const (
	EventTrade EventKind = iota + 1
	EventReject
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventTrade:
		return "TRADE"
	case EventReject:
		return "REJECT"
	case EventCancel:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

// MatcherEvent is a value-only record attached to the triggering
// command. The core never sends events anywhere; downstream accounting
// consumes the chain. Events are prepended, so the chain holds the
// last trade first.
type MatcherEvent struct {
	Kind EventKind

	// Trade fields.
	MakerOrderID   uint64
	MakerUID       uint64
	TakerUID       uint64
	Price          int64
	Size           int64
	MakerCompleted bool
	TakerCompleted bool

	// For exchange-pair symbols: the bid side's reserve price of the
	// trade, needed to release the right amount of held collateral.
	BidReservePrice int64

	// Reject/cancel fields. Size carries the remaining quantity.

	Next *MatcherEvent
}

// attachTradeEvent prepends a trade record for a fill against maker.
func attachTradeEvent(cmd *Command, maker *Order, takerUID uint64, makerCompleted, takerCompleted bool, tradeSize, bidReservePrice int64) {
	cmd.MatcherEvent = &MatcherEvent{
		Kind:            EventTrade,
		MakerOrderID:    maker.OrderID,
		MakerUID:        maker.UID,
		TakerUID:        takerUID,
		Price:           maker.Price,
		Size:            tradeSize,
		MakerCompleted:  makerCompleted,
		TakerCompleted:  takerCompleted,
		BidReservePrice: bidReservePrice,
		Next:            cmd.MatcherEvent,
	}
}

// attachRejectEvent prepends a reject record for the unfilled
// remainder of a taker order.
func attachRejectEvent(cmd *Command, remainingSize int64) {
	cmd.MatcherEvent = &MatcherEvent{
		Kind: EventReject,
		Size: remainingSize,
		Next: cmd.MatcherEvent,
	}
}

// attachCancelEvent prepends a cancel record for a removed order.
func attachCancelEvent(cmd *Command, order *Order) {
	cmd.MatcherEvent = &MatcherEvent{
		Kind:            EventCancel,
		MakerOrderID:    order.OrderID,
		MakerUID:        order.UID,
		Price:           order.Price,
		Size:            order.Remaining(),
		BidReservePrice: order.ReserveBidPrice,
		Next:            cmd.MatcherEvent,
	}
}
