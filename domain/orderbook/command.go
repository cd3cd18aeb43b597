package orderbook

// ResultCode is the outcome of a book operation. Business rejections
// are normal outcomes, not errors; details travel on the command's
// event chain.
type ResultCode int32

const (
	Success ResultCode = iota
	MatchingUnknownOrderID
	MatchingDuplicateOrderID
	MatchingMoveFailedPriceOverRiskLimit
)

func (r ResultCode) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case MatchingUnknownOrderID:
		return "MATCHING_UNKNOWN_ORDER_ID"
	case MatchingDuplicateOrderID:
		return "MATCHING_DUPLICATE_ORDER_ID"
	case MatchingMoveFailedPriceOverRiskLimit:
		return "MATCHING_MOVE_FAILED_PRICE_OVER_RISK_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// Command is the single input record for place, cancel and move. The
// book writes back Action (annotated with the resting order's side on
// cancel/move) and MatcherEvent (head of the emitted event chain,
// newest event first).
type Command struct {
	OrderID         uint64
	UID             uint64
	Action          Action
	OrderType       OrderType
	Price           int64
	Size            int64
	ReserveBidPrice int64
	Timestamp       int64

	MatcherEvent *MatcherEvent
}
