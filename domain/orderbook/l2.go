package orderbook

// L2MarketData is a preallocated aggregated depth view. FillAsks and
// FillBids write at most cap(prices) levels per side and set the
// corresponding size counter.
type L2MarketData struct {
	AskPrices  []int64
	AskVolumes []int64
	AskOrders  []int64
	BidPrices  []int64
	BidVolumes []int64
	BidOrders  []int64

	AskSize int
	BidSize int
}

// NewL2MarketData allocates a depth view for the given number of
// levels per side.
func NewL2MarketData(depth int) *L2MarketData {
	return &L2MarketData{
		AskPrices:  make([]int64, depth),
		AskVolumes: make([]int64, depth),
		AskOrders:  make([]int64, depth),
		BidPrices:  make([]int64, depth),
		BidVolumes: make([]int64, depth),
		BidOrders:  make([]int64, depth),
	}
}
