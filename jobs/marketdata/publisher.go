// Package marketdata periodically publishes an aggregated depth
// snapshot to the public feed.
package marketdata

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"matchbook/domain/orderbook"
)

// DepthSource provides consistent depth views; the engine implements
// it under its writer lock.
type DepthSource interface {
	Depth(limit int) *orderbook.L2MarketData
	SymbolID() uint32
}

// Sink receives the encoded snapshots, keyed by symbol id.
type Sink interface {
	Send(ctx context.Context, key, value []byte) error
}

// Level is one aggregated price level of the published book.
type Level struct {
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
	Orders int64 `json:"orders"`
}

// Snapshot is the published depth document.
type Snapshot struct {
	SymbolID  uint32  `json:"symbolId"`
	Timestamp int64   `json:"timestamp"`
	Asks      []Level `json:"asks"`
	Bids      []Level `json:"bids"`
}

type Publisher struct {
	source   DepthSource
	producer Sink
	depth    int
	interval time.Duration
	log      *zap.Logger
}

func NewPublisher(source DepthSource, producer Sink, depth int, interval time.Duration, log *zap.Logger) *Publisher {
	return &Publisher{
		source:   source,
		producer: producer,
		depth:    depth,
		interval: interval,
		log:      log,
	}
}

// Start runs the publish loop until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	p.log.Info("market data publisher started",
		zap.Int("depth", p.depth),
		zap.Duration("interval", p.interval))

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.publishOnce(ctx)
			}
		}
	}()
}

func (p *Publisher) publishOnce(ctx context.Context) {
	data := p.source.Depth(p.depth)

	snap := Snapshot{
		SymbolID:  p.source.SymbolID(),
		Timestamp: time.Now().UnixNano(),
		Asks:      levels(data.AskPrices, data.AskVolumes, data.AskOrders, data.AskSize),
		Bids:      levels(data.BidPrices, data.BidVolumes, data.BidOrders, data.BidSize),
	}

	value, err := json.Marshal(snap)
	if err != nil {
		p.log.Error("encode depth snapshot", zap.Error(err))
		return
	}

	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, snap.SymbolID)

	if err := p.producer.Send(ctx, key, value); err != nil {
		p.log.Warn("publish depth snapshot", zap.Error(err))
	}
}

func levels(prices, volumes, orders []int64, n int) []Level {
	out := make([]Level, n)
	for i := 0; i < n; i++ {
		out[i] = Level{Price: prices[i], Volume: volumes[i], Orders: orders[i]}
	}
	return out
}
