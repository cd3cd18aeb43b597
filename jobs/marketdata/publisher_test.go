package marketdata

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"matchbook/domain/orderbook"
)

type bookSource struct {
	book *orderbook.OrderBook
}

func (s *bookSource) Depth(limit int) *orderbook.L2MarketData {
	data := orderbook.NewL2MarketData(limit)
	s.book.FillAsks(limit, data)
	s.book.FillBids(limit, data)
	return data
}

func (s *bookSource) SymbolID() uint32 { return s.book.SymbolSpec().SymbolID }

type captureSink struct {
	keys   [][]byte
	values [][]byte
}

func (c *captureSink) Send(_ context.Context, key, value []byte) error {
	c.keys = append(c.keys, key)
	c.values = append(c.values, value)
	return nil
}

func TestPublishOnce(t *testing.T) {
	book := orderbook.NewOrderBook(orderbook.SymbolSpec{SymbolID: 9, Type: orderbook.CurrencyExchangePair})
	for i, cmd := range []orderbook.Command{
		{OrderID: 1, UID: 10, Action: orderbook.Ask, Price: 100, Size: 5},
		{OrderID: 2, UID: 10, Action: orderbook.Ask, Price: 100, Size: 2},
		{OrderID: 3, UID: 11, Action: orderbook.Bid, Price: 99, Size: 4},
	} {
		cmd.OrderType = orderbook.GTC
		cmd.Timestamp = int64(i)
		require.Equal(t, orderbook.Success, book.NewOrder(&cmd))
	}

	sink := &captureSink{}
	p := NewPublisher(&bookSource{book: book}, sink, 10, 0, zap.NewNop())
	p.publishOnce(context.Background())

	require.Len(t, sink.values, 1)
	assert.Equal(t, uint32(9), binary.BigEndian.Uint32(sink.keys[0]))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(sink.values[0], &snap))
	assert.Equal(t, uint32(9), snap.SymbolID)
	require.Len(t, snap.Asks, 1)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, Level{Price: 100, Volume: 7, Orders: 2}, snap.Asks[0])
	assert.Equal(t, Level{Price: 99, Volume: 4, Orders: 1}, snap.Bids[0])
	assert.NotZero(t, snap.Timestamp)
}
