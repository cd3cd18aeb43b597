package orderbook

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainIDs(ob *OrderBook, side Action) []uint64 {
	var ids []uint64
	walk := ob.AskOrders
	if side == Bid {
		walk = ob.BidOrders
	}
	walk(func(o *Order) bool {
		ids = append(ids, o.OrderID)
		return true
	})
	return ids
}

func TestSnapshotRoundTrip(t *testing.T) {
	ob := NewOrderBook(testSpec())

	placeGTC(t, ob, 1, 10, Ask, 100, 5)
	placeGTC(t, ob, 2, 11, Ask, 100, 3)
	placeGTC(t, ob, 3, 10, Ask, 102, 7)
	placeGTC(t, ob, 4, 12, Bid, 99, 4)
	placeGTC(t, ob, 5, 12, Bid, 97, 6)
	placeGTC(t, ob, 6, 13, Bid, 99, 2)

	// Leave a partial fill behind so Filled state is exercised.
	placeGTC(t, ob, 7, 20, Bid, 100, 2)
	require.Equal(t, int64(3), ob.GetOrderByID(1).Remaining())

	var buf bytes.Buffer
	require.NoError(t, ob.WriteSnapshot(&buf))

	loaded, err := NewOrderBookFromSnapshot(&buf)
	require.NoError(t, err)
	require.NoError(t, loaded.ValidateInternalState())

	assert.Equal(t, ob.SymbolSpec(), loaded.SymbolSpec())
	assert.Equal(t, chainIDs(ob, Ask), chainIDs(loaded, Ask))
	assert.Equal(t, chainIDs(ob, Bid), chainIDs(loaded, Bid))
	assert.Equal(t, ob.GetTotalOrdersVolume(Ask), loaded.GetTotalOrdersVolume(Ask))
	assert.Equal(t, ob.GetTotalOrdersVolume(Bid), loaded.GetTotalOrdersVolume(Bid))

	o1 := loaded.GetOrderByID(1)
	require.NotNil(t, o1)
	assert.Equal(t, int64(2), o1.Filled)
	assert.Equal(t, uint64(10), o1.UID)
	assert.Equal(t, int64(1), o1.Timestamp)

	want := NewL2MarketData(10)
	got := NewL2MarketData(10)
	ob.FillAsks(10, want)
	ob.FillBids(10, want)
	loaded.FillAsks(10, got)
	loaded.FillBids(10, got)
	assert.Equal(t, want, got)
}

func TestPlaceCancelRestoresBook(t *testing.T) {
	ob := NewOrderBook(testSpec())
	placeGTC(t, ob, 1, 10, Ask, 100, 5)
	placeGTC(t, ob, 2, 11, Bid, 98, 4)

	var before bytes.Buffer
	require.NoError(t, ob.WriteSnapshot(&before))

	placeGTC(t, ob, 3, 12, Bid, 99, 7)
	require.Equal(t, Success, ob.CancelOrder(&Command{OrderID: 3, UID: 12}))

	var after bytes.Buffer
	require.NoError(t, ob.WriteSnapshot(&after))
	assert.Equal(t, before.Bytes(), after.Bytes())
	require.NoError(t, ob.ValidateInternalState())
}

func TestSnapshotEmptyBook(t *testing.T) {
	ob := NewOrderBook(testSpec())

	var buf bytes.Buffer
	require.NoError(t, ob.WriteSnapshot(&buf))
	assert.Equal(t, 1+5+4, buf.Len())

	loaded, err := NewOrderBookFromSnapshot(&buf)
	require.NoError(t, err)
	assert.Nil(t, loaded.BestAskOrder())
	assert.Nil(t, loaded.BestBidOrder())
	require.NoError(t, loaded.ValidateInternalState())
}

func TestSnapshotSingleCountLayout(t *testing.T) {
	ob := NewOrderBook(testSpec())
	placeGTC(t, ob, 1, 10, Ask, 101, 5)
	placeGTC(t, ob, 2, 10, Ask, 102, 3)
	placeGTC(t, ob, 3, 11, Bid, 99, 4)

	var buf bytes.Buffer
	require.NoError(t, ob.WriteSnapshot(&buf))

	// tag, symbol spec, one total count, then the flat record stream.
	raw := buf.Bytes()
	require.Equal(t, 1+5+4+3*orderRecordSize, len(raw))
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(raw[6:10]))

	// Ask records precede bid records.
	rec := func(i int) []byte { return raw[10+i*orderRecordSize:] }
	assert.Equal(t, byte(Ask), rec(0)[40])
	assert.Equal(t, byte(Ask), rec(1)[40])
	assert.Equal(t, byte(Bid), rec(2)[40])

	loaded, err := NewOrderBookFromSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, chainIDs(ob, Ask), chainIDs(loaded, Ask))
	assert.Equal(t, chainIDs(ob, Bid), chainIDs(loaded, Bid))
	require.NoError(t, loaded.ValidateInternalState())
}

func TestSnapshotRejectsUnknownTag(t *testing.T) {
	_, err := NewOrderBookFromSnapshot(bytes.NewReader([]byte{7}))
	require.Error(t, err)
}

func TestSnapshotTruncated(t *testing.T) {
	ob := NewOrderBook(testSpec())
	placeGTC(t, ob, 1, 10, Ask, 100, 5)

	var buf bytes.Buffer
	require.NoError(t, ob.WriteSnapshot(&buf))

	_, err := NewOrderBookFromSnapshot(bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
	require.Error(t, err)
}

func TestLoadedBookAcceptsNewOrders(t *testing.T) {
	ob := NewOrderBook(testSpec())
	placeGTC(t, ob, 1, 10, Ask, 100, 5)

	var buf bytes.Buffer
	require.NoError(t, ob.WriteSnapshot(&buf))
	loaded, err := NewOrderBookFromSnapshot(&buf)
	require.NoError(t, err)

	cmd := &Command{OrderID: 2, UID: 20, Action: Bid, OrderType: GTC, Price: 100, Size: 5}
	require.Equal(t, Success, loaded.NewOrder(cmd))
	require.NotNil(t, cmd.MatcherEvent)
	assert.True(t, cmd.MatcherEvent.MakerCompleted)
	require.NoError(t, loaded.ValidateInternalState())
}
