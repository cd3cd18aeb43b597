package orderbook

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// snapshotTag identifies the direct-chain book layout in snapshots.
const snapshotTag byte = 2

const orderRecordSize = 57

// WriteSnapshot serializes the full book state: one total order count,
// then the ask chain followed by the bid chain. Each side is written
// best to worst, oldest first within a price level, so loading the
// records in order rebuilds identical chains.
func (ob *OrderBook) WriteSnapshot(w io.Writer) error {
	if _, err := w.Write([]byte{snapshotTag}); err != nil {
		return err
	}
	if err := ob.symbolSpec.writeTo(w); err != nil {
		return err
	}
	var countBuf [4]byte
	total := ob.GetOrdersNum(Ask) + ob.GetOrdersNum(Bid)
	binary.BigEndian.PutUint32(countBuf[:], uint32(total))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}
	if err := ob.writeChain(w, ob.bestAsk); err != nil {
		return fmt.Errorf("ask side: %w", err)
	}
	if err := ob.writeChain(w, ob.bestBid); err != nil {
		return fmt.Errorf("bid side: %w", err)
	}
	return nil
}

func (ob *OrderBook) writeChain(w io.Writer, head *Order) error {
	var buf [orderRecordSize]byte
	for o := head; o != nil; o = o.prev {
		writeOrderRecord(buf[:], o)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeOrderRecord(buf []byte, o *Order) {
	binary.BigEndian.PutUint64(buf[0:], o.OrderID)
	binary.BigEndian.PutUint64(buf[8:], uint64(o.Price))
	binary.BigEndian.PutUint64(buf[16:], uint64(o.Size))
	binary.BigEndian.PutUint64(buf[24:], uint64(o.Filled))
	binary.BigEndian.PutUint64(buf[32:], uint64(o.ReserveBidPrice))
	buf[40] = byte(o.Action)
	binary.BigEndian.PutUint64(buf[41:], o.UID)
	binary.BigEndian.PutUint64(buf[49:], uint64(o.Timestamp))
}

func readOrderRecord(buf []byte, o *Order) {
	o.OrderID = binary.BigEndian.Uint64(buf[0:])
	o.Price = int64(binary.BigEndian.Uint64(buf[8:]))
	o.Size = int64(binary.BigEndian.Uint64(buf[16:]))
	o.Filled = int64(binary.BigEndian.Uint64(buf[24:]))
	o.ReserveBidPrice = int64(binary.BigEndian.Uint64(buf[32:]))
	o.Action = Action(buf[40])
	o.UID = binary.BigEndian.Uint64(buf[41:])
	o.Timestamp = int64(binary.BigEndian.Uint64(buf[49:]))
}

// NewOrderBookFromSnapshot rebuilds a book from a WriteSnapshot stream.
func NewOrderBookFromSnapshot(r io.Reader) (*OrderBook, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, fmt.Errorf("snapshot tag: %w", err)
	}
	if tag[0] != snapshotTag {
		return nil, fmt.Errorf("unknown snapshot layout tag %d", tag[0])
	}

	spec, err := readSymbolSpec(r)
	if err != nil {
		return nil, err
	}
	ob := NewOrderBook(spec)

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, fmt.Errorf("order count: %w", err)
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	if count > math.MaxInt32 {
		return nil, fmt.Errorf("implausible order count %d", count)
	}

	// Each record carries its own side, so the ask and bid streams are
	// consumed by one loop over the total count.
	var buf [orderRecordSize]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("order record %d: %w", i, err)
		}
		order := ob.orders.Get()
		*order = Order{}
		readOrderRecord(buf[:], order)
		ob.orderIndex.Put(order.OrderID, order)
		ob.insertOrder(order, nil)
	}
	return ob, nil
}
