// Package service coordinates the matching core with its durability
// and delivery infrastructure. The Engine is the only write entry
// point: commands are sequenced, logged, applied and queued for
// publication inside one critical section.
package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
	"matchbook/infra/outbox"
	"matchbook/infra/sequence"
	"matchbook/infra/wal"
)

type Engine struct {
	mu     sync.Mutex
	book   *orderbook.OrderBook
	wal    *wal.WAL
	outbox *outbox.Outbox
	seq    *sequence.Sequencer
	log    *zap.Logger
}

func NewEngine(book *orderbook.OrderBook, w *wal.WAL, ob *outbox.Outbox, seq *sequence.Sequencer, log *zap.Logger) *Engine {
	return &Engine{
		book:   book,
		wal:    w,
		outbox: ob,
		seq:    seq,
		log:    log,
	}
}

// ErrInvalidCommand marks requests rejected before they reach the log.
var ErrInvalidCommand = errors.New("invalid command")

// Place submits a new order. Malformed commands are rejected up front:
// anything appended to the WAL is replayed verbatim after a crash, so
// a bad command must never make it that far.
func (e *Engine) Place(cmd orderbook.Command) (*codec.Execution, error) {
	if err := checkPlace(&cmd); err != nil {
		return nil, err
	}
	return e.apply(wal.RecordPlace, cmd)
}

func checkPlace(cmd *orderbook.Command) error {
	if cmd.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidCommand, cmd.Size)
	}
	if cmd.Price <= 0 {
		return fmt.Errorf("%w: price %d", ErrInvalidCommand, cmd.Price)
	}
	if cmd.Action != orderbook.Ask && cmd.Action != orderbook.Bid {
		return fmt.Errorf("%w: action %d", ErrInvalidCommand, cmd.Action)
	}
	if cmd.OrderType != orderbook.GTC && cmd.OrderType != orderbook.IOC {
		return fmt.Errorf("%w: order type %d", ErrInvalidCommand, cmd.OrderType)
	}
	return nil
}

// Cancel removes a resting order owned by uid.
func (e *Engine) Cancel(orderID, uid uint64) (*codec.Execution, error) {
	return e.apply(wal.RecordCancel, orderbook.Command{OrderID: orderID, UID: uid})
}

// Move re-prices a resting order owned by uid.
func (e *Engine) Move(orderID, uid uint64, newPrice int64) (*codec.Execution, error) {
	return e.apply(wal.RecordMove, orderbook.Command{OrderID: orderID, UID: uid, Price: newPrice})
}

// apply is the write path: log first, mutate second, enqueue third.
// A command that reached the WAL is applied on replay too, so the
// book transition is identical after a crash at any later point.
func (e *Engine) apply(rt wal.RecordType, cmd orderbook.Command) (*codec.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.seq.Next()
	if cmd.Timestamp == 0 {
		// Stamped before the WAL append, so replay sees the same value.
		cmd.Timestamp = time.Now().UnixNano()
	}
	if err := e.wal.Append(wal.NewRecord(rt, seq, codec.MarshalCommand(&cmd))); err != nil {
		return nil, fmt.Errorf("wal append: %w", err)
	}

	code := applyToBook(e.book, rt, &cmd)

	exec := &codec.Execution{
		Seq:      seq,
		SymbolID: e.book.SymbolSpec().SymbolID,
		Code:     code,
		Command:  cmd,
		Events:   codec.FlattenEvents(cmd.MatcherEvent),
	}
	exec.Command.MatcherEvent = nil

	if err := e.outbox.PutNew(seq, codec.MarshalExecution(exec)); err != nil {
		return nil, fmt.Errorf("outbox put: %w", err)
	}

	e.log.Debug("command applied",
		zap.Uint64("seq", seq),
		zap.Uint64("orderId", cmd.OrderID),
		zap.Stringer("code", code))

	return exec, nil
}

func applyToBook(book *orderbook.OrderBook, rt wal.RecordType, cmd *orderbook.Command) orderbook.ResultCode {
	switch rt {
	case wal.RecordPlace:
		return book.NewOrder(cmd)
	case wal.RecordCancel:
		return book.CancelOrder(cmd)
	default:
		return book.MoveOrder(cmd)
	}
}

// Depth returns an aggregated view of up to limit levels per side.
func (e *Engine) Depth(limit int) *orderbook.L2MarketData {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := orderbook.NewL2MarketData(limit)
	e.book.FillAsks(limit, data)
	e.book.FillBids(limit, data)
	return data
}

// SymbolID identifies the instrument served by this engine.
func (e *Engine) SymbolID() uint32 {
	return e.book.SymbolSpec().SymbolID
}

// UserOrders returns copies of uid's live orders, ascending order id.
func (e *Engine) UserOrders(uid uint64) []orderbook.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.FindUserOrders(uid)
}

// OrderByID returns a copy of one live order.
func (e *Engine) OrderByID(orderID uint64) (orderbook.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o := e.book.GetOrderByID(orderID)
	if o == nil {
		return orderbook.Order{}, false
	}
	cp := *o
	cp.ClearLinks()
	return cp, true
}

// Stats is a point-in-time gauge of book occupancy.
type Stats struct {
	Seq       uint64
	AskOrders int
	BidOrders int
	AskVolume int64
	BidVolume int64
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		Seq:       e.seq.Current(),
		AskOrders: e.book.GetOrdersNum(orderbook.Ask),
		BidOrders: e.book.GetOrdersNum(orderbook.Bid),
		AskVolume: e.book.GetTotalOrdersVolume(orderbook.Ask),
		BidVolume: e.book.GetTotalOrdersVolume(orderbook.Bid),
	}
}

// Validate cross-checks the book's internal structures.
func (e *Engine) Validate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.ValidateInternalState()
}

// Close flushes the WAL.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wal.Close()
}
