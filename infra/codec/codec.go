// Package codec holds the protobuf wire encoding of commands and
// execution reports. The same payloads travel through the write-ahead
// log, the outbox and the gRPC API, so replay and downstream consumers
// agree on one format.
package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"matchbook/domain/orderbook"
)

// Execution is the durable record of one applied command: the input,
// the result code and the flattened event chain.
type Execution struct {
	Seq      uint64
	SymbolID uint32
	Code     orderbook.ResultCode
	Command  orderbook.Command
	Events   []orderbook.MatcherEvent
}

// MarshalCommand encodes a command. The event chain is not part of the
// input and is never written.
func MarshalCommand(cmd *orderbook.Command) []byte {
	return appendCommand(nil, cmd)
}

func appendCommand(b []byte, cmd *orderbook.Command) []byte {
	b = appendVarintField(b, 1, cmd.OrderID)
	b = appendVarintField(b, 2, cmd.UID)
	b = appendVarintField(b, 3, uint64(cmd.Action))
	b = appendVarintField(b, 4, uint64(cmd.OrderType))
	b = appendVarintField(b, 5, uint64(cmd.Price))
	b = appendVarintField(b, 6, uint64(cmd.Size))
	b = appendVarintField(b, 7, uint64(cmd.ReserveBidPrice))
	b = appendVarintField(b, 8, uint64(cmd.Timestamp))
	return b
}

// UnmarshalCommand decodes a command payload.
func UnmarshalCommand(b []byte) (orderbook.Command, error) {
	var cmd orderbook.Command
	err := consumeFields(b, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			cmd.OrderID = v
		case 2:
			cmd.UID = v
		case 3:
			cmd.Action = orderbook.Action(v)
		case 4:
			cmd.OrderType = orderbook.OrderType(v)
		case 5:
			cmd.Price = int64(v)
		case 6:
			cmd.Size = int64(v)
		case 7:
			cmd.ReserveBidPrice = int64(v)
		case 8:
			cmd.Timestamp = int64(v)
		}
	}, nil)
	if err != nil {
		return orderbook.Command{}, fmt.Errorf("command: %w", err)
	}
	return cmd, nil
}

func appendEvent(b []byte, ev *orderbook.MatcherEvent) []byte {
	b = appendVarintField(b, 1, uint64(ev.Kind))
	b = appendVarintField(b, 2, ev.MakerOrderID)
	b = appendVarintField(b, 3, ev.MakerUID)
	b = appendVarintField(b, 4, ev.TakerUID)
	b = appendVarintField(b, 5, uint64(ev.Price))
	b = appendVarintField(b, 6, uint64(ev.Size))
	b = appendBoolField(b, 7, ev.MakerCompleted)
	b = appendBoolField(b, 8, ev.TakerCompleted)
	b = appendVarintField(b, 9, uint64(ev.BidReservePrice))
	return b
}

func unmarshalEvent(b []byte) (orderbook.MatcherEvent, error) {
	var ev orderbook.MatcherEvent
	err := consumeFields(b, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			ev.Kind = orderbook.EventKind(v)
		case 2:
			ev.MakerOrderID = v
		case 3:
			ev.MakerUID = v
		case 4:
			ev.TakerUID = v
		case 5:
			ev.Price = int64(v)
		case 6:
			ev.Size = int64(v)
		case 7:
			ev.MakerCompleted = v != 0
		case 8:
			ev.TakerCompleted = v != 0
		case 9:
			ev.BidReservePrice = int64(v)
		}
	}, nil)
	if err != nil {
		return orderbook.MatcherEvent{}, fmt.Errorf("event: %w", err)
	}
	return ev, nil
}

// MarshalExecution encodes an execution report. Events keep the chain
// order (newest first).
func MarshalExecution(e *Execution) []byte {
	var b []byte
	b = appendVarintField(b, 1, e.Seq)
	b = appendVarintField(b, 2, uint64(e.SymbolID))
	b = appendVarintField(b, 3, uint64(e.Code))
	b = appendBytesField(b, 4, appendCommand(nil, &e.Command))
	for i := range e.Events {
		b = appendBytesField(b, 5, appendEvent(nil, &e.Events[i]))
	}
	return b
}

// UnmarshalExecution decodes an execution report.
func UnmarshalExecution(b []byte) (*Execution, error) {
	e := &Execution{}
	err := consumeFields(b, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			e.Seq = v
		case 2:
			e.SymbolID = uint32(v)
		case 3:
			e.Code = orderbook.ResultCode(v)
		}
	}, func(num protowire.Number, raw []byte) error {
		switch num {
		case 4:
			cmd, err := UnmarshalCommand(raw)
			if err != nil {
				return err
			}
			e.Command = cmd
		case 5:
			ev, err := unmarshalEvent(raw)
			if err != nil {
				return err
			}
			e.Events = append(e.Events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("execution: %w", err)
	}
	return e, nil
}

// FlattenEvents copies a command's event chain into a slice, chain
// order preserved.
func FlattenEvents(head *orderbook.MatcherEvent) []orderbook.MatcherEvent {
	var evs []orderbook.MatcherEvent
	for ev := head; ev != nil; ev = ev.Next {
		flat := *ev
		flat.Next = nil
		evs = append(evs, flat)
	}
	return evs
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	var u uint64
	if v {
		u = 1
	}
	return appendVarintField(b, num, u)
}

func appendBytesField(b []byte, num protowire.Number, raw []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, raw)
}

// consumeFields walks a message, dispatching varint fields to onVarint
// and length-delimited fields to onBytes. Unknown fields are skipped.
func consumeFields(b []byte, onVarint func(protowire.Number, uint64), onBytes func(protowire.Number, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if onVarint != nil {
				onVarint(num, v)
			}
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if onBytes != nil {
				if err := onBytes(num, raw); err != nil {
					return err
				}
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}
