package grpcapi

import (
	"fmt"

	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
)

// The command API reuses the engine's wire format: requests are
// encoded commands, responses are encoded execution reports. One
// format for the log, the outbox and the API keeps consumers simple.

type wireMessage interface {
	marshalWire() []byte
	unmarshalWire([]byte) error
}

// PlaceOrderRequest carries a full new-order command.
type PlaceOrderRequest struct {
	Cmd orderbook.Command
}

func (m *PlaceOrderRequest) marshalWire() []byte { return codec.MarshalCommand(&m.Cmd) }

func (m *PlaceOrderRequest) unmarshalWire(b []byte) error {
	cmd, err := codec.UnmarshalCommand(b)
	if err != nil {
		return err
	}
	m.Cmd = cmd
	return nil
}

// CancelOrderRequest identifies the order and its owner.
type CancelOrderRequest struct {
	OrderID uint64
	UID     uint64
}

func (m *CancelOrderRequest) marshalWire() []byte {
	return codec.MarshalCommand(&orderbook.Command{OrderID: m.OrderID, UID: m.UID})
}

func (m *CancelOrderRequest) unmarshalWire(b []byte) error {
	cmd, err := codec.UnmarshalCommand(b)
	if err != nil {
		return err
	}
	m.OrderID, m.UID = cmd.OrderID, cmd.UID
	return nil
}

// MoveOrderRequest re-prices an order; Price is the new price.
type MoveOrderRequest struct {
	OrderID uint64
	UID     uint64
	Price   int64
}

func (m *MoveOrderRequest) marshalWire() []byte {
	return codec.MarshalCommand(&orderbook.Command{OrderID: m.OrderID, UID: m.UID, Price: m.Price})
}

func (m *MoveOrderRequest) unmarshalWire(b []byte) error {
	cmd, err := codec.UnmarshalCommand(b)
	if err != nil {
		return err
	}
	m.OrderID, m.UID, m.Price = cmd.OrderID, cmd.UID, cmd.Price
	return nil
}

// ExecutionResponse is the applied command's report.
type ExecutionResponse struct {
	Exec *codec.Execution
}

func (m *ExecutionResponse) marshalWire() []byte { return codec.MarshalExecution(m.Exec) }

func (m *ExecutionResponse) unmarshalWire(b []byte) error {
	e, err := codec.UnmarshalExecution(b)
	if err != nil {
		return err
	}
	m.Exec = e
	return nil
}

// wireCodec plugs the command encoding into grpc as the server codec.
type wireCodec struct{}

func (wireCodec) Name() string { return "matchbook-wire" }

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("unsupported message type %T", v)
	}
	return m.marshalWire(), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("unsupported message type %T", v)
	}
	return m.unmarshalWire(data)
}
