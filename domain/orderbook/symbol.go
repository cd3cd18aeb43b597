package orderbook

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SymbolType selects the risk model applied by move-order checks.
type SymbolType uint8

const (
	CurrencyExchangePair SymbolType = 0
	FuturesContract      SymbolType = 1
)

// SymbolSpec identifies the instrument a book trades. The core only
// reads Type; everything else is carried for snapshots and downstream
// consumers.
type SymbolSpec struct {
	SymbolID uint32
	Type     SymbolType
}

func (s SymbolSpec) writeTo(w io.Writer) error {
	var buf [5]byte
	binary.BigEndian.PutUint32(buf[:4], s.SymbolID)
	buf[4] = byte(s.Type)
	_, err := w.Write(buf[:])
	return err
}

func readSymbolSpec(r io.Reader) (SymbolSpec, error) {
	var buf [5]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return SymbolSpec{}, fmt.Errorf("symbol spec: %w", err)
	}
	return SymbolSpec{
		SymbolID: binary.BigEndian.Uint32(buf[:4]),
		Type:     SymbolType(buf[4]),
	}, nil
}
