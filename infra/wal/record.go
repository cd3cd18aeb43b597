package wal

import "time"

// RecordType tags the command kind so replay can dispatch without
// decoding the payload first.
type RecordType uint8

const (
	RecordPlace RecordType = iota
	RecordCancel
	RecordMove
)

// Record is one durable log entry. Data is an opaque payload; the log
// never inspects it.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

// NewRecord stamps a record with the current wall clock.
func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
