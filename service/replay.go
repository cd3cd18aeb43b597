package service

import (
	"fmt"

	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
	"matchbook/infra/sequence"
	"matchbook/infra/wal"
)

// ReplayFromWAL rebuilds book state by re-applying every logged
// command above afterSeq, then resumes the sequencer. Events produced
// during replay are discarded; the outbox already holds what was
// enqueued before the crash. Must run before accepting traffic.
func ReplayFromWAL(dir string, afterSeq uint64, book *orderbook.OrderBook, seq *sequence.Sequencer, log *zap.Logger) error {
	applied := 0
	lastSeq, err := wal.Replay(dir, afterSeq, func(rec *wal.Record) error {
		cmd, err := codec.UnmarshalCommand(rec.Data)
		if err != nil {
			return fmt.Errorf("seq %d: %w", rec.Seq, err)
		}
		applyToBook(book, rec.Type, &cmd)
		applied++
		return nil
	})
	if err != nil {
		return fmt.Errorf("wal replay: %w", err)
	}

	if err := book.ValidateInternalState(); err != nil {
		return fmt.Errorf("book state after replay: %w", err)
	}

	seq.Reset(lastSeq)
	log.Info("wal replay completed",
		zap.Uint64("afterSeq", afterSeq),
		zap.Uint64("lastSeq", lastSeq),
		zap.Int("applied", applied))
	return nil
}
