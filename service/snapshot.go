package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"matchbook/domain/orderbook"
)

const (
	snapshotFile = "snapshot.bin"
	seqFile      = "snapshot.seq"
)

// SaveSnapshot freezes the book under the writer lock, writes it to a
// temp file, atomically renames it into place and records the covered
// sequence. WAL segments fully covered by the snapshot are dropped.
func (e *Engine) SaveSnapshot(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	e.mu.Lock()
	seq := e.seq.Current()
	tmp, err := os.CreateTemp(dir, "snapshot-*.tmp")
	if err != nil {
		e.mu.Unlock()
		return err
	}
	writeErr := e.book.WriteSnapshot(tmp)
	if writeErr == nil {
		writeErr = e.wal.Sync()
	}
	e.mu.Unlock()

	if writeErr != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", writeErr)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, snapshotFile)); err != nil {
		return err
	}

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	if err := os.WriteFile(filepath.Join(dir, seqFile), seqBuf[:], 0o644); err != nil {
		return err
	}

	e.mu.Lock()
	err = e.wal.TruncateBefore(seq)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("wal truncate: %w", err)
	}

	e.log.Info("snapshot saved", zap.Uint64("seq", seq))
	return nil
}

// LoadSnapshot restores the most recent snapshot, returning the book
// and the sequence it covers. A missing snapshot yields a nil book.
func LoadSnapshot(dir string) (*orderbook.OrderBook, uint64, error) {
	f, err := os.Open(filepath.Join(dir, snapshotFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	defer f.Close()

	book, err := orderbook.NewOrderBookFromSnapshot(f)
	if err != nil {
		return nil, 0, fmt.Errorf("load snapshot: %w", err)
	}

	seqBuf, err := os.ReadFile(filepath.Join(dir, seqFile))
	if err != nil {
		return nil, 0, fmt.Errorf("load snapshot seq: %w", err)
	}
	if len(seqBuf) != 8 {
		return nil, 0, io.ErrUnexpectedEOF
	}

	return book, binary.BigEndian.Uint64(seqBuf), nil
}

// StartSnapshotJob periodically persists the book until ctx is
// cancelled.
func (e *Engine) StartSnapshotJob(ctx context.Context, dir string, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := e.SaveSnapshot(dir); err != nil {
					e.log.Warn("snapshot failed", zap.Error(err))
				}
			}
		}
	}()
}
