// Package wal implements a segmented append-only command log. Every
// accepted command is framed, checksummed and written before it is
// applied to the book, so a restart can rebuild the exact book state
// by replaying the log on top of the last snapshot.
package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
)

const headerSize = 1 + 8 + 8 + 4

// Config controls segment placement and rotation.
type Config struct {
	Dir         string
	SegmentSize int64
}

// WAL is a single-writer log; callers serialize Append externally.
type WAL struct {
	dir      string
	segSize  int64
	current  *segment
	segIndex int
}

// Open creates the directory if needed and continues appending to the
// highest existing segment, or starts segment zero.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	index := 0
	if files, err := segmentFiles(cfg.Dir); err == nil && len(files) > 0 {
		last := filepath.Base(files[len(files)-1])
		if _, err := fmt.Sscanf(last, "segment-%06d.wal", &index); err != nil {
			index = len(files) - 1
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		current:  seg,
		segIndex: index,
	}, nil
}

// Append frames and writes one record:
// [type:1][seq:8][time:8][len:4][payload][crc:4]
// The CRC covers header and payload.
func (w *WAL) Append(r *Record) error {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := crc32.ChecksumIEEE(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}

	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

// Sync flushes the current segment to stable storage.
func (w *WAL) Sync() error {
	return w.current.sync()
}

func (w *WAL) rotate() error {
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

// TruncateBefore drops whole segments whose records are all covered by
// a snapshot at seq. The current segment is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	files, err := segmentFiles(w.dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if path == w.current.path {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}

// Close flushes and closes the current segment.
func (w *WAL) Close() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	return w.current.close()
}

func segmentFiles(dir string) ([]string, error) {
	// Zero-padded indexes keep glob order equal to append order.
	return filepath.Glob(filepath.Join(dir, "segment-*.wal"))
}
