// Package broadcaster drains the execution outbox to Kafka with
// at-least-once delivery. Entries survive crashes in pebble; a resend
// after an unacknowledged publish is possible and consumers must
// deduplicate by sequence.
package broadcaster

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"matchbook/infra/outbox"
)

// sentTimeout is how long a SENT entry may sit without an outcome
// before it is treated as lost and published again. A crash between
// marking SENT and recording the publish result leaves exactly this
// kind of entry behind.
const sentTimeout = 10 * time.Second

type producer interface {
	SendMessage(*sarama.ProducerMessage) (int32, int64, error)
	Close() error
}

type Broadcaster struct {
	outbox      *outbox.Outbox
	producer    producer
	topic       string
	interval    time.Duration
	sentTimeout time.Duration
	log         *zap.Logger
}

func New(ob *outbox.Outbox, brokers []string, topic string, log *zap.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:      ob,
		producer:    p,
		topic:       topic,
		interval:    250 * time.Millisecond,
		sentTimeout: sentTimeout,
		log:         log,
	}, nil
}

// Start runs the drain loop until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("broadcaster started", zap.String("topic", b.topic))

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.drainOnce()
			}
		}
	}()
}

// drainOnce publishes NEW and previously FAILED entries in sequence
// order, re-publishes SENT entries whose outcome was lost, then clears
// acked ones.
func (b *Broadcaster) drainOnce() {
	for _, state := range []outbox.State{outbox.StateNew, outbox.StateFailed} {
		_ = b.outbox.ScanState(state, func(seq uint64, e outbox.Entry) error {
			b.publish(seq, e.Payload)
			return nil
		})
	}

	// An entry stuck in SENT means the process died between marking it
	// and recording the publish result. After the timeout it is retried
	// like a failed one; consumers deduplicate by sequence.
	cutoff := time.Now().Add(-b.sentTimeout).UnixNano()
	_ = b.outbox.ScanState(outbox.StateSent, func(seq uint64, e outbox.Entry) error {
		if e.LastAttempt <= cutoff {
			b.log.Warn("retrying stuck entry", zap.Uint64("seq", seq))
			b.publish(seq, e.Payload)
		}
		return nil
	})

	_ = b.outbox.ScanState(outbox.StateAcked, func(seq uint64, _ outbox.Entry) error {
		return b.outbox.Delete(seq)
	})
}

func (b *Broadcaster) publish(seq uint64, payload []byte) {
	if err := b.outbox.MarkSent(seq); err != nil {
		b.log.Warn("mark sent", zap.Uint64("seq", seq), zap.Error(err))
		return
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)

	_, _, err := b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		b.log.Warn("publish failed", zap.Uint64("seq", seq), zap.Error(err))
		_ = b.outbox.MarkFailed(seq)
		return
	}

	if err := b.outbox.MarkAcked(seq); err != nil {
		b.log.Warn("mark acked", zap.Uint64("seq", seq), zap.Error(err))
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
