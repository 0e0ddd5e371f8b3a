// Package broadcaster publishes journaled trades to a Kafka topic.
// It runs outside the engine, on its own ticker, draining the journal
// outbox: mark SENT, publish, mark ACKED. Delivery is at-least-once;
// a publish failure leaves the record pending for the next drain.
package broadcaster

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"heimdall/infra/journal"
)

type Broadcaster struct {
	journal  *journal.Journal
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

func New(j *journal.Journal, brokers []string, topic string, interval time.Duration, log *zap.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		journal:  j,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log,
	}, nil
}

// Start drains the journal on every tick until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("trade feed broadcaster started", zap.String("topic", b.topic))

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

func (b *Broadcaster) drainOnce() {
	err := b.journal.ScanPending(func(rec journal.Record) error {
		if err := b.journal.MarkSent(rec.Trade.Seq); err != nil {
			return err
		}

		payload, err := json.Marshal(rec.Trade)
		if err != nil {
			return err
		}
		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(rec.Trade.Symbol),
			Value: sarama.ByteEncoder(payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			// Left SENT; retried on the next drain.
			b.log.Warn("trade publish failed",
				zap.Uint64("seq", rec.Trade.Seq), zap.Error(err))
			return nil
		}

		return b.journal.MarkAcked(rec.Trade.Seq)
	})
	if err != nil {
		b.log.Error("journal drain failed", zap.Error(err))
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
