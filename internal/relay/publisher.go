package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/IBM/sarama"

	"github.com/rickgao/ledger-notify/internal/model"
)

// ErrPublisherClosed is returned by Deliver after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	Published int64
	Failed    int64
}

// Publisher produces notifications to a Kafka topic. It implements subscription.Sink.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
	closed   atomic.Bool

	published atomic.Int64
	failed    atomic.Int64
}

// NewProducerConfig returns the sarama settings used for relayed notifications.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "ledger-notify"
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

// NewPublisher connects a synchronous producer to brokers.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	return newPublisher(producer, topic, logger), nil
}

func newPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Deliver publishes n keyed by n.Key().
func (p *Publisher) Deliver(ctx context.Context, n model.Notification) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(n.Key()),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(n.Kind)},
			{Key: []byte("round"), Value: []byte(n.Round)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("produce %s: %w", n.Key(), err)
	}
	p.published.Add(1)

	p.logger.Debug("notification relayed",
		"key", n.Key(),
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Stats returns current statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
	}
}

// Close closes the producer.
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.producer.Close()
}
