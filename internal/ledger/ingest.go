package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// BlockApplier is satisfied by *Ledger.
type BlockApplier interface {
	Apply(ctx context.Context, b Block) error
}

// IngesterConfig holds Kafka consumer settings.
type IngesterConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration

	RetryBaseWait time.Duration // Default: 100ms
	RetryMaxWait  time.Duration // Default: 5s
}

// IngesterStats contains ingest statistics.
type IngesterStats struct {
	Received     int64
	Applied      int64
	Stale        int64
	DecodeErrors int64
	ApplyErrors  int64
}

// messageReader is the subset of *kafka.Reader the ingester uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Ingester consumes JSON-encoded blocks from Kafka and applies them in offset order.
// A message is committed once its block is applied, found stale, or found undecodable.
type Ingester struct {
	cfg     IngesterConfig
	reader  messageReader
	applier BlockApplier
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	received     atomic.Int64
	applied      atomic.Int64
	stale        atomic.Int64
	decodeErrors atomic.Int64
	applyErrors  atomic.Int64
}

// NewIngester creates an ingester reading cfg.Topic as consumer group cfg.GroupID.
func NewIngester(cfg IngesterConfig, applier BlockApplier, logger *slog.Logger) *Ingester {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	})
	return newIngester(cfg, reader, applier, logger)
}

func newIngester(cfg IngesterConfig, reader messageReader, applier BlockApplier, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryBaseWait == 0 {
		cfg.RetryBaseWait = 100 * time.Millisecond
	}
	if cfg.RetryMaxWait == 0 {
		cfg.RetryMaxWait = 5 * time.Second
	}
	return &Ingester{
		cfg:     cfg,
		reader:  reader,
		applier: applier,
		logger:  logger,
	}
}

// Start begins consuming.
func (in *Ingester) Start(ctx context.Context) error {
	in.ctx, in.cancel = context.WithCancel(ctx)

	in.wg.Add(1)
	go in.consumeLoop()

	in.logger.Info("block ingester started",
		"topic", in.cfg.Topic,
		"group", in.cfg.GroupID,
		"brokers", in.cfg.Brokers,
	)
	return nil
}

// Stop halts consumption and closes the reader.
func (in *Ingester) Stop(ctx context.Context) error {
	in.logger.Info("stopping block ingester")

	if in.cancel != nil {
		in.cancel()
	}

	done := make(chan struct{})
	go func() {
		in.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		in.logger.Info("block ingester stopped")
	case <-ctx.Done():
		in.logger.Warn("block ingester stop timed out")
	}

	return in.reader.Close()
}

// Stats returns current statistics.
func (in *Ingester) Stats() IngesterStats {
	return IngesterStats{
		Received:     in.received.Load(),
		Applied:      in.applied.Load(),
		Stale:        in.stale.Load(),
		DecodeErrors: in.decodeErrors.Load(),
		ApplyErrors:  in.applyErrors.Load(),
	}
}

func (in *Ingester) consumeLoop() {
	defer in.wg.Done()

	for {
		msg, err := in.reader.FetchMessage(in.ctx)
		if err != nil {
			if in.ctx.Err() != nil {
				return
			}
			in.logger.Warn("fetch message failed", "error", err)
			if !in.sleep(in.cfg.RetryBaseWait) {
				return
			}
			continue
		}
		in.received.Add(1)

		if !in.handle(msg) {
			return
		}

		if err := in.reader.CommitMessages(in.ctx, msg); err != nil && in.ctx.Err() == nil {
			in.logger.Warn("commit failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// handle decodes and applies one message, retrying apply failures with exponential
// backoff. Returns false if the ingester is stopping.
func (in *Ingester) handle(msg kafka.Message) bool {
	var b Block
	if err := json.Unmarshal(msg.Value, &b); err != nil {
		in.decodeErrors.Add(1)
		in.logger.Error("undecodable block, skipping",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return true
	}

	wait := in.cfg.RetryBaseWait
	for {
		err := in.applier.Apply(in.ctx, b)
		switch {
		case err == nil:
			in.applied.Add(1)
			return true
		case errors.Is(err, ErrStaleBlock):
			in.stale.Add(1)
			in.logger.Debug("stale block skipped", "block", b.Number)
			return true
		}

		in.applyErrors.Add(1)
		in.logger.Warn("apply block failed, retrying",
			"block", b.Number,
			"retry_in", wait,
			"error", err,
		)
		if !in.sleep(wait) {
			return false
		}
		wait *= 2
		if wait > in.cfg.RetryMaxWait {
			wait = in.cfg.RetryMaxWait
		}
	}
}

func (in *Ingester) sleep(d time.Duration) bool {
	select {
	case <-in.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
