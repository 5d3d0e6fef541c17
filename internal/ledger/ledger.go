package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/store"
)

// ErrStaleBlock is returned when a block number does not advance past the last applied one.
var ErrStaleBlock = errors.New("stale block")

// Block is one batch of state changes as produced by the node.
type Block struct {
	Number   uint64           `json:"number"`
	Upserts  []store.Object   `json:"upserts,omitempty"`
	Removals []model.ObjectID `json:"removals,omitempty"`
	Ops      []model.OpResult `json:"ops,omitempty"`
}

// ChangeSet returns the ids written or removed by the block.
func (b Block) ChangeSet() model.ChangeSet {
	cs := make(model.ChangeSet, len(b.Upserts)+len(b.Removals))
	for _, o := range b.Upserts {
		cs.Add(o.ID)
	}
	for _, id := range b.Removals {
		cs.Add(id)
	}
	return cs
}

// Stats contains ledger statistics.
type Stats struct {
	BlocksApplied int64
	LastBlock     uint64
	Listeners     int
}

// Ledger writes blocks to the store and publishes them on its Feed.
type Ledger struct {
	store  store.ObjectStore
	feed   *Feed
	logger *slog.Logger

	mu        sync.Mutex
	lastBlock uint64
	hasBlock  bool // lastBlock is valid; block 0 is a real block
	applied   atomic.Int64
}

// New creates a Ledger writing to s.
func New(s store.ObjectStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  s,
		feed:   NewFeed(logger),
		logger: logger,
	}
}

// Store returns the underlying object store.
func (l *Ledger) Store() store.ObjectStore {
	return l.store
}

// Feed returns the feed listeners register on.
func (l *Ledger) Feed() *Feed {
	return l.feed
}

// Apply writes b and then publishes its unit of work. Blocks must arrive in increasing
// order; a replayed block returns ErrStaleBlock and is not published again.
func (l *Ledger) Apply(ctx context.Context, b Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hasBlock && b.Number <= l.lastBlock {
		return fmt.Errorf("%w: %d <= %d", ErrStaleBlock, b.Number, l.lastBlock)
	}

	if err := l.store.Apply(ctx, b.Upserts, b.Removals); err != nil {
		return fmt.Errorf("apply block %d: %w", b.Number, err)
	}
	l.lastBlock = b.Number
	l.hasBlock = true
	l.applied.Add(1)

	unit := model.UnitOfWork{
		Block:     b.Number,
		ChangeSet: b.ChangeSet(),
		Ops:       b.Ops,
	}
	l.logger.Debug("block applied",
		"block", b.Number,
		"changed", unit.ChangeSet.Len(),
		"ops", len(unit.Ops),
	)

	l.feed.Publish(unit)
	return nil
}

// Stats returns current statistics.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	last := l.lastBlock
	l.mu.Unlock()

	return Stats{
		BlocksApplied: l.applied.Load(),
		LastBlock:     last,
		Listeners:     l.feed.Len(),
	}
}
