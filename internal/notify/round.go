package notify

import (
	"context"
	"time"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/subscription"
)

// State is the engine's broadcast state.
type State int32

const (
	StateIdle    State = iota // no round running, nothing queued
	StateRunning              // a round is delivering
	StatePending              // a round is delivering and more work has been queued
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Round is one broadcast pass over the coalesced units of work.
type Round struct {
	ID      string
	Blocks  []uint64
	Changed model.ChangeSet
	Ops     []model.OpResult
	Started time.Time
}

// newRound merges units in arrival order. A single unit's change set is used as-is.
func newRound(id string, units []model.UnitOfWork) *Round {
	r := &Round{ID: id, Blocks: make([]uint64, 0, len(units)), Started: time.Now()}

	if len(units) == 1 {
		r.Blocks = append(r.Blocks, units[0].Block)
		r.Changed = units[0].ChangeSet
		r.Ops = units[0].Ops
		return r
	}

	r.Changed = model.NewChangeSet()
	for _, u := range units {
		r.Blocks = append(r.Blocks, u.Block)
		r.Changed.Merge(u.ChangeSet)
		r.Ops = append(r.Ops, u.Ops...)
	}
	return r
}

// RoundReport summarizes a finished round.
type RoundReport struct {
	ID               string
	Units            int
	Changed          int
	ObjectDeliveries int
	MarketDeliveries int
	Failures         int
	FetchErrors      int
	PlanErrors       int // dispatcher or aggregator planning panicked
	Unsubscribed     int
	Duration         time.Duration
}

// delivery is one planned sink invocation.
type delivery struct {
	kind  model.NotificationKind
	key   string
	entry subscription.Entry

	// build produces the payload. An error skips the delivery without blaming the sink.
	build func(ctx context.Context) (model.Notification, error)

	// drop removes the subscription if it still belongs to entry.
	drop func() bool
}
