package relay

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/notify"
	"github.com/rickgao/ledger-notify/internal/subscription"
)

// maxRearmDelay caps how many rounds a dropped relay subscription sits out.
const maxRearmDelay = 32

// rearmDelay returns the rounds to skip after the streak-th consecutive drop.
func rearmDelay(streak int) int {
	if streak < 1 {
		return 1
	}
	if streak > 6 {
		return maxRearmDelay
	}
	return 1 << (streak - 1)
}

// Relay keeps a fixed set of subscriptions pointed at one sink.
type Relay struct {
	objects []model.ObjectID
	markets []model.AssetPair
	sink    subscription.Sink
	logger  *slog.Logger

	engine  atomic.Pointer[notify.Engine]
	rearmed atomic.Int64

	mu      sync.Mutex
	pending bool // keys were dropped and wait to be re-armed
	wait    int  // rounds left before re-arming
	streak  int  // drops without a clean delivery in between
}

// New creates a relay for objects and markets delivering to sink.
func New(objects []model.ObjectID, markets []model.AssetPair, sink subscription.Sink, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		objects: objects,
		markets: markets,
		sink:    sink,
		logger:  logger,
	}
}

// Install subscribes every relayed key on e. The relay should be one of e's observers
// so that keys dropped after a failed publish come back.
func (r *Relay) Install(e *notify.Engine) {
	r.engine.Store(e)
	if len(r.objects) > 0 {
		e.SubscribeToObjects(r.sink, r.objects...)
	}
	for _, p := range r.markets {
		e.SubscribeToMarket(r.sink, p.A, p.B)
	}
	r.logger.Info("relay installed", "objects", len(r.objects), "markets", len(r.markets))
}

// ObserveRound re-arms subscriptions the engine dropped. Dropped keys sit out at least
// one round; the wait doubles with each drop that follows a re-arm without a clean
// delivery in between.
func (r *Relay) ObserveRound(report notify.RoundReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if report.Unsubscribed > 0 && !r.pending {
		r.streak++
		r.wait = rearmDelay(r.streak)
		r.pending = true
		r.logger.Warn("relay subscriptions dropped", "round", report.ID, "keys", report.Unsubscribed, "rearm_after_rounds", r.wait)
		return
	}
	if !r.pending {
		if report.Failures == 0 && report.ObjectDeliveries+report.MarketDeliveries > 0 {
			r.streak = 0
		}
		return
	}

	r.wait--
	if r.wait > 0 {
		return
	}
	r.pending = false
	r.rearm(report.ID)
}

// rearm subscribes every relayed key missing from the engine's registry.
func (r *Relay) rearm(round string) {
	e := r.engine.Load()
	if e == nil {
		return
	}

	snap := e.Registry().Snapshot()
	var missing []model.ObjectID
	for _, id := range r.objects {
		if _, ok := snap.Object(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		e.SubscribeToObjects(r.sink, missing...)
	}

	n := len(missing)
	for _, p := range r.markets {
		if _, ok := snap.Market(p); !ok {
			e.SubscribeToMarket(r.sink, p.A, p.B)
			n++
		}
	}

	if n > 0 {
		r.rearmed.Add(int64(n))
		r.logger.Info("relay subscriptions re-armed", "round", round, "keys", n)
	}
}

// Rearmed returns how many subscriptions have been restored so far.
func (r *Relay) Rearmed() int64 {
	return r.rearmed.Load()
}
