package subscription

import (
	"maps"
	"sync"

	"github.com/rickgao/ledger-notify/internal/model"
)

// Entry is a registered sink together with the token identifying this registration.
// The token changes every time a key is (re)subscribed.
type Entry struct {
	Sink  Sink
	Token uint64
}

// Registry holds object and market subscriptions.
type Registry struct {
	mu sync.Mutex

	objects map[model.ObjectID]Entry
	markets map[model.AssetPair]Entry

	// shared is set once a snapshot references the current maps.
	shared bool

	lastToken uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[model.ObjectID]Entry),
		markets: make(map[model.AssetPair]Entry),
	}
}

// SubscribeObject registers sink for id, replacing any previous sink.
func (r *Registry) SubscribeObject(id model.ObjectID, sink Sink) uint64 {
	return r.SubscribeObjects(sink, id)
}

// SubscribeObjects registers sink for every id, replacing any previous sink for those ids.
// All ids share one token.
func (r *Registry) SubscribeObjects(sink Sink, ids ...model.ObjectID) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ownLocked()
	token := r.nextTokenLocked()
	for _, id := range ids {
		r.objects[id] = Entry{Sink: sink, Token: token}
	}
	return token
}

// UnsubscribeObjects removes the given ids. Unknown ids are ignored.
// Returns the number of subscriptions removed.
func (r *Registry) UnsubscribeObjects(ids ...model.ObjectID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := r.objects[id]; !ok {
			continue
		}
		r.ownLocked()
		delete(r.objects, id)
		removed++
	}
	return removed
}

// SubscribeMarket registers sink for the market, replacing any previous sink.
func (r *Registry) SubscribeMarket(pair model.AssetPair, sink Sink) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ownLocked()
	token := r.nextTokenLocked()
	r.markets[pair] = Entry{Sink: sink, Token: token}
	return token
}

// UnsubscribeMarket removes the market subscription. Returns false if there was none.
func (r *Registry) UnsubscribeMarket(pair model.AssetPair) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.markets[pair]; !ok {
		return false
	}
	r.ownLocked()
	delete(r.markets, pair)
	return true
}

// RemoveObjectIf removes the object subscription only if it is still the registration
// identified by token. Used to drop a faulty sink without clobbering a newer subscription.
func (r *Registry) RemoveObjectIf(id model.ObjectID, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.objects[id]
	if !ok || e.Token != token {
		return false
	}
	r.ownLocked()
	delete(r.objects, id)
	return true
}

// RemoveMarketIf is the market counterpart of RemoveObjectIf.
func (r *Registry) RemoveMarketIf(pair model.AssetPair, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.markets[pair]
	if !ok || e.Token != token {
		return false
	}
	r.ownLocked()
	delete(r.markets, pair)
	return true
}

// CancelAll drops every object and market subscription.
// Snapshots taken earlier are unaffected.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.objects = make(map[model.ObjectID]Entry)
	r.markets = make(map[model.AssetPair]Entry)
	r.shared = false
}

// Snapshot returns an immutable view of the current subscriptions.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.shared = true
	return Snapshot{objects: r.objects, markets: r.markets}
}

// Counts returns the number of object and market subscriptions.
func (r *Registry) Counts() (objects, markets int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects), len(r.markets)
}

// ownLocked copies the maps if a snapshot still references them (caller must hold lock).
func (r *Registry) ownLocked() {
	if !r.shared {
		return
	}
	r.objects = maps.Clone(r.objects)
	r.markets = maps.Clone(r.markets)
	r.shared = false
}

// nextTokenLocked returns a fresh registration token (caller must hold lock).
func (r *Registry) nextTokenLocked() uint64 {
	r.lastToken++
	return r.lastToken
}
