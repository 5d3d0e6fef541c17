package notify

import (
	"context"
	"encoding/json"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/subscription"
)

// ValueFetcher reads the current value of an object. A nil value with a nil error
// means the object no longer exists.
type ValueFetcher interface {
	Fetch(ctx context.Context, id model.ObjectID) (json.RawMessage, error)
}

// ValueFetcherFunc is a function adapter for ValueFetcher.
type ValueFetcherFunc func(ctx context.Context, id model.ObjectID) (json.RawMessage, error)

// Fetch calls f(ctx, id).
func (f ValueFetcherFunc) Fetch(ctx context.Context, id model.ObjectID) (json.RawMessage, error) {
	return f(ctx, id)
}

// Dispatcher plans object notifications: one delivery per changed id that has a subscriber.
type Dispatcher struct {
	registry *subscription.Registry
	fetcher  ValueFetcher
}

// NewDispatcher creates a Dispatcher reading values through fetcher.
func NewDispatcher(registry *subscription.Registry, fetcher ValueFetcher) *Dispatcher {
	return &Dispatcher{registry: registry, fetcher: fetcher}
}

// Plan intersects the round's change set with the snapshot.
// Values are fetched lazily, inside each delivery.
func (d *Dispatcher) Plan(r *Round, snap subscription.Snapshot) []delivery {
	matches := snap.MatchObjects(r.Changed)
	if len(matches) == 0 {
		return nil
	}

	out := make([]delivery, 0, len(matches))
	for _, m := range matches {
		id := m.ID
		token := m.Entry.Token
		out = append(out, delivery{
			kind:  model.KindObject,
			key:   id.String(),
			entry: m.Entry,
			build: func(ctx context.Context) (model.Notification, error) {
				value, err := d.fetcher.Fetch(ctx, id)
				if err != nil {
					return model.Notification{}, err
				}
				return model.Notification{
					Round:  r.ID,
					Kind:   model.KindObject,
					Blocks: r.Blocks,
					Object: &id,
					Value:  value,
				}, nil
			},
			drop: func() bool { return d.registry.RemoveObjectIf(id, token) },
		})
	}
	return out
}
