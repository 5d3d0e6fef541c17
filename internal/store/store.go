package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rickgao/ledger-notify/internal/model"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Object is a stored ledger object.
type Object struct {
	ID    model.ObjectID  `json:"id"`
	Value json.RawMessage `json:"value"`
}

// ObjectStore reads and writes ledger objects.
type ObjectStore interface {
	// Fetch returns the current value of id, or nil if it does not exist.
	Fetch(ctx context.Context, id model.ObjectID) (json.RawMessage, error)

	// FetchMany returns values in the order of ids; missing entries are nil.
	FetchMany(ctx context.Context, ids []model.ObjectID) ([]json.RawMessage, error)

	// Apply writes upserts and removals atomically.
	Apply(ctx context.Context, upserts []Object, removals []model.ObjectID) error

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// fetchEach implements FetchMany on top of Fetch.
func fetchEach(ctx context.Context, s ObjectStore, ids []model.ObjectID) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		v, err := s.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
