package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/rickgao/ledger-notify/internal/model"
)

// objectPrefix namespaces object keys: 'o' | space | type | instance (big endian).
const objectPrefix = 'o'

// Pebble is an ObjectStore backed by an embedded pebble database.
type Pebble struct {
	db *pebble.DB

	// mu is held for reading across every db call and for writing by Close,
	// so no call can reach a closed db.
	mu     sync.RWMutex
	closed bool
}

// OpenPebble opens (or creates) a pebble database in dir.
func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", dir, err)
	}
	return &Pebble{db: db}, nil
}

func objectKey(id model.ObjectID) []byte {
	key := make([]byte, 11)
	key[0] = objectPrefix
	key[1] = id.Space
	key[2] = id.Type
	binary.BigEndian.PutUint64(key[3:], id.Instance)
	return key
}

func (p *Pebble) Fetch(_ context.Context, id model.ObjectID) (json.RawMessage, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	value, closer, err := p.db.Get(objectKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	defer closer.Close()

	// value is only valid until closer is closed.
	return cloneBytes(value), nil
}

func (p *Pebble) FetchMany(ctx context.Context, ids []model.ObjectID) ([]json.RawMessage, error) {
	return fetchEach(ctx, p, ids)
}

func (p *Pebble) Apply(_ context.Context, upserts []Object, removals []model.ObjectID) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	batch := p.db.NewBatch()
	defer batch.Close()

	for _, o := range upserts {
		if err := batch.Set(objectKey(o.ID), o.Value, nil); err != nil {
			return fmt.Errorf("set %s: %w", o.ID, err)
		}
	}
	for _, id := range removals {
		if err := batch.Delete(objectKey(id), nil); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Ping reads a key to confirm the database is open.
func (p *Pebble) Ping(context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	_, closer, err := p.db.Get([]byte{objectPrefix})
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return closer.Close()
}

// Close waits for in-flight calls, then closes the database. Later calls return ErrClosed.
func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
