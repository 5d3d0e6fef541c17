package ledger

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/ledger-notify/internal/model"
)

// Listener is told about every applied unit of work. OnApplied must not block.
type Listener interface {
	OnApplied(unit model.UnitOfWork)
}

// ListenerFunc is a function adapter for Listener.
type ListenerFunc func(unit model.UnitOfWork)

// OnApplied calls f(unit).
func (f ListenerFunc) OnApplied(unit model.UnitOfWork) {
	f(unit)
}

// Feed fans applied units out to listeners in registration order.
type Feed struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
	logger    *slog.Logger
}

// NewFeed creates an empty feed.
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		listeners: make(map[uint64]Listener),
		logger:    logger,
	}
}

// Register adds l and returns a function that removes it. The function is idempotent.
func (f *Feed) Register(l Listener) (unregister func()) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = l
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// Len returns the number of registered listeners.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}

// Publish hands unit to every listener. A panicking listener is logged and skipped.
func (f *Feed) Publish(unit model.UnitOfWork) {
	f.mu.RLock()
	ids := make([]uint64, 0, len(f.listeners))
	for id := range f.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = f.listeners[id]
	}
	f.mu.RUnlock()

	for _, l := range listeners {
		f.notify(l, unit)
	}
}

func (f *Feed) notify(l Listener, unit model.UnitOfWork) {
	defer func() {
		if v := recover(); v != nil {
			f.logger.Error("listener panicked", "block", unit.Block, "panic", v)
		}
	}()
	l.OnApplied(unit)
}
