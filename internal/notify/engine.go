package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/subscription"
)

// Config holds engine settings.
type Config struct {
	MaxConcurrentDeliveries int           // Default: 64. Deliveries in flight per round.
	DeliveryTimeout         time.Duration // Default: 0 (no timeout).
	IntakeCapacity          int           // Default: 16. Initial intake ring size; it grows.
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentDeliveries: 64,
		IntakeCapacity:          16,
	}
}

// Observer is told about every finished round.
type Observer interface {
	ObserveRound(report RoundReport)
}

// ObserverFunc is a function adapter for Observer.
type ObserverFunc func(report RoundReport)

// ObserveRound calls f(report).
func (f ObserverFunc) ObserveRound(report RoundReport) {
	f(report)
}

// Observers fans a report out to every observer in order.
type Observers []Observer

// ObserveRound calls ObserveRound on each observer.
func (obs Observers) ObserveRound(report RoundReport) {
	for _, o := range obs {
		o.ObserveRound(report)
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports finished rounds to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithRegistry uses an existing registry instead of a fresh one.
func WithRegistry(r *subscription.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// Stats contains engine statistics.
type Stats struct {
	State            State
	Objects          int
	Markets          int
	Rounds           int64
	UnitsReceived    int64
	UnitsDropped     int64
	ObjectDeliveries int64
	MarketDeliveries int64
	Failures         int64
	FetchErrors      int64
	PlanErrors       int64
	Unsubscribed     int64
	Queue            QueueStats
}

// Engine owns a subscription registry and broadcasts applied units of work to it.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	registry   *subscription.Registry
	dispatcher *Dispatcher
	aggregator *Aggregator
	observer   Observer

	queue   *intakeQueue[model.UnitOfWork]
	state   atomic.Int32
	inRound atomic.Bool

	// Lifecycle
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	rounds           atomic.Int64
	unitsReceived    atomic.Int64
	unitsDropped     atomic.Int64
	objectDeliveries atomic.Int64
	marketDeliveries atomic.Int64
	failures         atomic.Int64
	fetchErrors      atomic.Int64
	planErrors       atomic.Int64
	unsubscribed     atomic.Int64
}

// NewEngine creates an engine. fetcher supplies object values, classifier maps
// operations to markets; a nil classifier disables market notifications.
func NewEngine(cfg Config, fetcher ValueFetcher, classifier Classifier, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentDeliveries <= 0 {
		cfg.MaxConcurrentDeliveries = DefaultConfig().MaxConcurrentDeliveries
	}
	if cfg.IntakeCapacity <= 0 {
		cfg.IntakeCapacity = DefaultConfig().IntakeCapacity
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		queue:  newIntakeQueue[model.UnitOfWork](cfg.IntakeCapacity),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = subscription.NewRegistry()
	}
	e.dispatcher = NewDispatcher(e.registry, fetcher)
	e.aggregator = NewAggregator(e.registry, classifier)
	return e
}

// Start launches the round worker.
func (e *Engine) Start(ctx context.Context) error {
	if e.queue.Closed() {
		return ErrEngineStopped
	}
	e.startOnce.Do(func() {
		e.ctx, e.cancel = context.WithCancel(ctx)
		e.wg.Add(1)
		go e.run()
	})
	return nil
}

// Stop rejects new units, lets the worker finish what is queued, and waits for it.
// If ctx expires first, in-flight deliveries are cancelled.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() {
		e.queue.Close()
	})
	if e.cancel == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.logger.Warn("notify engine stop timed out, cancelling deliveries")
		e.cancel()
		<-done
		return ctx.Err()
	}
}

// OnApplied queues a unit of work for broadcast. It never blocks.
func (e *Engine) OnApplied(unit model.UnitOfWork) {
	if !e.queue.Push(unit) {
		e.unitsDropped.Add(1)
		e.logger.Debug("unit dropped, engine stopped", "block", unit.Block)
		return
	}
	e.unitsReceived.Add(1)
	e.state.CompareAndSwap(int32(StateRunning), int32(StatePending))
}

// Registry returns the engine's subscription registry.
func (e *Engine) Registry() *subscription.Registry {
	return e.registry
}

// SubscribeToObjects routes changes of ids to sink, replacing earlier sinks for those ids.
func (e *Engine) SubscribeToObjects(sink subscription.Sink, ids ...model.ObjectID) {
	e.registry.SubscribeObjects(sink, ids...)
}

// UnsubscribeFromObjects drops the subscriptions for ids. Unknown ids are ignored.
func (e *Engine) UnsubscribeFromObjects(ids ...model.ObjectID) {
	e.registry.UnsubscribeObjects(ids...)
}

// SubscribeToMarket routes operations affecting market (a, b) to sink.
func (e *Engine) SubscribeToMarket(sink subscription.Sink, a, b model.ObjectID) {
	e.registry.SubscribeMarket(model.NewAssetPair(a, b), sink)
}

// UnsubscribeFromMarket drops the subscription for market (a, b).
func (e *Engine) UnsubscribeFromMarket(a, b model.ObjectID) {
	e.registry.UnsubscribeMarket(model.NewAssetPair(a, b))
}

// CancelAllSubscriptions drops every subscription. A running round finishes
// with the snapshot it already holds.
func (e *Engine) CancelAllSubscriptions() {
	e.registry.CancelAll()
}

// Stats returns current statistics.
func (e *Engine) Stats() Stats {
	objects, markets := e.registry.Counts()
	return Stats{
		State:            State(e.state.Load()),
		Objects:          objects,
		Markets:          markets,
		Rounds:           e.rounds.Load(),
		UnitsReceived:    e.unitsReceived.Load(),
		UnitsDropped:     e.unitsDropped.Load(),
		ObjectDeliveries: e.objectDeliveries.Load(),
		MarketDeliveries: e.marketDeliveries.Load(),
		Failures:         e.failures.Load(),
		FetchErrors:      e.fetchErrors.Load(),
		PlanErrors:       e.planErrors.Load(),
		Unsubscribed:     e.unsubscribed.Load(),
		Queue:            e.queue.Stats(),
	}
}

// run is the round worker. It is the only caller of runRound.
func (e *Engine) run() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.queue.Ready():
		}

		for {
			units := e.queue.DrainAll()
			if len(units) == 0 {
				break
			}
			e.state.Store(int32(StateRunning))
			e.runRound(units)
		}
		e.state.Store(int32(StateIdle))

		// Close signals Ready once more; exit only after the final drain.
		if e.queue.Closed() && e.queue.Len() == 0 {
			return
		}
	}
}

func (e *Engine) runRound(units []model.UnitOfWork) {
	if !e.inRound.CompareAndSwap(false, true) {
		panic(ErrConcurrentRound)
	}
	defer e.inRound.Store(false)

	r := newRound(uuid.NewString(), units)
	report := RoundReport{ID: r.ID, Units: len(units), Changed: r.Changed.Len()}

	snap := e.registry.Snapshot()
	var deliveries []delivery
	if !snap.Empty() {
		for _, p := range []struct {
			name string
			fn   func(*Round, subscription.Snapshot) []delivery
		}{
			{"objects", e.dispatcher.Plan},
			{"markets", e.aggregator.Plan},
		} {
			planned, err := plan(p.fn, r, snap)
			if err != nil {
				report.PlanErrors++
				e.logger.Error("round planning failed, skipping", "round", r.ID, "plan", p.name, "error", err)
				continue
			}
			deliveries = append(deliveries, planned...)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.cfg.MaxConcurrentDeliveries)

	for _, d := range deliveries {
		g.Go(func() error {
			err := e.deliver(d)

			var removed bool
			if errors.Is(err, ErrDeliveryFailed) {
				removed = d.drop()
			}

			mu.Lock()
			switch {
			case errors.Is(err, ErrDeliveryFailed):
				report.Failures++
				if removed {
					report.Unsubscribed++
				}
			case err != nil:
				report.FetchErrors++
			case d.kind == model.KindObject:
				report.ObjectDeliveries++
			default:
				report.MarketDeliveries++
			}
			mu.Unlock()

			switch {
			case errors.Is(err, ErrDeliveryFailed):
				e.logger.Warn("delivery failed",
					"round", r.ID,
					"kind", d.kind,
					"key", d.key,
					"unsubscribed", removed,
					"error", err,
				)
			case err != nil:
				e.logger.Warn("fetch failed, skipping object",
					"round", r.ID,
					"key", d.key,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(r.Started)
	e.record(report)

	e.logger.Debug("round complete",
		"round", r.ID,
		"units", report.Units,
		"changed", report.Changed,
		"objects", report.ObjectDeliveries,
		"markets", report.MarketDeliveries,
		"failures", report.Failures,
		"duration", report.Duration,
	)
}

// deliver builds and hands one notification to its sink. Sink errors and panics come
// back as *DeliveryError; build errors and panics are returned unwrapped.
func (e *Engine) deliver(d delivery) (err error) {
	ctx := e.ctx
	if e.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.DeliveryTimeout)
		defer cancel()
	}

	building := true
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		if building {
			err = panicError{value: v}
			return
		}
		err = &DeliveryError{Kind: d.kind, Key: d.key, Err: panicError{value: v}}
	}()

	n, err := d.build(ctx)
	if err != nil {
		return err
	}
	building = false

	if err := d.entry.Sink.Deliver(ctx, n); err != nil {
		return &DeliveryError{Kind: d.kind, Key: d.key, Err: err}
	}
	return nil
}

// plan runs fn, turning a panic (for example in a Classifier) into an error.
func plan(fn func(*Round, subscription.Snapshot) []delivery, r *Round, snap subscription.Snapshot) (ds []delivery, err error) {
	defer func() {
		if v := recover(); v != nil {
			ds, err = nil, panicError{value: v}
		}
	}()
	return fn(r, snap), nil
}

func (e *Engine) record(report RoundReport) {
	e.rounds.Add(1)
	e.objectDeliveries.Add(int64(report.ObjectDeliveries))
	e.marketDeliveries.Add(int64(report.MarketDeliveries))
	e.failures.Add(int64(report.Failures))
	e.fetchErrors.Add(int64(report.FetchErrors))
	e.planErrors.Add(int64(report.PlanErrors))
	e.unsubscribed.Add(int64(report.Unsubscribed))

	if e.observer != nil {
		e.observer.ObserveRound(report)
	}
}
