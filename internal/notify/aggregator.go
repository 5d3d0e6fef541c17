package notify

import (
	"context"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/subscription"
)

// Classifier reports which markets an applied operation affects.
type Classifier interface {
	Pairs(op model.OpResult) []model.AssetPair
}

// ClassifierFunc is a function adapter for Classifier.
type ClassifierFunc func(op model.OpResult) []model.AssetPair

// Pairs calls f(op).
func (f ClassifierFunc) Pairs(op model.OpResult) []model.AssetPair {
	return f(op)
}

// MarketGroup is the ordered list of operations affecting one subscribed market.
type MarketGroup struct {
	Pair  model.AssetPair
	Entry subscription.Entry
	Ops   []model.OpResult
}

// Aggregator groups market operations by subscribed pair.
type Aggregator struct {
	registry   *subscription.Registry
	classifier Classifier
}

// NewAggregator creates an Aggregator using classifier.
func NewAggregator(registry *subscription.Registry, classifier Classifier) *Aggregator {
	return &Aggregator{registry: registry, classifier: classifier}
}

// Group partitions ops by the subscribed pairs they affect. The partition is stable:
// each group keeps the application order, and groups appear in order of first touch.
// An op listing the same pair twice lands in that group once.
func (a *Aggregator) Group(ops []model.OpResult, snap subscription.Snapshot) []MarketGroup {
	if len(ops) == 0 || snap.MarketCount() == 0 || a.classifier == nil {
		return nil
	}

	var groups []MarketGroup
	index := make(map[model.AssetPair]int)

	for _, op := range ops {
		pairs := a.classifier.Pairs(op)
		for i, pair := range pairs {
			if seenEarlier(pairs[:i], pair) {
				continue
			}
			if gi, ok := index[pair]; ok {
				groups[gi].Ops = append(groups[gi].Ops, op)
				continue
			}
			entry, ok := snap.Market(pair)
			if !ok {
				continue
			}
			index[pair] = len(groups)
			groups = append(groups, MarketGroup{Pair: pair, Entry: entry, Ops: []model.OpResult{op}})
		}
	}
	return groups
}

// Plan turns the round's groups into deliveries.
func (a *Aggregator) Plan(r *Round, snap subscription.Snapshot) []delivery {
	groups := a.Group(r.Ops, snap)
	if len(groups) == 0 {
		return nil
	}

	out := make([]delivery, 0, len(groups))
	for _, g := range groups {
		pair := g.Pair
		token := g.Entry.Token
		n := model.Notification{
			Round:  r.ID,
			Kind:   model.KindMarket,
			Blocks: r.Blocks,
			Pair:   &pair,
			Ops:    g.Ops,
		}
		out = append(out, delivery{
			kind:  model.KindMarket,
			key:   pair.String(),
			entry: g.Entry,
			build: func(context.Context) (model.Notification, error) { return n, nil },
			drop:  func() bool { return a.registry.RemoveMarketIf(pair, token) },
		})
	}
	return out
}

func seenEarlier(pairs []model.AssetPair, p model.AssetPair) bool {
	for _, q := range pairs {
		if q == p {
			return true
		}
	}
	return false
}
