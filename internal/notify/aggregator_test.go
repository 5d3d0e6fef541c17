package notify

import (
	"testing"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/subscription"
)

func TestAggregator_Group(t *testing.T) {
	core, usd, btc := model.AssetID(0), model.AssetID(1), model.AssetID(2)
	p := model.NewAssetPair(core, usd)
	q := model.NewAssetPair(core, btc)

	// both touches p and q; twice lists p twice.
	both := ClassifierFunc(func(op model.OpResult) []model.AssetPair {
		switch op.Op.Order.Instance {
		case 10:
			return []model.AssetPair{q, p}
		case 11:
			return []model.AssetPair{p, p}
		}
		return pairClassifier(op)
	})

	tests := []struct {
		name       string
		subscribed []model.AssetPair
		ops        []model.OpResult
		want       map[model.AssetPair][]uint64
		wantOrder  []model.AssetPair
	}{
		{
			name:       "no market subscriptions",
			subscribed: nil,
			ops:        []model.OpResult{marketOp(1, core, usd)},
			want:       map[model.AssetPair][]uint64{},
		},
		{
			name:       "stable partition",
			subscribed: []model.AssetPair{p, q},
			ops: []model.OpResult{
				marketOp(1, core, btc),
				marketOp(2, core, usd),
				marketOp(3, core, btc),
			},
			want:      map[model.AssetPair][]uint64{q: {1, 3}, p: {2}},
			wantOrder: []model.AssetPair{q, p},
		},
		{
			name:       "op affecting two pairs",
			subscribed: []model.AssetPair{p, q},
			ops: []model.OpResult{
				marketOp(2, core, usd),
				marketOp(10, core, usd),
			},
			want:      map[model.AssetPair][]uint64{p: {2, 10}, q: {10}},
			wantOrder: []model.AssetPair{p, q},
		},
		{
			name:       "duplicate pair in one op",
			subscribed: []model.AssetPair{p},
			ops:        []model.OpResult{marketOp(11, core, usd)},
			want:       map[model.AssetPair][]uint64{p: {11}},
			wantOrder:  []model.AssetPair{p},
		},
		{
			name:       "unsubscribed orientation ignored",
			subscribed: []model.AssetPair{p},
			ops:        []model.OpResult{marketOp(1, usd, core)},
			want:       map[model.AssetPair][]uint64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := subscription.NewRegistry()
			for _, pair := range tt.subscribed {
				reg.SubscribeMarket(pair, &recorder{})
			}

			groups := NewAggregator(reg, both).Group(tt.ops, reg.Snapshot())
			if len(groups) != len(tt.want) {
				t.Fatalf("len(groups) = %d, want %d", len(groups), len(tt.want))
			}
			for i, g := range groups {
				if tt.wantOrder != nil && g.Pair != tt.wantOrder[i] {
					t.Errorf("groups[%d].Pair = %v, want %v", i, g.Pair, tt.wantOrder[i])
				}
				want := tt.want[g.Pair]
				if len(g.Ops) != len(want) {
					t.Fatalf("group %v has %d ops, want %d", g.Pair, len(g.Ops), len(want))
				}
				for j, order := range want {
					if got := g.Ops[j].Op.Order.Instance; got != order {
						t.Errorf("group %v Ops[%d] = %d, want %d", g.Pair, j, got, order)
					}
				}
			}
		})
	}
}
