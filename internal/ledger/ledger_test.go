package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/store"
)

func TestFeed_RegisterPublishUnregister(t *testing.T) {
	f := NewFeed(nil)

	var order []string
	unregA := f.Register(ListenerFunc(func(model.UnitOfWork) { order = append(order, "a") }))
	f.Register(ListenerFunc(func(model.UnitOfWork) { panic("listener bug") }))
	f.Register(ListenerFunc(func(model.UnitOfWork) { order = append(order, "c") }))

	f.Publish(model.UnitOfWork{Block: 1})
	if len(order) != 2 || order[0] != "a" || order[1] != "c" {
		t.Errorf("order = %v, want [a c]", order)
	}

	unregA()
	unregA()
	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}

	order = nil
	f.Publish(model.UnitOfWork{Block: 2})
	if len(order) != 1 || order[0] != "c" {
		t.Errorf("order = %v, want [c]", order)
	}
}

func TestLedger_Apply(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	l := New(s, nil)

	var units []model.UnitOfWork
	l.Feed().Register(ListenerFunc(func(u model.UnitOfWork) { units = append(units, u) }))

	account := model.AccountID(15)
	order := model.NewObjectID(model.ProtocolSpace, model.LimitOrderType, 1)

	err := l.Apply(ctx, Block{
		Number:   10,
		Upserts:  []store.Object{{ID: account, Value: json.RawMessage(`{"name":"alice"}`)}},
		Removals: []model.ObjectID{order},
		Ops:      []model.OpResult{{Op: model.Operation{Kind: model.OpTransfer, Account: account}}},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(units) != 1 {
		t.Fatalf("published %d units, want 1", len(units))
	}
	u := units[0]
	if u.Block != 10 {
		t.Errorf("Block = %d, want 10", u.Block)
	}
	if u.ChangeSet.Len() != 2 || !u.ChangeSet.Has(account) || !u.ChangeSet.Has(order) {
		t.Errorf("ChangeSet = %v, want {%v, %v}", u.ChangeSet.IDs(), account, order)
	}
	if len(u.Ops) != 1 {
		t.Errorf("len(Ops) = %d, want 1", len(u.Ops))
	}

	v, _ := s.Fetch(ctx, account)
	if string(v) != `{"name":"alice"}` {
		t.Errorf("stored value = %s, want %s", v, `{"name":"alice"}`)
	}

	stats := l.Stats()
	if stats.LastBlock != 10 || stats.BlocksApplied != 1 || stats.Listeners != 1 {
		t.Errorf("Stats() = %+v, want last 10, applied 1, listeners 1", stats)
	}
}

func TestLedger_ApplyStaleBlock(t *testing.T) {
	tests := []struct {
		name     string
		first    uint64
		replays  []uint64
		wantNext uint64
	}{
		{"replay and older", 5, []uint64{5, 4}, 6},
		{"genesis block replayed", 0, []uint64{0, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l := New(store.NewMemory(), nil)

			published := 0
			l.Feed().Register(ListenerFunc(func(model.UnitOfWork) { published++ }))

			if err := l.Apply(ctx, Block{Number: tt.first}); err != nil {
				t.Fatalf("Apply(%d) error = %v", tt.first, err)
			}
			for _, n := range tt.replays {
				if err := l.Apply(ctx, Block{Number: n}); !errors.Is(err, ErrStaleBlock) {
					t.Errorf("Apply(%d) error = %v, want %v", n, err, ErrStaleBlock)
				}
			}
			if published != 1 {
				t.Errorf("published = %d, want 1", published)
			}

			if err := l.Apply(ctx, Block{Number: tt.wantNext}); err != nil {
				t.Errorf("Apply(%d) error = %v", tt.wantNext, err)
			}
			if got := l.Stats().BlocksApplied; got != 2 {
				t.Errorf("BlocksApplied = %d, want 2", got)
			}
		})
	}
}

func TestLedger_ApplyStoreErrorNotPublished(t *testing.T) {
	s := store.NewMemory()
	s.Close()
	l := New(s, nil)

	published := 0
	l.Feed().Register(ListenerFunc(func(model.UnitOfWork) { published++ }))

	err := l.Apply(context.Background(), Block{Number: 1, Removals: []model.ObjectID{model.AccountID(1)}})
	if !errors.Is(err, store.ErrClosed) {
		t.Errorf("Apply() error = %v, want %v", err, store.ErrClosed)
	}
	if published != 0 {
		t.Errorf("published = %d, want 0", published)
	}
	if l.Stats().LastBlock != 0 {
		t.Errorf("LastBlock = %d, want 0", l.Stats().LastBlock)
	}
}

func TestMarketPairs(t *testing.T) {
	core, usd := model.AssetID(0), model.AssetID(1)
	amount := func(id model.ObjectID) *model.Asset {
		return &model.Asset{Amount: decimal.NewFromInt(10), AssetID: id}
	}

	tests := []struct {
		name string
		op   model.Operation
		want []model.AssetPair
	}{
		{
			name: "create",
			op:   model.Operation{Kind: model.OpLimitOrderCreate, Sell: amount(core), Receive: amount(usd)},
			want: []model.AssetPair{model.NewAssetPair(core, usd)},
		},
		{
			name: "fill keeps orientation",
			op:   model.Operation{Kind: model.OpFillOrder, Sell: amount(usd), Receive: amount(core)},
			want: []model.AssetPair{model.NewAssetPair(usd, core)},
		},
		{
			name: "cancel",
			op:   model.Operation{Kind: model.OpLimitOrderCancel, Sell: amount(core), Receive: amount(usd)},
			want: []model.AssetPair{model.NewAssetPair(core, usd)},
		},
		{
			name: "cancel without assets",
			op:   model.Operation{Kind: model.OpLimitOrderCancel},
			want: nil,
		},
		{
			name: "same asset",
			op:   model.Operation{Kind: model.OpLimitOrderCreate, Sell: amount(core), Receive: amount(core)},
			want: nil,
		},
		{
			name: "transfer",
			op:   model.Operation{Kind: model.OpTransfer, Amount: amount(core)},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarketPairs(model.OpResult{Op: tt.op})
			if len(got) != len(tt.want) {
				t.Fatalf("MarketPairs() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("MarketPairs()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
