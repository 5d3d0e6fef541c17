package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"

	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/notify"
)

func keyChecker(want string) mocks.MessageChecker {
	return func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != want {
			return fmt.Errorf("key = %s, want %s", key, want)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var n model.Notification
		if err := json.Unmarshal(value, &n); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		if n.Key() != want {
			return fmt.Errorf("notification key = %s, want %s", n.Key(), want)
		}
		return nil
	}
}

func TestPublisher_Deliver(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := newPublisher(producer, "notes", nil)

	acct := model.AccountID(7)
	pair := model.NewAssetPair(model.AssetID(0), model.AssetID(1))

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("1.2.7"))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("1.3.0:1.3.1"))
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	ctx := context.Background()
	if err := pub.Deliver(ctx, model.Notification{Kind: model.KindObject, Object: &acct, Value: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("Deliver(object) error = %v", err)
	}
	if err := pub.Deliver(ctx, model.Notification{Kind: model.KindMarket, Pair: &pair}); err != nil {
		t.Fatalf("Deliver(market) error = %v", err)
	}
	err := pub.Deliver(ctx, model.Notification{Kind: model.KindObject, Object: &acct})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("Deliver() error = %v, want %v", err, sarama.ErrOutOfBrokers)
	}

	stats := pub.Stats()
	if stats.Published != 2 || stats.Failed != 1 {
		t.Errorf("Stats() = %+v, want 2 published, 1 failed", stats)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := pub.Deliver(ctx, model.Notification{Kind: model.KindObject, Object: &acct}); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Deliver() after Close error = %v, want %v", err, ErrPublisherClosed)
	}
}

type fetchFunc func(ctx context.Context, id model.ObjectID) (json.RawMessage, error)

func (f fetchFunc) Fetch(ctx context.Context, id model.ObjectID) (json.RawMessage, error) {
	return f(ctx, id)
}

func TestRelay_RearmsAfterFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := newPublisher(producer, "notes", nil)

	acct := model.AccountID(1)
	core, usd := model.AssetID(0), model.AssetID(1)
	r := New([]model.ObjectID{acct}, []model.AssetPair{model.NewAssetPair(core, usd)}, pub, nil)

	rounds := make(chan notify.RoundReport, 8)
	fetcher := fetchFunc(func(context.Context, model.ObjectID) (json.RawMessage, error) {
		return json.RawMessage(`{"v":1}`), nil
	})
	classifier := notify.ClassifierFunc(func(op model.OpResult) []model.AssetPair {
		return []model.AssetPair{model.NewAssetPair(op.Op.Sell.AssetID, op.Op.Receive.AssetID)}
	})
	// One delivery at a time keeps the producer expectations in plan order.
	cfg := notify.DefaultConfig()
	cfg.MaxConcurrentDeliveries = 1
	e := notify.NewEngine(cfg, fetcher, classifier, nil,
		notify.WithObserver(notify.Observers{r, notify.ObserverFunc(func(rep notify.RoundReport) {
			rounds <- rep
		})}),
	)
	r.Install(e)

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer pub.Close()
	defer e.Stop(ctx)

	if objects, markets := e.Registry().Counts(); objects != 1 || markets != 1 {
		t.Fatalf("Counts() = %d, %d, want 1, 1", objects, markets)
	}

	op := model.OpResult{Op: model.Operation{
		Kind:    model.OpLimitOrderCreate,
		Account: acct,
		Sell:    &model.Asset{Amount: decimal.NewFromInt(1), AssetID: core},
		Receive: &model.Asset{Amount: decimal.NewFromInt(2), AssetID: usd},
	}}

	// Round 1: the object publish fails and the key is dropped.
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	e.OnApplied(model.UnitOfWork{Block: 1, ChangeSet: model.NewChangeSet(acct)})
	waitReport(t, rounds)

	if got := r.Rearmed(); got != 0 {
		t.Errorf("Rearmed() = %d after the failing round, want 0", got)
	}
	if objects, _ := e.Registry().Counts(); objects != 0 {
		t.Errorf("objects = %d after failure, want 0", objects)
	}

	// Round 2: the dropped key sits out; the market still publishes. Re-armed afterwards.
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("1.3.0:1.3.1"))
	e.OnApplied(model.UnitOfWork{Block: 2, ChangeSet: model.NewChangeSet(acct), Ops: []model.OpResult{op}})
	rep := waitReport(t, rounds)

	if rep.ObjectDeliveries != 0 || rep.MarketDeliveries != 1 {
		t.Errorf("round 2 report = %+v, want only the market delivery", rep)
	}
	if got := r.Rearmed(); got != 1 {
		t.Errorf("Rearmed() = %d, want 1", got)
	}
	if objects, _ := e.Registry().Counts(); objects != 1 {
		t.Errorf("objects = %d after re-arm, want 1", objects)
	}

	// Round 3: both keys publish.
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("1.2.1"))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(keyChecker("1.3.0:1.3.1"))
	e.OnApplied(model.UnitOfWork{Block: 3, ChangeSet: model.NewChangeSet(acct), Ops: []model.OpResult{op}})
	rep = waitReport(t, rounds)

	if rep.Failures != 0 || rep.ObjectDeliveries != 1 || rep.MarketDeliveries != 1 {
		t.Errorf("round 3 report = %+v, want 1 object and 1 market delivery", rep)
	}
	if stats := pub.Stats(); stats.Published != 3 || stats.Failed != 1 {
		t.Errorf("Stats() = %+v, want 3 published, 1 failed", stats)
	}
}

func TestRearmDelay(t *testing.T) {
	tests := []struct {
		streak int
		want   int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{6, 32},
		{10, 32},
	}
	for _, tt := range tests {
		if got := rearmDelay(tt.streak); got != tt.want {
			t.Errorf("rearmDelay(%d) = %d, want %d", tt.streak, got, tt.want)
		}
	}
}

func TestRelay_RearmBackoffGrows(t *testing.T) {
	r := New(nil, nil, nil, nil)

	steps := []struct {
		report      notify.RoundReport
		wantPending bool
		wantStreak  int
	}{
		{notify.RoundReport{Failures: 1, Unsubscribed: 1}, true, 1},
		{notify.RoundReport{}, false, 1}, // re-armed after one round
		{notify.RoundReport{Failures: 1, Unsubscribed: 1}, true, 2},
		{notify.RoundReport{}, true, 2}, // second drop waits two rounds
		{notify.RoundReport{}, false, 2},
		{notify.RoundReport{ObjectDeliveries: 1}, false, 0},
	}

	for i, st := range steps {
		r.ObserveRound(st.report)
		if r.pending != st.wantPending || r.streak != st.wantStreak {
			t.Errorf("step %d: pending, streak = %v, %d, want %v, %d", i, r.pending, r.streak, st.wantPending, st.wantStreak)
		}
	}
}

func waitReport(t *testing.T, rounds <-chan notify.RoundReport) notify.RoundReport {
	t.Helper()
	select {
	case rep := <-rounds:
		return rep
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for round")
	}
	return notify.RoundReport{}
}
