package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseObjectID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ObjectID
		wantErr bool
	}{
		{name: "account", input: "1.2.15", want: ObjectID{Space: 1, Type: 2, Instance: 15}},
		{name: "core asset", input: "1.3.0", want: AssetID(0)},
		{name: "large instance", input: "2.1.18446744073709551615", want: ObjectID{Space: 2, Type: 1, Instance: 18446744073709551615}},
		{name: "too few parts", input: "1.2", wantErr: true},
		{name: "too many parts", input: "1.2.3.4", wantErr: true},
		{name: "space overflow", input: "256.2.3", wantErr: true},
		{name: "not a number", input: "1.x.3", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseObjectID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseObjectID(%q) expected error, got %v", tt.input, got)
				}
				if !errors.Is(err, ErrInvalidObjectID) {
					t.Errorf("error = %v, want ErrInvalidObjectID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseObjectID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseObjectID(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.String() != tt.input {
				t.Errorf("String() = %q, want %q", got.String(), tt.input)
			}
		})
	}
}

func TestObjectID_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.3", "1.2.10", -1},
		{"1.3.0", "1.2.99", 1},
		{"2.0.0", "1.9.9", 1},
	}

	for _, tt := range tests {
		got := MustParseObjectID(tt.a).Compare(MustParseObjectID(tt.b))
		if got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestObjectID_JSON(t *testing.T) {
	type wrapper struct {
		ID  ObjectID            `json:"id"`
		Map map[ObjectID]string `json:"map"`
	}
	in := wrapper{
		ID:  AccountID(7),
		Map: map[ObjectID]string{AssetID(1): "USD"},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"id":"1.2.7","map":{"1.3.1":"USD"}}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.ID != in.ID {
		t.Errorf("ID = %v, want %v", out.ID, in.ID)
	}
	if out.Map[AssetID(1)] != "USD" {
		t.Errorf("Map[1.3.1] = %q, want %q", out.Map[AssetID(1)], "USD")
	}

	if err := json.Unmarshal([]byte(`{"id":"bogus"}`), &out); err == nil {
		t.Error("expected error for malformed id")
	}
}

func TestAssetPair(t *testing.T) {
	p := NewAssetPair(AssetID(0), AssetID(5))

	if p.String() != "1.3.0:1.3.5" {
		t.Errorf("String() = %q, want %q", p.String(), "1.3.0:1.3.5")
	}
	if p == p.Reverse() {
		t.Error("pair and its reverse must be distinct keys")
	}
	if p.Reverse().Reverse() != p {
		t.Error("Reverse().Reverse() should return the original pair")
	}
}

func TestChangeSet(t *testing.T) {
	cs := NewChangeSet(AccountID(3), AccountID(1), AccountID(3))

	if cs.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cs.Len())
	}
	if !cs.Has(AccountID(1)) {
		t.Error("expected 1.2.1 in change set")
	}

	cs.Merge(NewChangeSet(AssetID(0), AccountID(1)))
	cs.Add(AccountID(2))

	ids := cs.IDs()
	want := []ObjectID{AccountID(1), AccountID(2), AccountID(3), AssetID(0)}
	if len(ids) != len(want) {
		t.Fatalf("len(IDs()) = %d, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("IDs()[%d] = %v, want %v", i, ids[i], want[i])
		}
	}
}

func TestOperation_IsMarketOp(t *testing.T) {
	tests := []struct {
		kind OperationKind
		want bool
	}{
		{OpLimitOrderCreate, true},
		{OpLimitOrderCancel, true},
		{OpFillOrder, true},
		{OpTransfer, false},
		{OpAccountUpdate, false},
	}

	for _, tt := range tests {
		if got := (Operation{Kind: tt.kind}).IsMarketOp(); got != tt.want {
			t.Errorf("IsMarketOp(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestOpResult_JSON(t *testing.T) {
	order := MustParseObjectID("1.7.42")
	in := OpResult{
		Op: Operation{
			Kind:    OpLimitOrderCreate,
			Account: AccountID(9),
			Sell:    &Asset{Amount: decimal.RequireFromString("10.5"), AssetID: AssetID(0)},
			Receive: &Asset{Amount: decimal.RequireFromString("3"), AssetID: AssetID(4)},
		},
		Result: OperationResult{ObjectID: &order},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out OpResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !out.Op.Sell.Amount.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("Sell.Amount = %v, want 10.5", out.Op.Sell.Amount)
	}
	if out.Op.Receive.AssetID != AssetID(4) {
		t.Errorf("Receive.AssetID = %v, want %v", out.Op.Receive.AssetID, AssetID(4))
	}
	if out.Result.ObjectID == nil || *out.Result.ObjectID != order {
		t.Errorf("Result.ObjectID = %v, want %v", out.Result.ObjectID, order)
	}
}

func TestNotification_Key(t *testing.T) {
	obj := AccountID(1)
	pair := NewAssetPair(AssetID(0), AssetID(1))

	tests := []struct {
		name        string
		n           Notification
		wantKey     string
		wantRemoved bool
	}{
		{name: "object update", n: Notification{Kind: KindObject, Object: &obj, Value: json.RawMessage(`{}`)}, wantKey: "1.2.1"},
		{name: "object removed", n: Notification{Kind: KindObject, Object: &obj}, wantKey: "1.2.1", wantRemoved: true},
		{name: "market", n: Notification{Kind: KindMarket, Pair: &pair}, wantKey: "1.3.0:1.3.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.n.Key(); got != tt.wantKey {
				t.Errorf("Key() = %q, want %q", got, tt.wantKey)
			}
			if got := tt.n.Removed(); got != tt.wantRemoved {
				t.Errorf("Removed() = %v, want %v", got, tt.wantRemoved)
			}
		})
	}
}
