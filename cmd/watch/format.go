package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickgao/ledger-notify/internal/model"
)

func parseObjects(s string) ([]model.ObjectID, error) {
	var ids []model.ObjectID
	for _, f := range splitList(s) {
		id, err := model.ParseObjectID(f)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseMarkets reads "a:b" entries.
func parseMarkets(s string) ([]model.AssetPair, error) {
	var pairs []model.AssetPair
	for _, f := range splitList(s) {
		a, b, ok := strings.Cut(f, ":")
		if !ok {
			return nil, fmt.Errorf("market %q: want a:b", f)
		}
		ida, err := model.ParseObjectID(a)
		if err != nil {
			return nil, fmt.Errorf("market %q: %w", f, err)
		}
		idb, err := model.ParseObjectID(b)
		if err != nil {
			return nil, fmt.Errorf("market %q: %w", f, err)
		}
		pairs = append(pairs, model.NewAssetPair(ida, idb))
	}
	return pairs, nil
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func valueString(v json.RawMessage) string {
	if v == nil {
		return "null"
	}
	return string(v)
}

func opString(op model.Operation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s account=%s", op.Kind, op.Account)
	if op.Order != nil {
		fmt.Fprintf(&b, " order=%s", op.Order)
	}
	if op.Sell != nil {
		fmt.Fprintf(&b, " sell=%s@%s", op.Sell.Amount, op.Sell.AssetID)
	}
	if op.Receive != nil {
		fmt.Fprintf(&b, " receive=%s@%s", op.Receive.Amount, op.Receive.AssetID)
	}
	if op.Sell != nil && op.Receive != nil && !op.Sell.Amount.IsZero() {
		fmt.Fprintf(&b, " price=%s", op.Receive.Amount.DivRound(op.Sell.Amount, 8))
	}
	return b.String()
}
