package ledger

import "github.com/rickgao/ledger-notify/internal/model"

// MarketPairs reports the market an operation touches, oriented the way the operation
// names it: (asset sold, asset received). Non-market operations, and market operations
// missing either side, touch nothing.
//
// Use it with notify.ClassifierFunc.
func MarketPairs(op model.OpResult) []model.AssetPair {
	if !op.Op.IsMarketOp() {
		return nil
	}

	sell, receive := op.Op.Sell, op.Op.Receive
	if sell == nil || receive == nil {
		return nil
	}
	if sell.AssetID == receive.AssetID {
		return nil
	}
	return []model.AssetPair{model.NewAssetPair(sell.AssetID, receive.AssetID)}
}
