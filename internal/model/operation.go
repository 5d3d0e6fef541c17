package model

import "github.com/shopspring/decimal"

// OperationKind names a ledger operation.
type OperationKind string

const (
	OpTransfer         OperationKind = "transfer"
	OpLimitOrderCreate OperationKind = "limit_order_create"
	OpLimitOrderCancel OperationKind = "limit_order_cancel"
	OpFillOrder        OperationKind = "fill_order"
	OpAccountUpdate    OperationKind = "account_update"
	OpAssetIssue       OperationKind = "asset_issue"
)

// Asset is an amount denominated in a specific asset.
type Asset struct {
	Amount  decimal.Decimal `json:"amount"`
	AssetID ObjectID        `json:"asset_id"`
}

// Operation is a ledger operation as reported by the applied block.
//
// Market operations (limit_order_create, limit_order_cancel, fill_order) carry both Sell
// and Receive; for fills they are the amounts paid and received.
type Operation struct {
	Kind    OperationKind `json:"kind"`
	Account ObjectID      `json:"account"`
	Order   *ObjectID     `json:"order,omitempty"`
	Sell    *Asset        `json:"sell,omitempty"`
	Receive *Asset        `json:"receive,omitempty"`
	To      *ObjectID     `json:"to,omitempty"`
	Amount  *Asset        `json:"amount,omitempty"`
}

// IsMarketOp reports whether the operation can touch an order book.
func (op Operation) IsMarketOp() bool {
	switch op.Kind {
	case OpLimitOrderCreate, OpLimitOrderCancel, OpFillOrder:
		return true
	}
	return false
}

// OperationResult is what applying an operation produced.
type OperationResult struct {
	ObjectID *ObjectID `json:"object_id,omitempty"` // e.g. the created order
	Asset    *Asset    `json:"asset,omitempty"`     // e.g. the refunded amount
}

// OpResult pairs an operation with its result.
type OpResult struct {
	Op     Operation       `json:"op"`
	Result OperationResult `json:"result"`
}
