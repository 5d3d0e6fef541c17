package model

import "encoding/json"

// NotificationKind distinguishes object updates from market batches.
type NotificationKind string

const (
	KindObject NotificationKind = "object"
	KindMarket NotificationKind = "market"
)

// Notification is a single delivery to a subscriber.
//
// For KindObject, Object and Value are set; a nil Value means the object was removed.
// For KindMarket, Pair and Ops are set; Ops are in application order.
type Notification struct {
	Round  string           `json:"round"`
	Kind   NotificationKind `json:"kind"`
	Blocks []uint64         `json:"blocks"`
	Object *ObjectID        `json:"object,omitempty"`
	Value  json.RawMessage  `json:"value,omitempty"`
	Pair   *AssetPair       `json:"pair,omitempty"`
	Ops    []OpResult       `json:"ops,omitempty"`
}

// Key returns the subscription key the notification was delivered for.
func (n Notification) Key() string {
	switch {
	case n.Object != nil:
		return n.Object.String()
	case n.Pair != nil:
		return n.Pair.String()
	default:
		return ""
	}
}

// Removed reports whether an object notification signals deletion.
func (n Notification) Removed() bool {
	return n.Kind == KindObject && n.Value == nil
}
