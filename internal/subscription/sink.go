package subscription

import (
	"context"

	"github.com/rickgao/ledger-notify/internal/model"
)

// Sink receives notifications for a subscription. A non-nil error is a delivery fault.
type Sink interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(ctx context.Context, n model.Notification) error

// Deliver calls f(ctx, n).
func (f SinkFunc) Deliver(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}
