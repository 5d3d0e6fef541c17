package notify

import (
	"errors"
	"fmt"

	"github.com/rickgao/ledger-notify/internal/model"
)

var (
	// ErrDeliveryFailed is matched by every DeliveryError.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrConcurrentRound signals that two broadcast rounds overlapped. It is a programming
	// error and is raised with panic.
	ErrConcurrentRound = errors.New("broadcast round already in progress")

	// ErrEngineStopped is returned by Start on an engine that was already stopped.
	ErrEngineStopped = errors.New("engine stopped")
)

// DeliveryError records a sink failure for one subscription key.
type DeliveryError struct {
	Kind model.NotificationKind
	Key  string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s %s: %v", e.Kind, e.Key, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDeliveryFailed) true for any DeliveryError.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}

// panicError wraps a value recovered from a panicking sink, fetcher or classifier.
type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
