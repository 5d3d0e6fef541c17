package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/ledger-notify/internal/model"
)

// Errors
var (
	ErrSessionClosed = errors.New("session closed")
	ErrServerClosed  = errors.New("server closed")
	ErrNotConnected  = errors.New("not connected")
)

// Method names.
const (
	MethodLogin                  = "login"
	MethodGetObjects             = "get_objects"
	MethodSubscribeToObjects     = "subscribe_to_objects"
	MethodUnsubscribeFromObjects = "unsubscribe_from_objects"
	MethodSubscribeToMarket      = "subscribe_to_market"
	MethodUnsubscribeFromMarket  = "unsubscribe_from_market"
	MethodCancelAll              = "cancel_all_subscriptions"
	MethodNotice                 = "notice"
)

// Error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeLoginRequired  = -32001
)

// Request is a client call.
type Request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is a failed call.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Notice is a server push. It has no ID.
type Notice struct {
	Method string       `json:"method"`
	Params NoticeParams `json:"params"`
}

// NoticeParams carries one notification for a client callback.
type NoticeParams struct {
	Callback     string             `json:"callback"`
	Notification model.Notification `json:"notification"`
}

// LoginParams are parameters for login.
type LoginParams struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// ObjectsParams are parameters for get_objects and unsubscribe_from_objects.
type ObjectsParams struct {
	IDs []model.ObjectID `json:"ids"`
}

// SubscribeObjectsParams are parameters for subscribe_to_objects.
type SubscribeObjectsParams struct {
	Callback string           `json:"callback"`
	IDs      []model.ObjectID `json:"ids"`
}

// MarketParams are parameters for unsubscribe_from_market.
type MarketParams struct {
	A model.ObjectID `json:"a"`
	B model.ObjectID `json:"b"`
}

// SubscribeMarketParams are parameters for subscribe_to_market.
type SubscribeMarketParams struct {
	Callback string         `json:"callback"`
	A        model.ObjectID `json:"a"`
	B        model.ObjectID `json:"b"`
}

// envelope is used to tell responses from notices on the client side.
type envelope struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Params json.RawMessage `json:"params"`
}
