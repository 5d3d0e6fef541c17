package gateway

import (
	"context"
	"encoding/json"
)

// handle decodes one request and runs it. It always returns a response.
func (s *session) handle(ctx context.Context, data []byte) Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(0, CodeParseError, "parse request: "+err.Error())
	}

	if req.Method != MethodLogin && s.server.auth.Required() && !s.loggedIn.Load() {
		return errorResponse(req.ID, CodeLoginRequired, "login required")
	}

	result, rpcErr := s.dispatch(ctx, req)
	if rpcErr != nil {
		return Response{ID: req.ID, Error: rpcErr}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req.ID, CodeInternal, "encode result: "+err.Error())
	}
	return Response{ID: req.ID, Result: raw}
}

func (s *session) dispatch(ctx context.Context, req Request) (any, *RPCError) {
	switch req.Method {
	case MethodLogin:
		var p LoginParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if err := s.server.auth.Check(p.User, p.Password); err != nil {
			s.logger.Info("login failed", "user", p.User, "error", err)
			return false, nil
		}
		s.loggedIn.Store(true)
		return true, nil

	case MethodGetObjects:
		var p ObjectsParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		values, err := s.server.objects.FetchMany(ctx, p.IDs)
		if err != nil {
			return nil, &RPCError{Code: CodeInternal, Message: err.Error()}
		}
		if values == nil {
			values = []json.RawMessage{}
		}
		return values, nil

	case MethodSubscribeToObjects:
		var p SubscribeObjectsParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		s.engine.SubscribeToObjects(s.sink(p.Callback), p.IDs...)
		return nil, nil

	case MethodUnsubscribeFromObjects:
		var p ObjectsParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		s.engine.UnsubscribeFromObjects(p.IDs...)
		return nil, nil

	case MethodSubscribeToMarket:
		var p SubscribeMarketParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		s.engine.SubscribeToMarket(s.sink(p.Callback), p.A, p.B)
		return nil, nil

	case MethodUnsubscribeFromMarket:
		var p MarketParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		s.engine.UnsubscribeFromMarket(p.A, p.B)
		return nil, nil

	case MethodCancelAll:
		s.engine.CancelAllSubscriptions()
		return nil, nil

	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "unknown method " + req.Method}
	}
}

func decodeParams(raw json.RawMessage, v any) *RPCError {
	if len(raw) == 0 {
		return &RPCError{Code: CodeInvalidParams, Message: "params required"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func errorResponse(id int64, code int, msg string) Response {
	return Response{ID: id, Error: &RPCError{Code: code, Message: msg}}
}
