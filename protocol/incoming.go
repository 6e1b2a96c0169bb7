package protocol

import (
	"context"
	"encoding/json"

	"github.com/contextrt/mcp-go/jsonrpc2"
	"github.com/contextrt/mcp-go/transport"
)

// SetRequestHandler registers handler for method, passing it through every
// wrapper installed via Use so far, in registration order (first-installed
// wrapper is innermost, closest to handler; later ones wrap around it).
// Wrappers installed after this call do not retroactively apply.
func (p *Protocol) SetRequestHandler(method string, handler RequestHandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	wrapped := handler
	for _, w := range p.wrappers {
		wrapped = w(wrapped)
	}
	p.requestHandlers[method] = wrapped
}

// RemoveRequestHandler unregisters the handler for method.
func (p *Protocol) RemoveRequestHandler(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.requestHandlers, method)
}

// SetFallbackRequestHandler sets the handler invoked for any method with no
// specific registration, instead of an automatic MethodNotFound response.
func (p *Protocol) SetFallbackRequestHandler(handler RequestHandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallbackRequest = handler
}

// SetNotificationHandler registers handler for a notification method.
// "notifications/cancelled" and "notifications/progress" are handled
// internally and cannot be overridden here.
func (p *Protocol) SetNotificationHandler(method string, handler NotificationHandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notificationHandlers[method] = handler
}

// RemoveNotificationHandler unregisters the handler for method.
func (p *Protocol) RemoveNotificationHandler(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.notificationHandlers, method)
}

// SetFallbackNotificationHandler sets the handler invoked for any
// notification method with no specific registration.
func (p *Protocol) SetFallbackNotificationHandler(handler NotificationHandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallbackNotification = handler
}

// Use installs a request handler wrapper applied to every handler registered
// thereafter via SetRequestHandler. Wrappers already-registered handlers were
// passed through are unaffected.
func (p *Protocol) Use(wrapper func(RequestHandlerFunc) RequestHandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wrappers = append(p.wrappers, wrapper)
}

func (p *Protocol) handleRequest(req *jsonrpc2.Request, info transport.Info) {
	p.mu.Lock()
	handler, ok := p.requestHandlers[req.Method]
	if !ok {
		handler = p.fallbackRequest
	}
	strict := p.options.EnforceStrictCapabilities
	gate := p.gate
	p.mu.Unlock()

	if strict && gate != nil && !gate.CanServe(req.Method) {
		p.sendErrorResult(req.ID, jsonrpc2.NewError(jsonrpc2.CodeMethodNotFound, "method not permitted by capabilities: "+req.Method))
		return
	}
	if handler == nil {
		p.sendErrorResult(req.ID, jsonrpc2.NewError(jsonrpc2.CodeMethodNotFound, "method not found: "+req.Method))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	key := req.ID.String()
	p.mu.Lock()
	p.inboundCancel[key] = cancel
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.inboundCancel, key)
			p.mu.Unlock()
			cancel()
		}()

		extra := p.buildExtra(req.ID, req.Params, info)
		result, err := handler(ctx, req, extra)

		select {
		case <-ctx.Done():
			return
		default:
		}

		if err != nil {
			p.sendErrorResult(req.ID, err)
			return
		}
		resultBytes, merr := json.Marshal(result)
		if merr != nil {
			p.sendErrorResult(req.ID, jsonrpc2.NewError(jsonrpc2.CodeInternalError, "marshal result: "+merr.Error()))
			return
		}
		p.sendResult(req.ID, resultBytes)
	}()
}

func (p *Protocol) buildExtra(reqID jsonrpc2.RequestID, rawParams json.RawMessage, info transport.Info) RequestHandlerExtra {
	var probe struct {
		Meta map[string]interface{} `json:"_meta,omitempty"`
	}
	_ = json.Unmarshal(rawParams, &probe)

	related := reqID
	return RequestHandlerExtra{
		RequestID:     reqID,
		Meta:          probe.Meta,
		TransportInfo: info,
		SendNotification: func(method string, params interface{}) error {
			return p.Notification(method, params, &NotificationOptions{RelatedRequestID: &related})
		},
		SendRequest: func(ctx context.Context, method string, params interface{}, opts *RequestOptions) (json.RawMessage, error) {
			if opts == nil {
				opts = &RequestOptions{}
			}
			opts.RelatedRequestID = &related
			return p.Request(ctx, method, params, opts)
		},
	}
}

func (p *Protocol) sendResult(id jsonrpc2.RequestID, result json.RawMessage) {
	_ = p.send(&jsonrpc2.Message{Kind: jsonrpc2.KindResponse, Response: &jsonrpc2.Response{ID: id, Result: result}})
}

func (p *Protocol) sendErrorResult(id jsonrpc2.RequestID, err error) {
	rpcErr, ok := err.(*jsonrpc2.Error)
	if !ok {
		rpcErr = jsonrpc2.NewError(jsonrpc2.CodeInternalError, err.Error())
	}
	_ = p.send(&jsonrpc2.Message{Kind: jsonrpc2.KindErrorResponse, ErrorResponse: &jsonrpc2.ErrorResponse{ID: id, Error: rpcErr}})
}

func (p *Protocol) handleNotification(notif *jsonrpc2.Notification, info transport.Info) {
	switch notif.Method {
	case "notifications/cancelled":
		p.handleCancelledNotification(notif)
		return
	case "notifications/progress":
		p.handleProgressNotification(notif)
		return
	}

	p.mu.Lock()
	handler, ok := p.notificationHandlers[notif.Method]
	if !ok {
		handler = p.fallbackNotification
	}
	p.mu.Unlock()
	if handler == nil {
		return
	}

	go func() {
		if err := handler(context.Background(), notif); err != nil {
			p.handleTransportError(err)
		}
	}()
}

func (p *Protocol) handleCancelledNotification(notif *jsonrpc2.Notification) {
	var params struct {
		RequestID jsonrpc2.RequestID `json:"requestId"`
		Reason    string             `json:"reason,omitempty"`
	}
	if err := json.Unmarshal(notif.Params, &params); err != nil {
		return
	}
	key := params.RequestID.String()

	p.mu.Lock()
	cancel, ok := p.inboundCancel[key]
	if ok {
		delete(p.inboundCancel, key)
	}
	p.mu.Unlock()
	if ok {
		cancel()
	}
}
