package protocol

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/contextrt/mcp-go/jsonrpc2"
)

// Request sends method with params and blocks until a matching response
// arrives, ctx is cancelled, or the request times out. On timeout or
// ctx cancellation a notifications/cancelled is sent to the peer for the
// allocated request id (spec.md §4.4).
func (p *Protocol) Request(ctx context.Context, method string, params interface{}, opts *RequestOptions) (json.RawMessage, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	if p.isClosed() {
		return nil, jsonrpc2.NewError(jsonrpc2.CodeConnectionClosed, "connection closed")
	}

	p.mu.Lock()
	gate := p.gate
	strict := p.options.EnforceStrictCapabilities
	p.mu.Unlock()
	if strict && gate != nil && !gate.CanSend(method) {
		return nil, errors.Errorf("capability violation: peer does not support method %q", method)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	entry := &pendingRequest{
		resultCh:  make(chan rpcResult, 1),
		progress:  opts.OnProgress,
		startedAt: time.Now(),
		timeout:   timeout,
		maxTotal:  opts.MaxTotalTimeout,
		resetting: opts.ResetOnProgress,
	}
	entry.timer = time.AfterFunc(timeout, func() { p.onRequestTimeout(id) })
	p.inflight[id] = entry
	p.mu.Unlock()

	paramsRaw, err := encodeParams(params, opts.OnProgress != nil, id)
	if err != nil {
		p.abandon(id)
		return nil, errors.Wrap(err, "protocol: encode request params")
	}

	reqID := jsonrpc2.NewRequestID(id)
	msg := &jsonrpc2.Message{Kind: jsonrpc2.KindRequest, Request: &jsonrpc2.Request{
		ID:     reqID,
		Method: method,
		Params: paramsRaw,
	}}

	if err := p.send(msg); err != nil {
		p.abandon(id)
		return nil, errors.Wrap(err, "protocol: send request")
	}

	select {
	case res := <-entry.resultCh:
		return res.result, res.err
	case <-ctx.Done():
		p.cancelOutgoing(id, "client cancelled")
		return nil, ctx.Err()
	}
}

func (p *Protocol) abandon(id int64) {
	p.mu.Lock()
	entry, ok := p.inflight[id]
	if ok {
		delete(p.inflight, id)
	}
	p.mu.Unlock()
	if ok && entry.timer != nil {
		entry.timer.Stop()
	}
}

func (p *Protocol) onRequestTimeout(id int64) {
	p.mu.Lock()
	entry, ok := p.inflight[id]
	if ok {
		delete(p.inflight, id)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	p.sendCancelNotification(id, "timeout")
	entry.complete(nil, jsonrpc2.NewError(jsonrpc2.CodeRequestTimeout, "request timed out"))
}

func (p *Protocol) cancelOutgoing(id int64, reason string) {
	p.mu.Lock()
	entry, ok := p.inflight[id]
	if ok {
		delete(p.inflight, id)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	p.sendCancelNotification(id, reason)
	entry.complete(nil, errors.New("protocol: request cancelled: "+reason))
}

func (p *Protocol) sendCancelNotification(id int64, reason string) {
	if p.isClosed() {
		return
	}
	params, _ := json.Marshal(struct {
		RequestID jsonrpc2.RequestID `json:"requestId"`
		Reason    string             `json:"reason,omitempty"`
	}{RequestID: jsonrpc2.NewRequestID(id), Reason: reason})
	_ = p.send(&jsonrpc2.Message{Kind: jsonrpc2.KindNotification, Notification: &jsonrpc2.Notification{
		Method: "notifications/cancelled",
		Params: params,
	}})
}

// encodeParams marshals params to a JSON object and, if withProgress is set,
// injects _meta.progressToken. params must marshal to a JSON object (or be
// nil) when withProgress is set, since progress tokens ride inside the
// params object per spec.md §4.4.
func encodeParams(params interface{}, withProgress bool, token int64) (json.RawMessage, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if !withProgress {
		return raw, nil
	}

	obj := make(map[string]interface{})
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, errors.New("protocol: params must be a JSON object to carry a progress token")
		}
	}
	meta, _ := obj["_meta"].(map[string]interface{})
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["progressToken"] = token
	obj["_meta"] = meta
	return json.Marshal(obj)
}

func (p *Protocol) handleResponse(id jsonrpc2.RequestID, result json.RawMessage, rpcErr *jsonrpc2.Error) {
	if id.IsString() {
		p.logger.Warn("response to non-numeric request id ignored")
		return
	}
	key := id.Int64()

	p.mu.Lock()
	entry, ok := p.inflight[key]
	if ok {
		delete(p.inflight, key)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	if rpcErr != nil {
		entry.complete(nil, rpcErr)
		return
	}
	entry.complete(result, nil)
}

func (p *Protocol) handleProgressNotification(notif *jsonrpc2.Notification) {
	var params progressParams
	if err := json.Unmarshal(notif.Params, &params); err != nil {
		return
	}
	token, ok := coerceProgressToken(params.ProgressToken)
	if !ok {
		return
	}

	p.mu.Lock()
	entry, ok := p.inflight[token]
	p.mu.Unlock()
	if !ok || entry.progress == nil {
		return
	}

	if entry.timer != nil && entry.resetting {
		resetTimer(entry)
	}

	prog := Progress{Progress: params.Progress}
	if params.Total != nil {
		prog.Total = *params.Total
		prog.HasTotal = true
	}
	entry.progress(prog)
}

// resetTimer restarts e's timeout window, capped so the cumulative wait
// never exceeds e.maxTotal (when set). Progress-driven resets that would
// exceed the ceiling instead fire the remaining time, so the request still
// times out at the ceiling rather than running unbounded.
func resetTimer(e *pendingRequest) {
	if e.timer == nil {
		return
	}
	remaining := e.timeout
	if e.maxTotal > 0 {
		elapsed := time.Since(e.startedAt)
		capRemaining := e.maxTotal - elapsed
		if capRemaining <= 0 {
			remaining = 0
		} else if capRemaining < remaining {
			remaining = capRemaining
		}
	}
	if remaining <= 0 {
		remaining = time.Nanosecond
	}
	e.timer.Stop()
	e.timer.Reset(remaining)
}
