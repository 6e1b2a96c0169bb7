// Package testingutils provides a hand-rolled in-memory Transport for tests
// across the protocol and mcp packages, grounded on the teacher SDK's
// internal/protocol/mock_transport_test.go (there scoped to one package) and
// the MockTransport the teacher's own server_test.go already expected to
// import from here but never committed.
package testingutils

import (
	"context"
	"sync"

	"github.com/contextrt/mcp-go/jsonrpc2"
	"github.com/contextrt/mcp-go/transport"
)

// MockTransport is an in-process Transport: Send appends to an inspectable
// log instead of touching any wire, and SimulateMessage/SimulateError let a
// test play the peer's part.
type MockTransport struct {
	mu sync.RWMutex

	onMessage transport.MessageHandler
	onClose   func()
	onError   func(error)

	sent    []*jsonrpc2.Message
	started bool
	closed  bool
}

// NewMockTransport returns an unstarted MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (t *MockTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return transport.ErrAlreadyStarted{}
	}
	t.started = true
	return nil
}

func (t *MockTransport) Send(msg *jsonrpc2.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrTransportClosed{}
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *MockTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	handler := t.onClose
	t.mu.Unlock()
	if handler != nil {
		handler()
	}
	return nil
}

func (t *MockTransport) SetMessageHandler(handler transport.MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = handler
}

func (t *MockTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = handler
}

func (t *MockTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = handler
}

// SimulateMessage plays an inbound message from the "peer" through the
// registered handler, as if it had arrived over the wire.
func (t *MockTransport) SimulateMessage(msg *jsonrpc2.Message, info transport.Info) {
	t.mu.RLock()
	handler := t.onMessage
	t.mu.RUnlock()
	if handler != nil {
		handler(msg, info)
	}
}

// SimulateError plays a non-fatal transport error through the registered handler.
func (t *MockTransport) SimulateError(err error) {
	t.mu.RLock()
	handler := t.onError
	t.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

// Sent returns a snapshot of every message handed to Send so far.
func (t *MockTransport) Sent() []*jsonrpc2.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*jsonrpc2.Message, len(t.sent))
	copy(out, t.sent)
	return out
}

// IsStarted reports whether Start has been called successfully.
func (t *MockTransport) IsStarted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.started
}

// IsClosed reports whether Close has completed.
func (t *MockTransport) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}
