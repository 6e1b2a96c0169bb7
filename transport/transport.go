// Package transport defines the abstract, bidirectional message channel that
// carries jsonrpc2-encoded MCP messages (spec.md §4.3), plus two reference
// implementations: a newline-framed stdio transport and an HTTP+SSE
// transport. The protocol core only ever depends on the Transport interface
// in this file; concrete transports are external collaborators, adapted from
// the teacher SDK's stdio.go/sse.go into this contract.
package transport

import (
	"context"

	"github.com/contextrt/mcp-go/jsonrpc2"
)

// Info carries out-of-band context a transport attaches to an inbound
// message: authentication principal, session identifier, and anything
// HTTP-request-shaped the transport wants to forward. The protocol core
// forwards this verbatim into RequestHandlerExtra.
type Info struct {
	// SessionID identifies the logical connection, when the transport has one
	// (e.g. an SSE session). Empty for transports with a single implicit
	// session (stdio).
	SessionID string
	// AuthInfo is whatever authentication principal/claims the transport
	// attached to this message; the core never interprets it.
	AuthInfo interface{}
	// RequestInfo carries transport-specific per-request metadata (e.g. HTTP
	// headers on an SSE POST).
	RequestInfo interface{}
}

// MessageHandler is invoked once per inbound message with its transport
// context. There is exactly one handler per Transport instance.
type MessageHandler func(msg *jsonrpc2.Message, info Info)

// ErrorKind distinguishes an error that ends the session from one that is
// merely reported.
type ErrorKind int

const (
	// ErrorNonFatal is a single malformed frame or similar; the session continues.
	ErrorNonFatal ErrorKind = iota
)

// Transport is a bidirectional, asynchronous, message-framed channel per
// spec.md §4.3. Implementations must be safe for concurrent Send calls (the
// wire is a serialized resource: no two encoded messages may interleave).
type Transport interface {
	// Start activates the channel. Calling Start twice returns ErrAlreadyStarted.
	Start(ctx context.Context) error
	// Send transmits one logical JSON-RPC message. Returns once handed to the
	// transport's output path; does not guarantee peer receipt.
	Send(msg *jsonrpc2.Message) error
	// Close terminates the channel. OnClose fires exactly once as a result,
	// whether Close was called locally or the peer disconnected.
	Close() error

	// SetMessageHandler registers the sole dispatcher for inbound messages.
	SetMessageHandler(handler MessageHandler)
	// SetCloseHandler registers the callback that fires once when the channel ends.
	SetCloseHandler(handler func())
	// SetErrorHandler registers the callback for non-fatal transport errors.
	SetErrorHandler(handler func(error))
}

// ErrAlreadyStarted is returned by Start when called more than once.
type ErrAlreadyStarted struct{}

func (ErrAlreadyStarted) Error() string { return "transport: already started" }

// ErrTransportClosed is returned by Send after Close has completed.
type ErrTransportClosed struct{}

func (ErrTransportClosed) Error() string { return "transport: closed" }
