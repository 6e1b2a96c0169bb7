// Package jsonrpc2 implements the wire codec for MCP's JSON-RPC 2.0 framing:
// encoding and decoding the four envelope variants (request, notification,
// success response, error response), envelope validation, and a size bound
// shared by every transport that carries this codec's output.
//
// This mirrors the shape of the teacher SDK's transport.BaseJSONRPCRequest /
// BaseJSONRPCNotification types, generalized to a standalone codec package so
// both the stdio and SSE reference transports, and the protocol core, share
// one implementation instead of three ad-hoc ones.
package jsonrpc2

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Version is the only Jsonrpc field value this codec will encode or accept.
const Version = "2.0"

// DefaultMaxMessageSize bounds a single encoded message, per spec.md §4.1.
const DefaultMaxMessageSize = 4 * 1024 * 1024

// Request is an outgoing or incoming JSON-RPC request: it expects a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification is a fire-and-forget JSON-RPC message; it carries no ID and
// expects no response.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a successful reply to a Request.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// ErrorResponse is a failed reply to a Request.
type ErrorResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      RequestID `json:"id"`
	Error   *Error    `json:"error"`
}

// Kind tags which of the four envelope variants a decoded Message holds.
type Kind int

const (
	KindRequest Kind = iota
	KindNotification
	KindResponse
	KindErrorResponse
)

// Message is the decoded form of one line on the wire: exactly one of the
// four envelope variants, selected by Kind.
type Message struct {
	Kind          Kind
	Request       *Request
	Notification  *Notification
	Response      *Response
	ErrorResponse *ErrorResponse
}

// envelopeProbe is used only to sniff which variant a raw JSON object is,
// without committing to a concrete type until we know which one it is.
// ID is a plain RawMessage, not a pointer, so an explicit "id":null stays
// distinguishable from an absent id.
type envelopeProbe struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Method  *json.RawMessage `json:"method"`
	Result  *json.RawMessage `json:"result"`
	Error   *json.RawMessage `json:"error"`
}

// Codec encodes and decodes single JSON-RPC messages, enforcing a maximum
// message size in both directions.
type Codec struct {
	MaxMessageSize int
}

// NewCodec returns a Codec with the default 4 MiB size bound.
func NewCodec() *Codec {
	return &Codec{MaxMessageSize: DefaultMaxMessageSize}
}

func (c *Codec) maxSize() int {
	if c.MaxMessageSize > 0 {
		return c.MaxMessageSize
	}
	return DefaultMaxMessageSize
}

// Encode serializes a Message to canonical JSON bytes (no trailing newline;
// transports that need newline framing append it themselves).
func (c *Codec) Encode(msg *Message) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	switch msg.Kind {
	case KindRequest:
		if msg.Request.ID.IsZero() {
			return nil, NewError(CodeInvalidRequest, "request id must not be null")
		}
		msg.Request.JSONRPC = Version
		b, err = json.Marshal(msg.Request)
	case KindNotification:
		msg.Notification.JSONRPC = Version
		b, err = json.Marshal(msg.Notification)
	case KindResponse:
		msg.Response.JSONRPC = Version
		b, err = json.Marshal(msg.Response)
	case KindErrorResponse:
		msg.ErrorResponse.JSONRPC = Version
		b, err = json.Marshal(msg.ErrorResponse)
	default:
		return nil, errors.Errorf("jsonrpc2: unknown message kind %d", msg.Kind)
	}
	if err != nil {
		return nil, errors.Wrap(err, "jsonrpc2: encode")
	}
	if len(b) > c.maxSize() {
		return nil, NewError(CodeInvalidRequest, "encoded message exceeds max size")
	}
	return b, nil
}

// Decode parses exactly one JSON value into the matching envelope variant and
// validates it per spec.md §4.1: must be jsonrpc 2.0, a response must carry
// exactly one of result/error, and a request's id must not be null.
func (c *Codec) Decode(data []byte) (*Message, error) {
	if len(data) > c.maxSize() {
		return nil, NewError(CodeParseError, "message exceeds max size")
	}

	var probe envelopeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, NewError(CodeParseError, "invalid JSON: "+err.Error())
	}
	if probe.JSONRPC != Version {
		return nil, NewError(CodeInvalidRequest, "missing or invalid jsonrpc version")
	}

	switch {
	case probe.Method != nil && probe.ID != nil:
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, NewError(CodeInvalidRequest, "malformed request: "+err.Error())
		}
		if req.ID.IsZero() {
			return nil, NewError(CodeInvalidRequest, "request id must not be null")
		}
		return &Message{Kind: KindRequest, Request: &req}, nil

	case probe.Method != nil:
		var notif Notification
		if err := json.Unmarshal(data, &notif); err != nil {
			return nil, NewError(CodeInvalidRequest, "malformed notification: "+err.Error())
		}
		return &Message{Kind: KindNotification, Notification: &notif}, nil

	case probe.Result != nil && probe.Error != nil:
		return nil, NewError(CodeInvalidRequest, "response must not carry both result and error")

	case probe.Result != nil:
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, NewError(CodeInvalidRequest, "malformed response: "+err.Error())
		}
		return &Message{Kind: KindResponse, Response: &resp}, nil

	case probe.Error != nil:
		var resp ErrorResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, NewError(CodeInvalidRequest, "malformed error response: "+err.Error())
		}
		return &Message{Kind: KindErrorResponse, ErrorResponse: &resp}, nil

	default:
		return nil, NewError(CodeInvalidRequest, "envelope matches no known variant")
	}
}
