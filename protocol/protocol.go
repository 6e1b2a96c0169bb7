// Package protocol implements the transport-agnostic request/response
// engine described in spec.md §4.4-§4.8: correlation of outgoing requests
// with their responses, timeout and cancellation of both directions,
// progress notifications, debounced notifications, and a handler registry
// with a wrapper chain. It knows nothing about MCP's method taxonomy; that
// lives in the mcp package, which plugs a CapabilityGate in and drives this
// engine with typed requests.
//
// Grounded on the teacher SDK's internal/protocol/protocol.go, generalized
// from its map[string]interface{} wire shapes to jsonrpc2.Message and
// transport.Transport.
package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/contextrt/mcp-go/jsonrpc2"
	"github.com/contextrt/mcp-go/transport"
)

// DefaultRequestTimeout is applied to an outgoing request when
// RequestOptions.Timeout is zero.
const DefaultRequestTimeout = 60 * time.Second

// Options configures a Protocol instance at construction time.
type Options struct {
	// EnforceStrictCapabilities, when true, rejects outgoing requests and
	// incoming requests whose method the installed CapabilityGate does not
	// allow, before any message touches the wire.
	EnforceStrictCapabilities bool
	// DebouncedNotificationMethods lists methods eligible for notification
	// debouncing (spec.md §4.5). Can also be set later via
	// SetDebouncedMethods.
	DebouncedNotificationMethods []string
	// Logger receives structured diagnostics. A nil Logger is replaced with
	// zap.NewNop(), mirroring the teacher SDK's nil-safe callback discipline.
	Logger *zap.Logger
}

// RequestHandlerFunc handles one incoming request and returns its result (to
// be marshalled into the JSON-RPC response) or an error (to be reported as a
// JSON-RPC error response).
type RequestHandlerFunc func(ctx context.Context, req *jsonrpc2.Request, extra RequestHandlerExtra) (interface{}, error)

// NotificationHandlerFunc handles one incoming notification.
type NotificationHandlerFunc func(ctx context.Context, notif *jsonrpc2.Notification) error

// RequestHandlerExtra is passed to every RequestHandlerFunc, carrying the
// request's id, _meta and transport info, and the means to originate
// messages attributed to the request being served. Cancellation is observed
// through the ctx passed to the handler alongside it.
type RequestHandlerExtra struct {
	RequestID      jsonrpc2.RequestID
	Meta           map[string]interface{}
	TransportInfo  transport.Info
	SendNotification func(method string, params interface{}) error
	SendRequest      func(ctx context.Context, method string, params interface{}, opts *RequestOptions) (json.RawMessage, error)
}

// RequestOptions configures one outgoing request.
type RequestOptions struct {
	// Timeout bounds how long to wait for a response before failing with a
	// RequestTimeout error and notifying the peer of the cancellation.
	// Zero means DefaultRequestTimeout.
	Timeout time.Duration
	// ResetOnProgress restarts the timeout window each time a progress
	// notification is received for this request, up to MaxTotalTimeout.
	ResetOnProgress bool
	// MaxTotalTimeout caps the cumulative wait regardless of progress resets.
	// Zero means uncapped.
	MaxTotalTimeout time.Duration
	// OnProgress, if set, causes a progress token to be attached to the
	// request and this callback invoked for every progress notification
	// that names it.
	OnProgress ProgressCallback
	// RelatedRequestID attributes this request to the incoming request it
	// was made in service of (set automatically by
	// RequestHandlerExtra.SendRequest). It is a local attribution aid only;
	// per the resolved Open Question on relatedRequestId, it is never
	// serialized onto the wire.
	RelatedRequestID *jsonrpc2.RequestID
}

// NotificationOptions configures one outgoing notification.
type NotificationOptions struct {
	// RelatedRequestID attributes this notification to the incoming request
	// it was sent in service of, and participates in the debounce-eligible
	// check (a notification naming a related request is never debounced).
	// Like RequestOptions.RelatedRequestID, it is not serialized.
	RelatedRequestID *jsonrpc2.RequestID
}

type pendingRequest struct {
	once      sync.Once
	resultCh  chan rpcResult
	progress  ProgressCallback
	timer     *time.Timer
	startedAt time.Time
	timeout   time.Duration
	maxTotal  time.Duration
	resetting bool
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

func (e *pendingRequest) complete(result json.RawMessage, err error) {
	e.once.Do(func() {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.resultCh <- rpcResult{result: result, err: err}
	})
}

// Protocol is one end of a JSON-RPC 2.0 session running over a single
// transport.Transport. It is safe for concurrent use.
type Protocol struct {
	mu sync.Mutex

	options Options
	logger  *zap.Logger

	transport transport.Transport
	gate      CapabilityGate

	nextID   int64
	inflight map[int64]*pendingRequest

	requestHandlers       map[string]RequestHandlerFunc
	notificationHandlers  map[string]NotificationHandlerFunc
	fallbackRequest       RequestHandlerFunc
	fallbackNotification  NotificationHandlerFunc
	wrappers              []func(RequestHandlerFunc) RequestHandlerFunc

	inboundCancel map[string]context.CancelFunc

	debounce *debouncer

	onClose   func()
	onError   func(error)
	closeOnce sync.Once
	closed    bool
}

// New constructs a Protocol with no transport attached yet. Call Connect to
// attach one and begin reading.
func New(opts Options) *Protocol {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Protocol{
		options:              opts,
		logger:               logger,
		inflight:             make(map[int64]*pendingRequest),
		requestHandlers:      make(map[string]RequestHandlerFunc),
		notificationHandlers: make(map[string]NotificationHandlerFunc),
		inboundCancel:        make(map[string]context.CancelFunc),
		debounce:             newDebouncer(opts.DebouncedNotificationMethods),
	}
	p.requestHandlers["ping"] = func(ctx context.Context, req *jsonrpc2.Request, extra RequestHandlerExtra) (interface{}, error) {
		return struct{}{}, nil
	}
	return p
}

// SetDebouncedMethods replaces the set of notification methods eligible for
// debouncing.
func (p *Protocol) SetDebouncedMethods(methods []string) {
	p.debounce.setEligible(methods)
}

// SetCloseHandler registers a callback fired exactly once when the session
// closes, whether initiated locally via Close or by the peer/transport.
func (p *Protocol) SetCloseHandler(handler func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClose = handler
}

// SetErrorHandler registers a callback for non-fatal transport errors
// (malformed frames and the like) observed while the session is open.
func (p *Protocol) SetErrorHandler(handler func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = handler
}

// Connect attaches tr as this session's transport and starts it. It must be
// called at most once per Protocol.
func (p *Protocol) Connect(ctx context.Context, tr transport.Transport) error {
	p.mu.Lock()
	p.transport = tr
	p.mu.Unlock()

	tr.SetMessageHandler(p.dispatchMessage)
	tr.SetCloseHandler(func() { p.closeOnce.Do(p.drainAndNotifyClose) })
	tr.SetErrorHandler(p.handleTransportError)
	return tr.Start(ctx)
}

// Close shuts down the attached transport. Draining of in-flight state and
// the onClose callback happen exactly once via the transport's registered
// close handler, regardless of whether Close was called locally or the
// transport closed on its own (spec.md §3 invariant: OnClose fires exactly
// once).
func (p *Protocol) Close() error {
	p.mu.Lock()
	tr := p.transport
	p.mu.Unlock()
	if tr == nil {
		p.closeOnce.Do(p.drainAndNotifyClose)
		return nil
	}
	return tr.Close()
}

func (p *Protocol) drainAndNotifyClose() {
	p.mu.Lock()
	p.closed = true
	entries := p.inflight
	p.inflight = make(map[int64]*pendingRequest)
	cancels := p.inboundCancel
	p.inboundCancel = make(map[string]context.CancelFunc)
	onClose := p.onClose
	p.mu.Unlock()

	closedErr := jsonrpc2.NewError(jsonrpc2.CodeConnectionClosed, "connection closed")
	for _, entry := range entries {
		entry.complete(nil, closedErr)
	}
	for _, cancel := range cancels {
		cancel()
	}
	if onClose != nil {
		onClose()
	}
}

func (p *Protocol) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Protocol) handleTransportError(err error) {
	p.mu.Lock()
	handler := p.onError
	p.mu.Unlock()
	if handler != nil {
		handler(err)
	} else {
		p.logger.Warn("transport error", zap.Error(err))
	}
}

func (p *Protocol) dispatchMessage(msg *jsonrpc2.Message, info transport.Info) {
	switch msg.Kind {
	case jsonrpc2.KindRequest:
		p.handleRequest(msg.Request, info)
	case jsonrpc2.KindNotification:
		p.handleNotification(msg.Notification, info)
	case jsonrpc2.KindResponse:
		p.handleResponse(msg.Response.ID, msg.Response.Result, nil)
	case jsonrpc2.KindErrorResponse:
		p.handleResponse(msg.ErrorResponse.ID, nil, msg.ErrorResponse.Error)
	default:
		p.logger.Warn("dropping message of unknown kind")
	}
}

func (p *Protocol) send(msg *jsonrpc2.Message) error {
	p.mu.Lock()
	tr := p.transport
	p.mu.Unlock()
	if tr == nil {
		return errors.New("protocol: not connected")
	}
	return tr.Send(msg)
}
