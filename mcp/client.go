package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/contextrt/mcp-go/jsonrpc2"
	"github.com/contextrt/mcp-go/protocol"
	"github.com/contextrt/mcp-go/transport"
)

// Client is the application-facing half of an MCP session acting as the
// C→S request initiator. It wraps a protocol.Protocol with typed
// convenience wrappers for every C→S method, plus handler registration for
// the S→C methods a client must be able to serve (sampling, elicitation,
// roots), grounded on the teacher's client.go (Initialize/ListTools/
// CallTool/ListPrompts/GetPrompt) and generalized to the rest of the
// taxonomy spec.md §4.8 lists.
type Client struct {
	mu sync.RWMutex

	proto *protocol.Protocol
	info  Implementation
	caps  ClientCapabilities

	remoteCaps ServerCapabilities
	gate       *ClientGate

	samplingHandler    func(context.Context, CreateMessageParams) (*CreateMessageResult, error)
	elicitationHandler func(context.Context, ElicitParams) (*ElicitResult, error)
	rootsHandler       func(context.Context) (*ListRootsResult, error)
}

// NewClient constructs a Client advertising info and caps.
func NewClient(info Implementation, caps ClientCapabilities, logger *zap.Logger) *Client {
	c := &Client{info: info, caps: caps}
	c.gate = &ClientGate{Local: &c.caps, Remote: &c.remoteCaps}
	c.proto = protocol.New(protocol.Options{
		EnforceStrictCapabilities: true,
		Logger:                    logger,
	})
	c.proto.SetCapabilityGate(c.gate)
	c.wireHandlers()
	return c
}

// Connect attaches tr, starts the engine, and is ready for Initialize.
func (c *Client) Connect(ctx context.Context, tr transport.Transport) error {
	return c.proto.Connect(ctx, tr)
}

// Close ends the session.
func (c *Client) Close() error { return c.proto.Close() }

// Protocol exposes the underlying engine for advanced use.
func (c *Client) Protocol() *protocol.Protocol { return c.proto }

// MergeCapabilities folds extra into the client's advertised capabilities.
// Must be called before Initialize.
func (c *Client) MergeCapabilities(extra ClientCapabilities) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caps.Merge(extra)
}

// RegisterSamplingHandler lets this client serve sampling/createMessage
// requests initiated by the server.
func (c *Client) RegisterSamplingHandler(handler func(context.Context, CreateMessageParams) (*CreateMessageResult, error)) {
	c.mu.Lock()
	c.samplingHandler = handler
	c.mu.Unlock()
}

// RegisterElicitationHandler lets this client serve elicitation/create
// requests initiated by the server.
func (c *Client) RegisterElicitationHandler(handler func(context.Context, ElicitParams) (*ElicitResult, error)) {
	c.mu.Lock()
	c.elicitationHandler = handler
	c.mu.Unlock()
}

// RegisterRootsHandler lets this client serve roots/list requests initiated
// by the server.
func (c *Client) RegisterRootsHandler(handler func(context.Context) (*ListRootsResult, error)) {
	c.mu.Lock()
	c.rootsHandler = handler
	c.mu.Unlock()
}

func (c *Client) wireHandlers() {
	c.proto.SetRequestHandler(MethodPing, func(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
		return struct{}{}, nil
	})
	c.proto.SetRequestHandler(MethodSamplingCreateMessage, func(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
		c.mu.RLock()
		handler := c.samplingHandler
		c.mu.RUnlock()
		if handler == nil {
			return nil, jsonrpc2.NewError(jsonrpc2.CodeMethodNotFound, "no sampling handler registered")
		}
		var params CreateMessageParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, errors.Wrap(err, "mcp: decode sampling/createMessage params")
		}
		return handler(ctx, params)
	})
	c.proto.SetRequestHandler(MethodElicitationCreate, func(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
		c.mu.RLock()
		handler := c.elicitationHandler
		c.mu.RUnlock()
		if handler == nil {
			return nil, jsonrpc2.NewError(jsonrpc2.CodeMethodNotFound, "no elicitation handler registered")
		}
		var params ElicitParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, errors.Wrap(err, "mcp: decode elicitation/create params")
		}
		return handler(ctx, params)
	})
	c.proto.SetRequestHandler(MethodRootsList, func(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
		c.mu.RLock()
		handler := c.rootsHandler
		c.mu.RUnlock()
		if handler == nil {
			return nil, jsonrpc2.NewError(jsonrpc2.CodeMethodNotFound, "no roots handler registered")
		}
		return handler(ctx)
	})
}

// Initialize performs the capability-negotiation handshake: sends
// initialize, records the negotiated server capabilities and protocol
// version, then sends notifications/initialized. No other request may
// precede this except ping (spec.md §4.6); until remoteCaps is populated,
// the engine's strict-capability gate refuses every capability-gated method.
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, error) {
	c.mu.RLock()
	params := InitializeParams{ProtocolVersion: ProtocolVersion, Capabilities: c.caps, ClientInfo: c.info}
	c.mu.RUnlock()

	raw, err := c.proto.Request(ctx, MethodInitialize, params, nil)
	if err != nil {
		return nil, err
	}
	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode initialize result")
	}
	if result.ProtocolVersion != ProtocolVersion {
		return nil, errors.Errorf("mcp: unsupported protocol version %q (want %q)", result.ProtocolVersion, ProtocolVersion)
	}

	c.mu.Lock()
	c.remoteCaps = result.Capabilities
	c.mu.Unlock()

	if err := c.proto.Notification(MethodInitialized, nil, nil); err != nil {
		return nil, errors.Wrap(err, "mcp: send notifications/initialized")
	}
	return &result, nil
}

// Ping sends a bare liveness check.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.proto.Request(ctx, MethodPing, nil, nil)
	return err
}

// ListTools fetches one page of the server's tool catalogue.
func (c *Client) ListTools(ctx context.Context, cursor Cursor) (*ListToolsResult, error) {
	raw, err := c.proto.Request(ctx, MethodToolsList, ListToolsParams{PaginatedParams{Cursor: cursor}}, nil)
	if err != nil {
		return nil, err
	}
	var result ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode tools/list result")
	}
	return &result, nil
}

// CallTool invokes a named tool with arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*CallToolResult, error) {
	raw, err := c.proto.Request(ctx, MethodToolsCall, CallToolParams{Name: name, Arguments: arguments}, nil)
	if err != nil {
		return nil, err
	}
	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode tools/call result")
	}
	return &result, nil
}

// ListResources fetches one page of the server's resource catalogue.
func (c *Client) ListResources(ctx context.Context, cursor Cursor) (*ListResourcesResult, error) {
	raw, err := c.proto.Request(ctx, MethodResourcesList, ListResourcesParams{PaginatedParams{Cursor: cursor}}, nil)
	if err != nil {
		return nil, err
	}
	var result ListResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode resources/list result")
	}
	return &result, nil
}

// ListResourceTemplates fetches one page of the server's resource template
// catalogue.
func (c *Client) ListResourceTemplates(ctx context.Context, cursor Cursor) (*ListResourceTemplatesResult, error) {
	raw, err := c.proto.Request(ctx, MethodResourceTemplatesList, ListResourceTemplatesParams{PaginatedParams{Cursor: cursor}}, nil)
	if err != nil {
		return nil, err
	}
	var result ListResourceTemplatesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode resources/templates/list result")
	}
	return &result, nil
}

// ReadResource reads a resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	raw, err := c.proto.Request(ctx, MethodResourcesRead, ReadResourceParams{URI: uri}, nil)
	if err != nil {
		return nil, err
	}
	var result ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode resources/read result")
	}
	return &result, nil
}

// Subscribe requests update notifications for a resource.
func (c *Client) Subscribe(ctx context.Context, uri string) error {
	_, err := c.proto.Request(ctx, MethodResourcesSubscribe, SubscribeParams{URI: uri}, nil)
	return err
}

// Unsubscribe cancels a previous Subscribe.
func (c *Client) Unsubscribe(ctx context.Context, uri string) error {
	_, err := c.proto.Request(ctx, MethodResourcesUnsubscribe, UnsubscribeParams{URI: uri}, nil)
	return err
}

// ListPrompts fetches one page of the server's prompt catalogue.
func (c *Client) ListPrompts(ctx context.Context, cursor Cursor) (*ListPromptsResult, error) {
	raw, err := c.proto.Request(ctx, MethodPromptsList, ListPromptsParams{PaginatedParams{Cursor: cursor}}, nil)
	if err != nil {
		return nil, err
	}
	var result ListPromptsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode prompts/list result")
	}
	return &result, nil
}

// GetPrompt renders a named prompt with arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*GetPromptResult, error) {
	raw, err := c.proto.Request(ctx, MethodPromptsGet, GetPromptParams{Name: name, Arguments: arguments}, nil)
	if err != nil {
		return nil, err
	}
	var result GetPromptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode prompts/get result")
	}
	return &result, nil
}

// SetLoggingLevel asks the server to only emit notifications/message at or
// above level.
func (c *Client) SetLoggingLevel(ctx context.Context, level LoggingLevel) error {
	_, err := c.proto.Request(ctx, MethodLoggingSetLevel, SetLevelParams{Level: level}, nil)
	return err
}

// Complete requests argument-completion candidates.
func (c *Client) Complete(ctx context.Context, ref CompletionReference, arg CompletionArgument) (*CompleteResult, error) {
	raw, err := c.proto.Request(ctx, MethodCompletionComplete, CompleteParams{Ref: ref, Argument: arg}, nil)
	if err != nil {
		return nil, err
	}
	var result CompleteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode completion/complete result")
	}
	return &result, nil
}

// NotifyRootsListChanged informs the server that this client's root set
// changed. It is sent whether or not the client advertised
// roots.listChanged: the engine consults the capability gate for outgoing
// requests only.
func (c *Client) NotifyRootsListChanged() error {
	return c.proto.Notification(MethodRootsListChanged, nil, nil)
}

// OnToolsListChanged, OnResourcesListChanged, OnResourcesUpdated, and
// OnPromptsListChanged register callbacks for the corresponding S→C
// notifications.
func (c *Client) OnToolsListChanged(handler func()) {
	c.proto.SetNotificationHandler(MethodToolsListChanged, func(ctx context.Context, _ *jsonrpc2.Notification) error {
		handler()
		return nil
	})
}

func (c *Client) OnResourcesListChanged(handler func()) {
	c.proto.SetNotificationHandler(MethodResourcesListChanged, func(ctx context.Context, _ *jsonrpc2.Notification) error {
		handler()
		return nil
	})
}

func (c *Client) OnResourcesUpdated(handler func(uri string)) {
	c.proto.SetNotificationHandler(MethodResourcesUpdated, func(ctx context.Context, notif *jsonrpc2.Notification) error {
		var params ResourceUpdatedParams
		if err := json.Unmarshal(notif.Params, &params); err != nil {
			return errors.Wrap(err, "mcp: decode notifications/resources/updated")
		}
		handler(params.URI)
		return nil
	})
}

func (c *Client) OnPromptsListChanged(handler func()) {
	c.proto.SetNotificationHandler(MethodPromptsListChanged, func(ctx context.Context, _ *jsonrpc2.Notification) error {
		handler()
		return nil
	})
}

// OnLoggingMessage registers a callback for notifications/message.
func (c *Client) OnLoggingMessage(handler func(LoggingMessageParams)) {
	c.proto.SetNotificationHandler(MethodLoggingMessage, func(ctx context.Context, notif *jsonrpc2.Notification) error {
		var params LoggingMessageParams
		if err := json.Unmarshal(notif.Params, &params); err != nil {
			return errors.Wrap(err, "mcp: decode notifications/message")
		}
		handler(params)
		return nil
	})
}
