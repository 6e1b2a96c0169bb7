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
	"github.com/contextrt/mcp-go/uritemplate"
)

// Server is the application-facing half of an MCP session acting as the
// C→S request target. It wraps a protocol.Protocol, supplying the MCP
// method taxonomy and a convenience registration surface (RegisterTool,
// RegisterResource, RegisterPrompt) on top of the engine's raw
// SetRequestHandler, grounded on the teacher's server.go doc-comment sketch
// (server.Tool(name, description, handler)) and tools/tool_api.go's
// ToolResponse union, generalized into a generic free function the way
// jsonrpc2.NewRequestID is (Go methods cannot carry their own type
// parameters).
type Server struct {
	mu sync.RWMutex

	proto *protocol.Protocol
	info  Implementation
	caps  ServerCapabilities

	remoteCaps ClientCapabilities
	gate       *ServerGate

	tools             map[string]Tool
	resources         map[string]Resource
	resourceTemplates []resourceTemplateEntry
	prompts           map[string]Prompt

	toolHandlers     map[string]func(context.Context, json.RawMessage) (*CallToolResult, error)
	resourceHandlers map[string]func(context.Context, string) (*ReadResourceResult, error)
	templateHandlers []resourceTemplateHandler
	promptHandlers   map[string]func(context.Context, map[string]string) (*GetPromptResult, error)
}

type resourceTemplateEntry struct {
	template ResourceTemplate
}

type resourceTemplateHandler struct {
	tmpl    *uritemplate.Template
	handler func(context.Context, string, uritemplate.Values) (*ReadResourceResult, error)
}

// NewServer constructs a Server advertising info and caps. logger may be
// nil (zap.NewNop() is used, matching the engine's own nil-safe default).
func NewServer(info Implementation, caps ServerCapabilities, logger *zap.Logger) *Server {
	s := &Server{
		info:             info,
		caps:             caps,
		tools:            make(map[string]Tool),
		resources:        make(map[string]Resource),
		prompts:          make(map[string]Prompt),
		toolHandlers:     make(map[string]func(context.Context, json.RawMessage) (*CallToolResult, error)),
		resourceHandlers: make(map[string]func(context.Context, string) (*ReadResourceResult, error)),
		promptHandlers:   make(map[string]func(context.Context, map[string]string) (*GetPromptResult, error)),
	}
	s.gate = &ServerGate{Local: &s.caps, Remote: &s.remoteCaps}
	s.proto = protocol.New(protocol.Options{
		EnforceStrictCapabilities:    true,
		DebouncedNotificationMethods: []string{MethodToolsListChanged, MethodResourcesListChanged, MethodPromptsListChanged},
		Logger:                       logger,
	})
	s.proto.SetCapabilityGate(s.gate)
	s.wireHandlers()
	return s
}

// Connect attaches tr and begins serving requests.
func (s *Server) Connect(ctx context.Context, tr transport.Transport) error {
	return s.proto.Connect(ctx, tr)
}

// Close ends the session.
func (s *Server) Close() error { return s.proto.Close() }

// Protocol exposes the underlying engine for advanced use (wrappers,
// SetErrorHandler, raw Request to the peer).
func (s *Server) Protocol() *protocol.Protocol { return s.proto }

// MergeCapabilities folds extra into the server's advertised capabilities.
// Must be called before the handshake completes (spec.md §4.6).
func (s *Server) MergeCapabilities(extra ServerCapabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps.Merge(extra)
}

func (s *Server) wireHandlers() {
	s.proto.SetRequestHandler(MethodInitialize, s.handleInitialize)
	s.proto.SetRequestHandler(MethodToolsList, s.handleToolsList)
	s.proto.SetRequestHandler(MethodToolsCall, s.handleToolsCall)
	s.proto.SetRequestHandler(MethodResourcesList, s.handleResourcesList)
	s.proto.SetRequestHandler(MethodResourceTemplatesList, s.handleResourceTemplatesList)
	s.proto.SetRequestHandler(MethodResourcesRead, s.handleResourcesRead)
	s.proto.SetRequestHandler(MethodResourcesSubscribe, s.handleSubscribe)
	s.proto.SetRequestHandler(MethodResourcesUnsubscribe, s.handleUnsubscribe)
	s.proto.SetRequestHandler(MethodPromptsList, s.handlePromptsList)
	s.proto.SetRequestHandler(MethodPromptsGet, s.handlePromptsGet)
	s.proto.SetRequestHandler(MethodLoggingSetLevel, s.handleSetLevel)
	s.proto.SetNotificationHandler(MethodInitialized, func(ctx context.Context, _ *jsonrpc2.Notification) error { return nil })
}

func (s *Server) handleInitialize(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	var params InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, errors.Wrap(err, "mcp: decode initialize params")
	}
	s.mu.Lock()
	s.remoteCaps = params.Capabilities
	s.mu.Unlock()

	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    s.caps,
		ServerInfo:      s.info,
	}, nil
}

func (s *Server) handleToolsList(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tools := make([]Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t)
	}
	return ListToolsResult{Tools: tools}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, errors.Wrap(err, "mcp: decode tools/call params")
	}
	s.mu.RLock()
	handler, ok := s.toolHandlers[params.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("mcp: unknown tool %q", params.Name)
	}
	argsRaw, err := json.Marshal(params.Arguments)
	if err != nil {
		return nil, errors.Wrap(err, "mcp: re-encode tool arguments")
	}
	result, err := handler(ctx, argsRaw)
	if err != nil {
		return CallToolResult{Content: []Content{NewTextContent(err.Error())}, IsError: true}, nil
	}
	return *result, nil
}

func (s *Server) handleResourcesList(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resources := make([]Resource, 0, len(s.resources))
	for _, r := range s.resources {
		resources = append(resources, r)
	}
	return ListResourcesResult{Resources: resources}, nil
}

func (s *Server) handleResourceTemplatesList(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	templates := make([]ResourceTemplate, 0, len(s.resourceTemplates))
	for _, e := range s.resourceTemplates {
		templates = append(templates, e.template)
	}
	return ListResourceTemplatesResult{ResourceTemplates: templates}, nil
}

func (s *Server) handleResourcesRead(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	var params ReadResourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, errors.Wrap(err, "mcp: decode resources/read params")
	}

	s.mu.RLock()
	handler, ok := s.resourceHandlers[params.URI]
	s.mu.RUnlock()
	if ok {
		return handler(ctx, params.URI)
	}

	s.mu.RLock()
	templates := s.templateHandlers
	s.mu.RUnlock()
	for _, te := range templates {
		values, matched, err := te.tmpl.Match(params.URI)
		if err != nil {
			return nil, errors.Wrap(err, "mcp: match resource template")
		}
		if matched {
			return te.handler(ctx, params.URI, values)
		}
	}
	return nil, errors.Errorf("mcp: unknown resource %q", params.URI)
}

func (s *Server) handleSubscribe(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	return struct{}{}, nil
}

func (s *Server) handleUnsubscribe(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	return struct{}{}, nil
}

func (s *Server) handlePromptsList(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prompts := make([]Prompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		prompts = append(prompts, p)
	}
	return ListPromptsResult{Prompts: prompts}, nil
}

func (s *Server) handlePromptsGet(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	var params GetPromptParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, errors.Wrap(err, "mcp: decode prompts/get params")
	}
	s.mu.RLock()
	handler, ok := s.promptHandlers[params.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("mcp: unknown prompt %q", params.Name)
	}
	return handler(ctx, params.Arguments)
}

func (s *Server) handleSetLevel(ctx context.Context, req *jsonrpc2.Request, extra protocol.RequestHandlerExtra) (interface{}, error) {
	return struct{}{}, nil
}

// RegisterTool registers a tool named name under description, whose
// arguments are reflected from T's struct tags into a JSON Schema
// (github.com/invopop/jsonschema) and whose invocation is routed to
// handler. A generic free function rather than a method, since Go methods
// cannot carry their own type parameters.
func RegisterTool[T any](s *Server, name, description string, handler func(context.Context, T) (*CallToolResult, error)) error {
	var zero T
	schema, err := schemaFor(zero)
	if err != nil {
		return errors.Wrapf(err, "mcp: reflect schema for tool %q", name)
	}

	s.mu.Lock()
	s.tools[name] = Tool{Name: name, Description: description, InputSchema: schema}
	s.toolHandlers[name] = func(ctx context.Context, argsRaw json.RawMessage) (*CallToolResult, error) {
		var args T
		if len(argsRaw) > 0 {
			if err := json.Unmarshal(argsRaw, &args); err != nil {
				return nil, errors.Wrapf(err, "mcp: decode arguments for tool %q", name)
			}
		}
		return handler(ctx, args)
	}
	s.mu.Unlock()

	if s.caps.Tools != nil && s.caps.Tools.ListChanged {
		_ = s.proto.Notification(MethodToolsListChanged, nil, nil)
	}
	return nil
}

// RemoveTool unregisters a tool and, if the server advertises
// tools.listChanged, notifies the peer.
func (s *Server) RemoveTool(name string) {
	s.mu.Lock()
	delete(s.tools, name)
	delete(s.toolHandlers, name)
	s.mu.Unlock()
	if s.caps.Tools != nil && s.caps.Tools.ListChanged {
		_ = s.proto.Notification(MethodToolsListChanged, nil, nil)
	}
}

// RegisterResource registers one concrete, statically-URI'd resource.
func (s *Server) RegisterResource(r Resource, handler func(context.Context, string) (*ReadResourceResult, error)) {
	s.mu.Lock()
	s.resources[r.URI] = r
	s.resourceHandlers[r.URI] = handler
	s.mu.Unlock()
	if s.caps.Resources != nil && s.caps.Resources.ListChanged {
		_ = s.proto.Notification(MethodResourcesListChanged, nil, nil)
	}
}

// RegisterResourceTemplate registers a parametric family of resources
// matched via an RFC 6570 URI template (package uritemplate).
func (s *Server) RegisterResourceTemplate(rt ResourceTemplate, handler func(context.Context, string, uritemplate.Values) (*ReadResourceResult, error)) error {
	tmpl, err := uritemplate.Parse(rt.URITemplate)
	if err != nil {
		return errors.Wrapf(err, "mcp: parse resource template %q", rt.URITemplate)
	}
	s.mu.Lock()
	s.resourceTemplates = append(s.resourceTemplates, resourceTemplateEntry{template: rt})
	s.templateHandlers = append(s.templateHandlers, resourceTemplateHandler{tmpl: tmpl, handler: handler})
	s.mu.Unlock()
	if s.caps.Resources != nil && s.caps.Resources.ListChanged {
		_ = s.proto.Notification(MethodResourcesListChanged, nil, nil)
	}
	return nil
}

// NotifyResourceUpdated announces that uri's contents changed, for
// subscribers. It is sent whether or not the server advertises
// resources.subscribe: the engine consults the capability gate for outgoing
// requests only.
func (s *Server) NotifyResourceUpdated(uri string) error {
	return s.proto.Notification(MethodResourcesUpdated, ResourceUpdatedParams{URI: uri}, nil)
}

// RegisterPrompt registers a named prompt template and its render function.
func RegisterPrompt[T any](s *Server, name, description string, args []PromptArgument, handler func(context.Context, T) (*GetPromptResult, error)) {
	s.mu.Lock()
	s.prompts[name] = Prompt{Name: name, Description: description, Arguments: args}
	s.promptHandlers[name] = func(ctx context.Context, raw map[string]string) (*GetPromptResult, error) {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "mcp: re-encode arguments for prompt %q", name)
		}
		var typed T
		if err := json.Unmarshal(b, &typed); err != nil {
			return nil, errors.Wrapf(err, "mcp: decode arguments for prompt %q", name)
		}
		return handler(ctx, typed)
	}
	s.mu.Unlock()
	if s.caps.Prompts != nil && s.caps.Prompts.ListChanged {
		_ = s.proto.Notification(MethodPromptsListChanged, nil, nil)
	}
}

// Log sends a notifications/message at level. No threshold is applied:
// handleSetLevel acknowledges logging/setLevel without storing the level, so
// every call to Log is sent.
func (s *Server) Log(level LoggingLevel, logger string, data interface{}) error {
	return s.proto.Notification(MethodLoggingMessage, LoggingMessageParams{Level: level, Logger: logger, Data: data}, nil)
}

// CreateMessage issues a server-initiated sampling/createMessage request to
// the client. Requires the client to have advertised the sampling
// capability.
func (s *Server) CreateMessage(ctx context.Context, params CreateMessageParams) (*CreateMessageResult, error) {
	raw, err := s.proto.Request(ctx, MethodSamplingCreateMessage, params, nil)
	if err != nil {
		return nil, err
	}
	var result CreateMessageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode sampling/createMessage result")
	}
	return &result, nil
}

// Elicit issues a server-initiated elicitation/create request to the
// client. Requires the client to have advertised the elicitation capability.
func (s *Server) Elicit(ctx context.Context, params ElicitParams) (*ElicitResult, error) {
	raw, err := s.proto.Request(ctx, MethodElicitationCreate, params, nil)
	if err != nil {
		return nil, err
	}
	var result ElicitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode elicitation/create result")
	}
	return &result, nil
}

// ListRoots asks the client for its configured roots. Requires the client
// to have advertised the roots capability.
func (s *Server) ListRoots(ctx context.Context) (*ListRootsResult, error) {
	raw, err := s.proto.Request(ctx, MethodRootsList, nil, nil)
	if err != nil {
		return nil, err
	}
	var result ListRootsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "mcp: decode roots/list result")
	}
	return &result, nil
}
