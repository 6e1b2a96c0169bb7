// Package mcp implements the typed Model Context Protocol message taxonomy
// on top of the transport-agnostic jsonrpc2/protocol engine, plus Server and
// Client facades that drive it with MCP's concrete request/notification
// shapes (spec.md §4.8). Grounded on the teacher SDK's root-level types.go,
// generalized from an interface{}-heavy sum-type style to concrete structs,
// with a custom-marshalled union (Content) or a plain interface{} slice
// (ReadResourceResult.Contents) only where the wire genuinely carries a
// polymorphic shape.
package mcp

import "github.com/contextrt/mcp-go/jsonrpc2"

// ProtocolVersion is the date-stamped protocol revision this runtime speaks.
const ProtocolVersion = "2024-11-05"

// Role identifies the sender or recipient of a sampling or prompt message.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// LoggingLevel is the severity of a logging/message notification, ordered
// per RFC 5424 from most to least severe.
type LoggingLevel string

const (
	LogLevelEmergency LoggingLevel = "emergency"
	LogLevelAlert     LoggingLevel = "alert"
	LogLevelCritical  LoggingLevel = "critical"
	LogLevelError     LoggingLevel = "error"
	LogLevelWarning   LoggingLevel = "warning"
	LogLevelNotice    LoggingLevel = "notice"
	LogLevelInfo      LoggingLevel = "info"
	LogLevelDebug     LoggingLevel = "debug"
)

// Cursor is an opaque pagination token returned by a list operation and
// passed back verbatim to fetch the next page.
type Cursor string

// RequestID re-exports the envelope's request identifier so callers of this
// package never need to import jsonrpc2 directly for everyday use.
type RequestID = jsonrpc2.RequestID

// Implementation names and versions one side of a session.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Annotations are optional hints about how a piece of content or a resource
// should be surfaced.
type Annotations struct {
	Audience []Role   `json:"audience,omitempty"`
	Priority *float64 `json:"priority,omitempty"`
}

// ModelHint suggests a model family or name during sampling.
type ModelHint struct {
	Name string `json:"name,omitempty"`
}

// ModelPreferences expresses the relative importance of cost, speed, and
// capability when a server asks a client to pick a sampling model.
type ModelPreferences struct {
	Hints                []ModelHint `json:"hints,omitempty"`
	CostPriority         float64     `json:"costPriority,omitempty"`
	SpeedPriority        float64     `json:"speedPriority,omitempty"`
	IntelligencePriority float64     `json:"intelligencePriority,omitempty"`
}

// listChanged is the shared shape of the capability flags that just announce
// list-changed notification support (server tools and prompts, client roots).
type listChanged struct {
	ListChanged bool `json:"listChanged"`
}

// ClientCapabilities is what a client advertises to the server at
// initialize time.
type ClientCapabilities struct {
	Experimental map[string]map[string]interface{} `json:"experimental,omitempty"`
	Roots        *listChanged                       `json:"roots,omitempty"`
	Sampling     map[string]interface{}             `json:"sampling,omitempty"`
	Elicitation  map[string]interface{}              `json:"elicitation,omitempty"`
}

// Merge folds extra's fields into c: every field extra sets replaces c's
// value for that field, fields extra leaves unset keep c's value, and
// extra's experimental entries are added key by key. Used when a caller
// registers additional capabilities after construction but before the
// handshake completes (spec.md §4.6).
func (c *ClientCapabilities) Merge(extra ClientCapabilities) {
	if extra.Roots != nil {
		c.Roots = extra.Roots
	}
	if extra.Sampling != nil {
		c.Sampling = extra.Sampling
	}
	if extra.Elicitation != nil {
		c.Elicitation = extra.Elicitation
	}
	for k, v := range extra.Experimental {
		if c.Experimental == nil {
			c.Experimental = make(map[string]map[string]interface{})
		}
		c.Experimental[k] = v
	}
}

// ServerResourcesCapability additionally flags subscribe support, unlike the
// plain list-changed-only tools/prompts capabilities.
type ServerResourcesCapability struct {
	ListChanged bool `json:"listChanged"`
	Subscribe   bool `json:"subscribe"`
}

// ServerCapabilities is what a server advertises to the client at
// initialize time.
type ServerCapabilities struct {
	Experimental map[string]map[string]interface{} `json:"experimental,omitempty"`
	Logging      map[string]interface{}             `json:"logging,omitempty"`
	Completions  map[string]interface{}             `json:"completions,omitempty"`
	Prompts      *listChanged                        `json:"prompts,omitempty"`
	Resources    *ServerResourcesCapability           `json:"resources,omitempty"`
	Tools        *listChanged                         `json:"tools,omitempty"`
}

// Merge folds extra's fields into c: every field extra sets replaces c's
// value for that field, and fields extra leaves unset keep c's value.
func (c *ServerCapabilities) Merge(extra ServerCapabilities) {
	if extra.Logging != nil {
		c.Logging = extra.Logging
	}
	if extra.Completions != nil {
		c.Completions = extra.Completions
	}
	if extra.Prompts != nil {
		c.Prompts = extra.Prompts
	}
	if extra.Resources != nil {
		c.Resources = extra.Resources
	}
	if extra.Tools != nil {
		c.Tools = extra.Tools
	}
	for k, v := range extra.Experimental {
		if c.Experimental == nil {
			c.Experimental = make(map[string]map[string]interface{})
		}
		c.Experimental[k] = v
	}
}

// ResourceContents is embedded by the two concrete resource content shapes.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
}

// TextResourceContents is a resource read back as text.
type TextResourceContents struct {
	ResourceContents
	Text string `json:"text"`
}

// BlobResourceContents is a resource read back as base64-encoded binary data.
type BlobResourceContents struct {
	ResourceContents
	Blob string `json:"blob"`
}

// Resource describes one concrete resource a server can read.
type Resource struct {
	Name        string       `json:"name"`
	URI         string       `json:"uri"`
	MimeType    string       `json:"mimeType,omitempty"`
	Description string       `json:"description,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

// ResourceTemplate describes a parametric family of resources via a URI
// template (spec.md §4.9).
type ResourceTemplate struct {
	Name        string       `json:"name"`
	URITemplate string       `json:"uriTemplate"`
	MimeType    string       `json:"mimeType,omitempty"`
	Description string       `json:"description,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

// Root is a filesystem or URI root the client exposes to the server.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// Tool describes one callable tool and its JSON Schema input shape.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// PromptArgument describes one argument a prompt template accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Prompt describes one named prompt template a server offers.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptMessage is one turn of a rendered prompt.
type PromptMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// SamplingMessage is one turn offered as context to a sampling request.
type SamplingMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// PaginatedParams is embedded by every list request's params.
type PaginatedParams struct {
	Cursor Cursor `json:"cursor,omitempty"`
}

// PaginatedResult is embedded by every list result.
type PaginatedResult struct {
	NextCursor Cursor `json:"nextCursor,omitempty"`
}

// InitializeParams is sent by the client as the first request of a session.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the server's answer to InitializeParams.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// ListToolsParams requests a page of the server's tool catalogue.
type ListToolsParams struct {
	PaginatedParams
}

// ListToolsResult is one page of the server's tool catalogue.
type ListToolsResult struct {
	PaginatedResult
	Tools []Tool `json:"tools"`
}

// CallToolParams invokes a named tool with arguments.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// CallToolResult is a tool invocation's outcome.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ListResourcesParams requests a page of the server's resource catalogue.
type ListResourcesParams struct {
	PaginatedParams
}

// ListResourcesResult is one page of the server's resource catalogue.
type ListResourcesResult struct {
	PaginatedResult
	Resources []Resource `json:"resources"`
}

// ListResourceTemplatesParams requests a page of the server's resource
// template catalogue.
type ListResourceTemplatesParams struct {
	PaginatedParams
}

// ListResourceTemplatesResult is one page of the server's resource template
// catalogue.
type ListResourceTemplatesResult struct {
	PaginatedResult
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

// ReadResourceParams names the resource to read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult carries one or more content blocks read from a resource
// (a directory resource may expand to several).
type ReadResourceResult struct {
	Contents []interface{} `json:"contents"` // TextResourceContents | BlobResourceContents
}

// SubscribeParams requests update notifications for one resource.
type SubscribeParams struct {
	URI string `json:"uri"`
}

// UnsubscribeParams cancels a previous SubscribeParams.
type UnsubscribeParams struct {
	URI string `json:"uri"`
}

// ListPromptsParams requests a page of the server's prompt catalogue.
type ListPromptsParams struct {
	PaginatedParams
}

// ListPromptsResult is one page of the server's prompt catalogue.
type ListPromptsResult struct {
	PaginatedResult
	Prompts []Prompt `json:"prompts"`
}

// GetPromptParams names a prompt and supplies its arguments.
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// GetPromptResult is a prompt rendered into concrete messages.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// CreateMessageParams asks a client to run a sampling request against its
// configured model.
type CreateMessageParams struct {
	Messages         []SamplingMessage      `json:"messages"`
	ModelPreferences *ModelPreferences       `json:"modelPreferences,omitempty"`
	SystemPrompt     string                  `json:"systemPrompt,omitempty"`
	IncludeContext   string                  `json:"includeContext,omitempty"`
	Temperature      float64                 `json:"temperature,omitempty"`
	MaxTokens        int                     `json:"maxTokens"`
	StopSequences    []string                `json:"stopSequences,omitempty"`
	Metadata         map[string]interface{}  `json:"metadata,omitempty"`
}

// CreateMessageResult is a client's answer to a sampling request.
type CreateMessageResult struct {
	Role       Role    `json:"role"`
	Content    Content `json:"content"`
	Model      string  `json:"model"`
	StopReason string  `json:"stopReason,omitempty"`
}

// ElicitParams asks a client to collect structured input from its user.
type ElicitParams struct {
	Message         string                 `json:"message"`
	RequestedSchema map[string]interface{} `json:"requestedSchema"`
}

// ElicitResult is a client's answer to an elicitation request.
type ElicitResult struct {
	Action  string                 `json:"action"` // "accept" | "decline" | "cancel"
	Content map[string]interface{} `json:"content,omitempty"`
}

// ListRootsResult is a client's answer to a roots/list request.
type ListRootsResult struct {
	Roots []Root `json:"roots"`
}

// SetLevelParams adjusts the minimum severity of notifications/message a
// server will emit.
type SetLevelParams struct {
	Level LoggingLevel `json:"level"`
}

// CompleteParams requests argument-completion candidates for a prompt or
// resource template reference.
type CompleteParams struct {
	Ref      CompletionReference `json:"ref"`
	Argument CompletionArgument  `json:"argument"`
}

// CompletionReference names what is being completed against: a prompt name
// or a resource template's URI.
type CompletionReference struct {
	Type string `json:"type"` // "ref/prompt" | "ref/resource"
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// CompletionArgument is the partially-typed argument to complete.
type CompletionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompleteResult carries completion candidates.
type CompleteResult struct {
	Completion Completion `json:"completion"`
}

// Completion is the candidate list and pagination info for one completion
// request.
type Completion struct {
	Values  []string `json:"values"`
	Total   int      `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}

// CancelledParams is the payload of notifications/cancelled.
type CancelledParams struct {
	RequestID RequestID `json:"requestId"`
	Reason    string    `json:"reason,omitempty"`
}

// ProgressParams is the payload of notifications/progress.
type ProgressParams struct {
	ProgressToken interface{} `json:"progressToken"`
	Progress      float64     `json:"progress"`
	Total         float64     `json:"total,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// ResourceUpdatedParams is the payload of notifications/resources/updated.
type ResourceUpdatedParams struct {
	URI string `json:"uri"`
}

// LoggingMessageParams is the payload of notifications/message.
type LoggingMessageParams struct {
	Level  LoggingLevel `json:"level"`
	Logger string       `json:"logger,omitempty"`
	Data   interface{}  `json:"data"`
}

// Method name constants, per spec.md §4.8's method inventory.
const (
	MethodInitialize               = "initialize"
	MethodPing                     = "ping"
	MethodInitialized              = "notifications/initialized"
	MethodCancelled                = "notifications/cancelled"
	MethodProgress                 = "notifications/progress"
	MethodToolsList                = "tools/list"
	MethodToolsCall                = "tools/call"
	MethodToolsListChanged         = "notifications/tools/list_changed"
	MethodResourcesList            = "resources/list"
	MethodResourceTemplatesList    = "resources/templates/list"
	MethodResourcesRead            = "resources/read"
	MethodResourcesSubscribe       = "resources/subscribe"
	MethodResourcesUnsubscribe     = "resources/unsubscribe"
	MethodResourcesListChanged     = "notifications/resources/list_changed"
	MethodResourcesUpdated         = "notifications/resources/updated"
	MethodPromptsList              = "prompts/list"
	MethodPromptsGet               = "prompts/get"
	MethodPromptsListChanged       = "notifications/prompts/list_changed"
	MethodSamplingCreateMessage    = "sampling/createMessage"
	MethodElicitationCreate        = "elicitation/create"
	MethodRootsList                = "roots/list"
	MethodRootsListChanged         = "notifications/roots/list_changed"
	MethodLoggingSetLevel          = "logging/setLevel"
	MethodLoggingMessage           = "notifications/message"
	MethodCompletionComplete       = "completion/complete"
)
