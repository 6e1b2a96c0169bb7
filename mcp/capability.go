package mcp

// ServerGate implements protocol.CapabilityGate for the server side of a
// session: CanServe checks the server's own advertised capabilities (can we
// serve this C→S method at all). CanSend checks the client's last-known
// capabilities for S→C requests (sampling, elicitation, roots/list) and the
// server's own advertised capabilities for S→C notifications (list_changed,
// resources/updated, notifications/message); the protocol engine consults
// CanSend for outgoing requests only. Method names with no listed capability
// requirement (e.g. "ping", "initialize") are always allowed.
type ServerGate struct {
	Local  *ServerCapabilities
	Remote *ClientCapabilities
}

func (g *ServerGate) CanServe(method string) bool {
	switch method {
	case MethodToolsList, MethodToolsCall:
		return g.Local != nil && g.Local.Tools != nil
	case MethodResourcesList, MethodResourceTemplatesList, MethodResourcesRead:
		return g.Local != nil && g.Local.Resources != nil
	case MethodResourcesSubscribe, MethodResourcesUnsubscribe:
		return g.Local != nil && g.Local.Resources != nil && g.Local.Resources.Subscribe
	case MethodPromptsList, MethodPromptsGet:
		return g.Local != nil && g.Local.Prompts != nil
	case MethodLoggingSetLevel:
		return g.Local != nil && g.Local.Logging != nil
	case MethodCompletionComplete:
		return g.Local != nil && g.Local.Completions != nil
	case MethodRootsListChanged:
		return true // C→S informational; server always accepts it
	default:
		return true
	}
}

func (g *ServerGate) CanSend(method string) bool {
	switch method {
	case MethodToolsListChanged:
		return g.Local != nil && g.Local.Tools != nil && g.Local.Tools.ListChanged
	case MethodResourcesListChanged:
		return g.Local != nil && g.Local.Resources != nil && g.Local.Resources.ListChanged
	case MethodResourcesUpdated:
		return g.Local != nil && g.Local.Resources != nil && g.Local.Resources.Subscribe
	case MethodPromptsListChanged:
		return g.Local != nil && g.Local.Prompts != nil && g.Local.Prompts.ListChanged
	case MethodLoggingMessage:
		return g.Local != nil && g.Local.Logging != nil
	case MethodSamplingCreateMessage:
		return g.Remote != nil && g.Remote.Sampling != nil
	case MethodElicitationCreate:
		return g.Remote != nil && g.Remote.Elicitation != nil
	case MethodRootsList:
		return g.Remote != nil && g.Remote.Roots != nil
	default:
		return true
	}
}

// ClientGate is ServerGate's mirror image for the client side of a session.
type ClientGate struct {
	Local  *ClientCapabilities
	Remote *ServerCapabilities
}

func (g *ClientGate) CanServe(method string) bool {
	switch method {
	case MethodSamplingCreateMessage:
		return g.Local != nil && g.Local.Sampling != nil
	case MethodElicitationCreate:
		return g.Local != nil && g.Local.Elicitation != nil
	case MethodRootsList:
		return g.Local != nil && g.Local.Roots != nil
	default:
		return true
	}
}

func (g *ClientGate) CanSend(method string) bool {
	switch method {
	case MethodRootsListChanged:
		return g.Local != nil && g.Local.Roots != nil && g.Local.Roots.ListChanged
	case MethodToolsList, MethodToolsCall:
		return g.Remote != nil && g.Remote.Tools != nil
	case MethodResourcesList, MethodResourceTemplatesList, MethodResourcesRead:
		return g.Remote != nil && g.Remote.Resources != nil
	case MethodResourcesSubscribe, MethodResourcesUnsubscribe:
		return g.Remote != nil && g.Remote.Resources != nil && g.Remote.Resources.Subscribe
	case MethodPromptsList, MethodPromptsGet:
		return g.Remote != nil && g.Remote.Prompts != nil
	case MethodLoggingSetLevel:
		return g.Remote != nil && g.Remote.Logging != nil
	case MethodCompletionComplete:
		return g.Remote != nil && g.Remote.Completions != nil
	default:
		return true
	}
}
