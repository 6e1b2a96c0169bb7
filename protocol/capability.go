package protocol

// CapabilityGate lets a session layer (the mcp package's initialize/capability
// negotiation) plug capability enforcement into the generic wire engine
// without the engine knowing anything about MCP's method taxonomy. CanSend
// gates outgoing requests against the peer's advertised capabilities; CanServe
// gates which of this side's own advertised capabilities an incoming request
// may invoke. Both are consulted only when Options.EnforceStrictCapabilities
// is set; with no gate installed, or with strict enforcement off, nothing is
// blocked.
type CapabilityGate interface {
	CanSend(method string) bool
	CanServe(method string) bool
}

// SetCapabilityGate installs or replaces the active gate. A nil gate disables
// enforcement regardless of Options.EnforceStrictCapabilities.
func (p *Protocol) SetCapabilityGate(gate CapabilityGate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate = gate
}
