package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerGateCanServeRequiresLocalCapability(t *testing.T) {
	g := &ServerGate{Local: &ServerCapabilities{}, Remote: &ClientCapabilities{}}
	assert.False(t, g.CanServe(MethodToolsList))

	g.Local.Tools = &listChanged{}
	assert.True(t, g.CanServe(MethodToolsList))
}

func TestServerGateAlwaysAllowsUngatedMethods(t *testing.T) {
	g := &ServerGate{Local: &ServerCapabilities{}, Remote: &ClientCapabilities{}}
	assert.True(t, g.CanServe(MethodInitialize))
	assert.True(t, g.CanServe(MethodPing))
}

func TestServerGateCanSendChecksRemoteCapabilityForSamplingAndRoots(t *testing.T) {
	g := &ServerGate{Local: &ServerCapabilities{}, Remote: &ClientCapabilities{}}
	assert.False(t, g.CanSend(MethodSamplingCreateMessage))
	assert.False(t, g.CanSend(MethodRootsList))

	g.Remote.Sampling = map[string]interface{}{}
	g.Remote.Roots = &listChanged{}
	assert.True(t, g.CanSend(MethodSamplingCreateMessage))
	assert.True(t, g.CanSend(MethodRootsList))
}

func TestServerGateResourcesSubscribeRequiresSubscribeFlag(t *testing.T) {
	g := &ServerGate{Local: &ServerCapabilities{Resources: &ServerResourcesCapability{ListChanged: true}}, Remote: &ClientCapabilities{}}
	assert.False(t, g.CanServe(MethodResourcesSubscribe))

	g.Local.Resources.Subscribe = true
	assert.True(t, g.CanServe(MethodResourcesSubscribe))
}

func TestClientGateCanServeSamplingRequiresLocalCapability(t *testing.T) {
	g := &ClientGate{Local: &ClientCapabilities{}, Remote: &ServerCapabilities{}}
	assert.False(t, g.CanServe(MethodSamplingCreateMessage))

	g.Local.Sampling = map[string]interface{}{}
	assert.True(t, g.CanServe(MethodSamplingCreateMessage))
}

func TestClientGateCanSendChecksRemoteServerCapabilities(t *testing.T) {
	g := &ClientGate{Local: &ClientCapabilities{}, Remote: &ServerCapabilities{}}
	assert.False(t, g.CanSend(MethodToolsCall))

	g.Remote.Tools = &listChanged{}
	assert.True(t, g.CanSend(MethodToolsCall))
}
