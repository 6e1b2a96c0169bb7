package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextrt/mcp-go/internal/testingutils"
	"github.com/contextrt/mcp-go/jsonrpc2"
	"github.com/contextrt/mcp-go/transport"
)

func newConnectedClient(t *testing.T, caps ClientCapabilities) (*Client, *testingutils.MockTransport) {
	t.Helper()
	tr := testingutils.NewMockTransport()
	c := NewClient(Implementation{Name: "test-client", Version: "0.0.1"}, caps, nil)
	require.NoError(t, c.Connect(context.Background(), tr))
	return c, tr
}

func lastSentRequest(t *testing.T, tr *testingutils.MockTransport) *jsonrpc2.Request {
	t.Helper()
	sent := tr.Sent()
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	require.Equal(t, jsonrpc2.KindRequest, last.Kind)
	return last.Request
}

func respondTo(tr *testingutils.MockTransport, req *jsonrpc2.Request, result interface{}) {
	raw, _ := json.Marshal(result)
	tr.SimulateMessage(&jsonrpc2.Message{Kind: jsonrpc2.KindResponse, Response: &jsonrpc2.Response{
		ID:     req.ID,
		Result: raw,
	}}, transport.Info{})
}

func TestClientInitializeHandshake(t *testing.T) {
	c, tr := newConnectedClient(t, ClientCapabilities{})

	done := make(chan struct{})
	var result *InitializeResult
	var err error
	go func() {
		result, err = c.Initialize(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, time.Millisecond)
	req := lastSentRequest(t, tr)
	assert.Equal(t, MethodInitialize, req.Method)

	respondTo(tr, req, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ServerCapabilities{Tools: &listChanged{}},
		ServerInfo:      Implementation{Name: "test-server", Version: "1.0"},
	})

	<-done
	require.NoError(t, err)
	assert.Equal(t, "test-server", result.ServerInfo.Name)
	assert.NotNil(t, c.remoteCaps.Tools)

	require.Eventually(t, func() bool { return len(tr.Sent()) == 2 }, time.Second, time.Millisecond)
	initialized := tr.Sent()[1]
	assert.Equal(t, jsonrpc2.KindNotification, initialized.Kind)
	assert.Equal(t, MethodInitialized, initialized.Notification.Method)
}

func TestClientInitializeRejectsUnsupportedProtocolVersion(t *testing.T) {
	c, tr := newConnectedClient(t, ClientCapabilities{})

	done := make(chan struct{})
	var err error
	go func() {
		_, err = c.Initialize(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, time.Millisecond)
	req := lastSentRequest(t, tr)
	respondTo(tr, req, InitializeResult{ProtocolVersion: "1999-01-01", ServerInfo: Implementation{Name: "old"}})

	<-done
	assert.Error(t, err)
}

func TestClientCallToolRoundTrip(t *testing.T) {
	c, tr := newConnectedClient(t, ClientCapabilities{})
	c.remoteCaps = ServerCapabilities{Tools: &listChanged{}}

	done := make(chan struct{})
	var result *CallToolResult
	var err error
	go func() {
		result, err = c.CallTool(context.Background(), "echo", map[string]interface{}{"message": "hi"})
		close(done)
	}()

	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, time.Millisecond)
	req := lastSentRequest(t, tr)
	assert.Equal(t, MethodToolsCall, req.Method)

	respondTo(tr, req, CallToolResult{Content: []Content{NewTextContent("hi")}})
	<-done
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hi", result.Content[0].Text)
}

func TestClientServesSamplingRequestFromServer(t *testing.T) {
	c, tr := newConnectedClient(t, ClientCapabilities{Sampling: map[string]interface{}{}})
	c.RegisterSamplingHandler(func(ctx context.Context, params CreateMessageParams) (*CreateMessageResult, error) {
		return &CreateMessageResult{Role: RoleAssistant, Content: NewTextContent("reply"), Model: "test-model"}, nil
	})

	tr.SimulateMessage(&jsonrpc2.Message{Kind: jsonrpc2.KindRequest, Request: &jsonrpc2.Request{
		ID:     jsonrpc2.NewRequestID(int64(1)),
		Method: MethodSamplingCreateMessage,
		Params: []byte(`{"messages":[],"maxTokens":10}`),
	}}, transport.Info{})

	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, time.Millisecond)
	sent := tr.Sent()[0]
	require.Equal(t, jsonrpc2.KindResponse, sent.Kind)
	var result CreateMessageResult
	require.NoError(t, json.Unmarshal(sent.Response.Result, &result))
	assert.Equal(t, "reply", result.Content.Text)
}

func TestClientRejectsSamplingWithoutRegisteredHandler(t *testing.T) {
	_, tr := newConnectedClient(t, ClientCapabilities{Sampling: map[string]interface{}{}})

	tr.SimulateMessage(&jsonrpc2.Message{Kind: jsonrpc2.KindRequest, Request: &jsonrpc2.Request{
		ID:     jsonrpc2.NewRequestID(int64(1)),
		Method: MethodSamplingCreateMessage,
		Params: []byte(`{"messages":[],"maxTokens":10}`),
	}}, transport.Info{})

	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, jsonrpc2.KindErrorResponse, tr.Sent()[0].Kind)
}
