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
	"github.com/contextrt/mcp-go/uritemplate"
)

func newConnectedServer(t *testing.T, caps ServerCapabilities) (*Server, *testingutils.MockTransport) {
	t.Helper()
	tr := testingutils.NewMockTransport()
	s := NewServer(Implementation{Name: "test-server", Version: "0.0.1"}, caps, nil)
	require.NoError(t, s.Connect(context.Background(), tr))
	return s, tr
}

func simulateRequest(tr *testingutils.MockTransport, id int64, method string, params interface{}) {
	raw, _ := json.Marshal(params)
	tr.SimulateMessage(&jsonrpc2.Message{Kind: jsonrpc2.KindRequest, Request: &jsonrpc2.Request{
		ID:     jsonrpc2.NewRequestID(id),
		Method: method,
		Params: raw,
	}}, transport.Info{})
}

func lastSentResult(t *testing.T, tr *testingutils.MockTransport) json.RawMessage {
	t.Helper()
	sent := tr.Sent()
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	require.Equal(t, jsonrpc2.KindResponse, last.Kind)
	return last.Response.Result
}

func TestServerInitializeRecordsRemoteCapabilitiesAndAnswers(t *testing.T) {
	s, tr := newConnectedServer(t, ServerCapabilities{Tools: &listChanged{}})

	simulateRequest(tr, 1, MethodInitialize, InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ClientCapabilities{Sampling: map[string]interface{}{}},
		ClientInfo:      Implementation{Name: "test-client", Version: "1.0"},
	})
	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, time.Millisecond)

	var result InitializeResult
	require.NoError(t, json.Unmarshal(lastSentResult(t, tr), &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "test-server", result.ServerInfo.Name)
	assert.NotNil(t, s.remoteCaps.Sampling)
}

type echoArgs struct {
	Message string `json:"message" jsonschema:"description=text to echo"`
}

func TestRegisterToolAndCall(t *testing.T) {
	s, tr := newConnectedServer(t, ServerCapabilities{Tools: &listChanged{}})

	err := RegisterTool(s, "echo", "echoes its input", func(ctx context.Context, args echoArgs) (*CallToolResult, error) {
		return &CallToolResult{Content: []Content{NewTextContent(args.Message)}}, nil
	})
	require.NoError(t, err)

	simulateRequest(tr, 1, MethodToolsList, ListToolsParams{})
	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, time.Millisecond)
	var listResult ListToolsResult
	require.NoError(t, json.Unmarshal(lastSentResult(t, tr), &listResult))
	require.Len(t, listResult.Tools, 1)
	assert.Equal(t, "echo", listResult.Tools[0].Name)
	assert.NotEmpty(t, listResult.Tools[0].InputSchema)

	simulateRequest(tr, 2, MethodToolsCall, CallToolParams{Name: "echo", Arguments: map[string]interface{}{"message": "hi"}})
	require.Eventually(t, func() bool { return len(tr.Sent()) == 2 }, time.Second, time.Millisecond)
	var callResult CallToolResult
	require.NoError(t, json.Unmarshal(lastSentResult(t, tr), &callResult))
	require.Len(t, callResult.Content, 1)
	assert.Equal(t, "hi", callResult.Content[0].Text)
	assert.False(t, callResult.IsError)
}

func TestCallUnknownToolReturnsError(t *testing.T) {
	s, tr := newConnectedServer(t, ServerCapabilities{Tools: &listChanged{}})
	_ = s

	simulateRequest(tr, 1, MethodToolsCall, CallToolParams{Name: "missing"})
	require.Eventually(t, func() bool { return len(tr.Sent()) >= 1 }, time.Second, time.Millisecond)
	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, jsonrpc2.KindErrorResponse, sent[0].Kind)
}

func TestToolHandlerErrorBecomesIsErrorResult(t *testing.T) {
	s, tr := newConnectedServer(t, ServerCapabilities{Tools: &listChanged{}})
	err := RegisterTool(s, "fail", "always fails", func(ctx context.Context, args echoArgs) (*CallToolResult, error) {
		return nil, assertErr{}
	})
	require.NoError(t, err)

	simulateRequest(tr, 1, MethodToolsCall, CallToolParams{Name: "fail"})
	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, time.Millisecond)
	var callResult CallToolResult
	require.NoError(t, json.Unmarshal(lastSentResult(t, tr), &callResult))
	assert.True(t, callResult.IsError)
	require.Len(t, callResult.Content, 1)
	assert.Equal(t, "boom", callResult.Content[0].Text)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestRegisterResourceTemplateServesMatchingRead(t *testing.T) {
	s, tr := newConnectedServer(t, ServerCapabilities{Resources: &ServerResourcesCapability{}})

	err := s.RegisterResourceTemplate(ResourceTemplate{Name: "file", URITemplate: "file:///{path}"},
		func(ctx context.Context, uri string, values uritemplate.Values) (*ReadResourceResult, error) {
			path, _ := values["path"].(string)
			return &ReadResourceResult{Contents: []interface{}{
				TextResourceContents{ResourceContents: ResourceContents{URI: uri, MimeType: "text/plain"}, Text: "contents of " + path},
			}}, nil
		})
	require.NoError(t, err)

	simulateRequest(tr, 1, MethodResourcesRead, ReadResourceParams{URI: "file:///a/b.txt"})
	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, time.Millisecond)
	var result ReadResourceResult
	require.NoError(t, json.Unmarshal(lastSentResult(t, tr), &result))
	require.Len(t, result.Contents, 1)
}
