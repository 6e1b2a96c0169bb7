package transport

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextrt/mcp-go/jsonrpc2"
)

func TestSSEServerTransportSendsEndpointEventAndHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := NewSSEServerTransport("/messages", w)
	require.NoError(t, err)

	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	headers := w.Header()
	assert.Equal(t, "text/event-stream", headers.Get("Content-Type"))
	assert.Equal(t, "no-cache", headers.Get("Cache-Control"))
	assert.Equal(t, "keep-alive", headers.Get("Connection"))

	body := w.Body.String()
	assert.Contains(t, body, "event: endpoint")
	assert.Contains(t, body, "/messages?sessionId="+tr.SessionID())
}

func TestSSEServerTransportStartTwiceFails(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := NewSSEServerTransport("/messages", w)
	require.NoError(t, err)

	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()
	assert.ErrorIs(t, tr.Start(context.Background()), ErrAlreadyStarted{})
}

func TestSSEServerTransportHandleMessageDispatches(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := NewSSEServerTransport("/messages", w)
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	var received *jsonrpc2.Message
	var gotInfo Info
	tr.SetMessageHandler(func(msg *jsonrpc2.Message, info Info) {
		received = msg
		gotInfo = info
	})

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	require.NoError(t, tr.HandleMessage(body, "some-request-info"))

	require.NotNil(t, received)
	assert.Equal(t, jsonrpc2.KindRequest, received.Kind)
	assert.Equal(t, "ping", received.Request.Method)
	assert.Equal(t, tr.SessionID(), gotInfo.SessionID)
	assert.Equal(t, "some-request-info", gotInfo.RequestInfo)
}

func TestSSEServerTransportHandleMessageReportsMalformedBody(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := NewSSEServerTransport("/messages", w)
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	var gotErr error
	tr.SetErrorHandler(func(err error) { gotErr = err })

	err = tr.HandleMessage([]byte("not json"), nil)
	assert.Error(t, err)
	assert.Error(t, gotErr)
}

func TestSSEServerTransportSendWritesMessageEvent(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := NewSSEServerTransport("/messages", w)
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()

	err = tr.Send(&jsonrpc2.Message{Kind: jsonrpc2.KindResponse, Response: &jsonrpc2.Response{
		ID:     jsonrpc2.NewRequestID(int64(1)),
		Result: []byte(`{"status":"ok"}`),
	}})
	require.NoError(t, err)

	body := w.Body.String()
	assert.Contains(t, body, "event: message")
	assert.Contains(t, body, `"status":"ok"`)
}

func TestSSEServerTransportCloseIsIdempotentAndFiresHandlerOnce(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := NewSSEServerTransport("/messages", w)
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))

	closeCount := 0
	tr.SetCloseHandler(func() { closeCount++ })

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, 1, closeCount)

	err = tr.Send(&jsonrpc2.Message{Kind: jsonrpc2.KindNotification, Notification: &jsonrpc2.Notification{Method: "x"}})
	assert.ErrorIs(t, err, ErrTransportClosed{})
}

func TestSSEServerTransportContextCancellationCloses(t *testing.T) {
	w := httptest.NewRecorder()
	tr, err := NewSSEServerTransport("/messages", w)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tr.Start(ctx))

	closed := make(chan struct{})
	tr.SetCloseHandler(func() { close(closed) })

	cancel()
	<-closed
}
