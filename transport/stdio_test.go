package transport

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextrt/mcp-go/jsonrpc2"
)

func TestStdioTransportSendAndReceive(t *testing.T) {
	// A pipe, not a bytes.Buffer: an empty buffer reads as EOF, which the
	// transport treats as the end of the session.
	inR, in := io.Pipe()
	out := &bytes.Buffer{}
	tr := NewStdioTransport(inR, out)

	var wg sync.WaitGroup
	wg.Add(1)
	var received *jsonrpc2.Message
	tr.SetMessageHandler(func(msg *jsonrpc2.Message, info Info) {
		received = msg
		wg.Done()
	})

	require.NoError(t, tr.Start(context.Background()))

	_, err := in.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"))
	require.NoError(t, err)

	waitOrTimeout(t, &wg)
	require.NotNil(t, received)
	assert.Equal(t, jsonrpc2.KindRequest, received.Kind)
	assert.Equal(t, "ping", received.Request.Method)

	err = tr.Send(&jsonrpc2.Message{Kind: jsonrpc2.KindResponse, Response: &jsonrpc2.Response{
		ID:     jsonrpc2.NewRequestID(1),
		Result: []byte(`{}`),
	}})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"id":1`)
	assert.Contains(t, out.String(), "\n")
}

func TestStdioTransportDoubleStart(t *testing.T) {
	tr := NewStdioTransport(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, tr.Start(context.Background()))
	err := tr.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted{})
}

func TestStdioTransportSkipsMalformedLines(t *testing.T) {
	inR, in := io.Pipe()
	out := &bytes.Buffer{}
	tr := NewStdioTransport(inR, out)

	var mu sync.Mutex
	var errs []error
	tr.SetErrorHandler(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(1)
	tr.SetMessageHandler(func(msg *jsonrpc2.Message, info Info) {
		wg.Done()
	})

	require.NoError(t, tr.Start(context.Background()))
	_, err := in.Write([]byte("not json\n" + `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n"))
	require.NoError(t, err)

	waitOrTimeout(t, &wg)
	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, errs, "malformed line should have been reported, not fatal")
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}
