package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/contextrt/mcp-go/jsonrpc2"
)

// sseHeartbeatInterval is how often a comment line is written to the stream
// to keep intermediary proxies from timing out an idle SSE connection.
const sseHeartbeatInterval = 25 * time.Second

// SSEServerTransport is a server-side Transport over HTTP: it streams
// server→client messages as Server-Sent Events on a GET connection, and
// receives client→server messages via HTTP POST to the same session's
// message endpoint. Adapted from the teacher SDK's sse.go/sse_server.go into
// the shared Transport contract, with a google/uuid session id replacing the
// teacher's ad-hoc id generation.
type SSEServerTransport struct {
	endpoint string
	w        http.ResponseWriter
	flusher  http.Flusher
	sessID   string
	codec    *jsonrpc2.Codec

	mu        sync.Mutex
	started   bool
	closed    bool
	cancel    context.CancelFunc
	eg        *errgroup.Group
	onMessage MessageHandler
	onClose   func()
	onError   func(error)
}

// NewSSEServerTransport begins an SSE stream on w for a single client
// session, identified by endpoint (the path clients POST to in order to send
// messages back).
func NewSSEServerTransport(endpoint string, w http.ResponseWriter) (*SSEServerTransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("sse: response writer does not support flushing")
	}
	return &SSEServerTransport{
		endpoint: endpoint,
		w:        w,
		flusher:  flusher,
		sessID:   uuid.NewString(),
		codec:    jsonrpc2.NewCodec(),
	}, nil
}

// SessionID is the identifier sent to the client in the initial "endpoint"
// event, and attached as transport.Info.SessionID on every inbound message
// handled via HandleMessage.
func (t *SSEServerTransport) SessionID() string { return t.sessID }

func (t *SSEServerTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted{}
	}
	t.started = true
	t.mu.Unlock()

	header := t.w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	t.w.WriteHeader(http.StatusOK)

	fmt.Fprintf(t.w, "event: endpoint\ndata: %s?sessionId=%s\n\n", t.endpoint, t.sessID)
	t.flusher.Flush()

	egCtx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(egCtx)
	t.mu.Lock()
	t.cancel = cancel
	t.eg = eg
	t.mu.Unlock()

	eg.Go(func() error {
		<-egCtx.Done()
		return nil
	})
	eg.Go(func() error {
		return t.heartbeatLoop(egCtx)
	})

	go func() {
		_ = eg.Wait()
		_ = t.Close()
	}()
	return nil
}

// heartbeatLoop writes a comment line on sseHeartbeatInterval until ctx is
// done, keeping proxies between this server and the client from closing the
// connection for inactivity. A write failure ends the group (and, via Start's
// eg.Wait, the transport) the same way an upstream context cancellation does.
func (t *SSEServerTransport) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.mu.Lock()
			if t.closed {
				t.mu.Unlock()
				return nil
			}
			_, err := fmt.Fprint(t.w, ": heartbeat\n\n")
			if err == nil {
				t.flusher.Flush()
			}
			t.mu.Unlock()
			if err != nil {
				return errors.Wrap(err, "sse: heartbeat write")
			}
		}
	}
}

func (t *SSEServerTransport) Send(msg *jsonrpc2.Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed{}
	}
	t.mu.Unlock()

	b, err := t.codec.Encode(msg)
	if err != nil {
		return errors.Wrap(err, "sse: encode")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed{}
	}
	if _, err := fmt.Fprintf(t.w, "event: message\ndata: %s\n\n", b); err != nil {
		return errors.Wrap(err, "sse: write")
	}
	t.flusher.Flush()
	return nil
}

// HandleMessage decodes a client→server POST body and dispatches it to the
// registered MessageHandler, tagging it with this session's Info. Intended to
// be called from the HTTP handler bound to the session's message endpoint.
func (t *SSEServerTransport) HandleMessage(body []byte, reqInfo interface{}) error {
	if len(body) > jsonrpc2.DefaultMaxMessageSize {
		return jsonrpc2.NewError(jsonrpc2.CodeInvalidRequest, "message exceeds max size")
	}
	msg, err := t.codec.Decode(body)
	if err != nil {
		t.fireError(errors.Wrap(err, "sse: malformed POST body"))
		return err
	}

	t.mu.Lock()
	handler := t.onMessage
	t.mu.Unlock()
	if handler != nil {
		handler(msg, Info{SessionID: t.sessID, RequestInfo: reqInfo})
	}
	return nil
}

func (t *SSEServerTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancel
	handler := t.onClose
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if handler != nil {
		handler()
	}
	return nil
}

func (t *SSEServerTransport) fireError(err error) {
	t.mu.Lock()
	handler := t.onError
	t.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (t *SSEServerTransport) SetMessageHandler(handler MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = handler
}

func (t *SSEServerTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = handler
}

func (t *SSEServerTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = handler
}

// SSEClientTransport is the client side of the same protocol: it POSTs
// outgoing messages to serverURL and consumes the SSE stream at streamURL for
// incoming ones.
type SSEClientTransport struct {
	httpClient  *http.Client
	streamURL   string
	postURL     string
	postURLOnce sync.Once
	postURLCh   chan string

	mu        sync.Mutex
	closed    bool
	cancel    context.CancelFunc
	onMessage MessageHandler
	onClose   func()
	onError   func(error)

	codec *jsonrpc2.Codec
}

// NewSSEClientTransport opens against streamURL, the server's SSE endpoint.
func NewSSEClientTransport(httpClient *http.Client, streamURL string) *SSEClientTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SSEClientTransport{
		httpClient: httpClient,
		streamURL:  streamURL,
		postURLCh:  make(chan string, 1),
		codec:      jsonrpc2.NewCodec(),
	}
}

func (t *SSEClientTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return ErrAlreadyStarted{}
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.streamURL, nil)
	if err != nil {
		return errors.Wrap(err, "sse client: build request")
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "sse client: connect")
	}

	go t.readEvents(resp.Body)
	return nil
}

func (t *SSEClientTransport) readEvents(body io.ReadCloser) {
	defer body.Close()
	defer t.fireClose()

	scanner := bufio.NewScanner(body)
	var eventName, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			t.handleEvent(eventName, data)
			eventName, data = "", ""
		case len(line) > 6 && line[:6] == "event:":
			eventName = trimSSEField(line[6:])
		case len(line) > 5 && line[:5] == "data:":
			data = trimSSEField(line[5:])
		}
	}
}

func trimSSEField(s string) string {
	if len(s) > 0 && s[0] == ' ' {
		return s[1:]
	}
	return s
}

func (t *SSEClientTransport) handleEvent(event, data string) {
	switch event {
	case "endpoint":
		select {
		case t.postURLCh <- data:
		default:
		}
	case "message":
		msg, err := t.codec.Decode([]byte(data))
		if err != nil {
			t.fireError(errors.Wrap(err, "sse client: malformed event"))
			return
		}
		t.mu.Lock()
		handler := t.onMessage
		t.mu.Unlock()
		if handler != nil {
			handler(msg, Info{})
		}
	}
}

// postURLFor blocks until the server's "endpoint" event has been observed.
func (t *SSEClientTransport) postURLFor(ctx context.Context) (string, error) {
	select {
	case u := <-t.postURLCh:
		t.postURLOnce.Do(func() { t.postURL = u })
		return u, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *SSEClientTransport) Send(msg *jsonrpc2.Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed{}
	}
	t.mu.Unlock()

	b, err := t.codec.Encode(msg)
	if err != nil {
		return errors.Wrap(err, "sse client: encode")
	}

	postURL := t.postURL
	if postURL == "" {
		postURL, err = t.postURLFor(context.Background())
		if err != nil {
			return errors.Wrap(err, "sse client: waiting for endpoint event")
		}
	}

	resp, err := t.httpClient.Post(postURL, "application/json", bytesReader(b))
	if err != nil {
		return errors.Wrap(err, "sse client: post")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("sse client: server returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *SSEClientTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (t *SSEClientTransport) fireClose() {
	t.mu.Lock()
	handler := t.onClose
	t.mu.Unlock()
	if handler != nil {
		handler()
	}
}

func (t *SSEClientTransport) fireError(err error) {
	t.mu.Lock()
	handler := t.onError
	t.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (t *SSEClientTransport) SetMessageHandler(handler MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = handler
}

func (t *SSEClientTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = handler
}

func (t *SSEClientTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = handler
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
