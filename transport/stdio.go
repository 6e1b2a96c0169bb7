package transport

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/contextrt/mcp-go/jsonrpc2"
)

// StdioTransport implements Transport over a pair of byte streams, framed
// newline-delimited JSON-RPC (spec.md §4.2/§6). It has no built-in default to
// os.Stdin/os.Stdout: NewStdioTransport takes an explicit io.Reader/io.Writer
// so it can be driven in tests, matching the teacher SDK's stdio_test.go style
// of injecting in-memory streams rather than talking to the real stdio
// streams. EOF on the reader ends the session and fires OnClose.
type StdioTransport struct {
	reader *bufio.Reader
	writer io.Writer
	codec  *jsonrpc2.Codec
	rb     *ReadBuffer

	mu      sync.Mutex
	started bool
	closed  bool
	fired   bool // OnClose has been invoked
	wg      sync.WaitGroup

	onMessage MessageHandler
	onClose   func()
	onError   func(error)
}

// NewStdioTransport builds a transport reading from r and writing to w.
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	codec := jsonrpc2.NewCodec()
	return &StdioTransport{
		reader: bufio.NewReader(r),
		writer: w,
		codec:  codec,
		rb:     NewReadBuffer(codec),
	}
}

func (t *StdioTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted{}
	}
	t.started = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.readLoop(ctx)
	return nil
}

func (t *StdioTransport) readLoop(ctx context.Context) {
	defer t.wg.Done()
	defer t.fireClose()

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}

		n, err := t.reader.Read(buf)
		if n > 0 {
			t.rb.Append(buf[:n])
			messages := t.rb.Drain(func(line []byte, decodeErr error) {
				t.fireError(errors.Wrap(decodeErr, "stdio: malformed line"))
			})
			for _, msg := range messages {
				t.dispatch(msg)
			}
		}
		if err != nil {
			if err != io.EOF {
				t.fireError(errors.Wrap(err, "stdio: read"))
			}
			return
		}
	}
}

func (t *StdioTransport) dispatch(msg *jsonrpc2.Message) {
	t.mu.Lock()
	handler := t.onMessage
	t.mu.Unlock()
	if handler != nil {
		handler(msg, Info{})
	}
}

func (t *StdioTransport) Send(msg *jsonrpc2.Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed{}
	}
	writer := t.writer
	t.mu.Unlock()

	b, err := t.codec.Encode(msg)
	if err != nil {
		return errors.Wrap(err, "stdio: encode")
	}
	b = append(b, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed{}
	}
	_, err = writer.Write(b)
	return errors.Wrap(err, "stdio: write")
}

func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.fireClose()
	t.wg.Wait()
	return nil
}

// fireClose invokes OnClose exactly once even if readLoop returns more than
// one way (ctx cancellation racing with an explicit Close).
func (t *StdioTransport) fireClose() {
	t.mu.Lock()
	already := t.fired
	t.fired = true
	t.closed = true
	handler := t.onClose
	t.mu.Unlock()
	if !already && handler != nil {
		handler()
	}
}

func (t *StdioTransport) fireError(err error) {
	t.mu.Lock()
	handler := t.onError
	t.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (t *StdioTransport) SetMessageHandler(handler MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = handler
}

func (t *StdioTransport) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = handler
}

func (t *StdioTransport) SetErrorHandler(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = handler
}
