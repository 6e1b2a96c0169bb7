package transport

import (
	"bytes"
	"sync"

	"github.com/contextrt/mcp-go/jsonrpc2"
)

// ReadBuffer accumulates byte chunks from a stream transport and emits
// complete newline-delimited JSON-RPC messages, per spec.md §4.2. It never
// stalls on one malformed line: a line that fails to decode is reported via
// the onBadLine callback and skipped.
type ReadBuffer struct {
	mu    sync.Mutex
	buf   []byte
	codec *jsonrpc2.Codec
}

// NewReadBuffer returns an empty ReadBuffer using codec for decoding lines.
func NewReadBuffer(codec *jsonrpc2.Codec) *ReadBuffer {
	if codec == nil {
		codec = jsonrpc2.NewCodec()
	}
	return &ReadBuffer{codec: codec}
}

// Append adds a chunk of raw bytes to the buffer. It does not itself parse
// anything; call Drain to extract whole messages.
func (rb *ReadBuffer) Append(chunk []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.buf = append(rb.buf, chunk...)
}

// Drain extracts every complete line currently in the buffer, decodes each as
// a jsonrpc2.Message, and returns them in order. A line that fails to decode
// is passed to onBadLine (if non-nil) and omitted from the result rather than
// aborting the drain. A trailing partial line is retained for the next Append.
func (rb *ReadBuffer) Drain(onBadLine func(line []byte, err error)) []*jsonrpc2.Message {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var out []*jsonrpc2.Message
	for {
		idx := bytes.IndexByte(rb.buf, '\n')
		if idx < 0 {
			break
		}
		line := rb.buf[:idx]
		rb.buf = rb.buf[idx+1:]

		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		msg, err := rb.codec.Decode(line)
		if err != nil {
			if onBadLine != nil {
				onBadLine(append([]byte(nil), line...), err)
			}
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Clear discards any buffered (possibly partial) data.
func (rb *ReadBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.buf = nil
}
