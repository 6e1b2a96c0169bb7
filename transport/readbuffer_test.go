package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contextrt/mcp-go/jsonrpc2"
)

// TestReadBufferFraming checks property 7 from spec.md §8: concatenating
// encoded messages and feeding arbitrary chunk boundaries into the buffer
// yields the messages back out in order.
func TestReadBufferFraming(t *testing.T) {
	rb := NewReadBuffer(jsonrpc2.NewCodec())

	msgs := rb.Drain(nil)
	assert.Empty(t, msgs)

	rb.Append([]byte(`{"jsonrpc":"2.0","method":"a"}` + "\n" + `{"jsonrpc":"2.0","method":"b"}` + "\n" + `{"jsonrpc":"2.0","method":"c"}` + "\n"))
	msgs = rb.Drain(nil)
	assertMethods(t, msgs, "a", "b", "c")
}

func TestReadBufferSplitAcrossAppends(t *testing.T) {
	rb := NewReadBuffer(jsonrpc2.NewCodec())

	rb.Append([]byte(`{"jsonrpc":"2.0","method":"a"}` + "\n" + `{"jsonrpc":"2.0","method":"b`))
	msgs := rb.Drain(nil)
	assertMethods(t, msgs, "a")

	rb.Append([]byte(`"}` + "\n"))
	msgs = rb.Drain(nil)
	assertMethods(t, msgs, "b")
}

func TestReadBufferSkipsBadLines(t *testing.T) {
	rb := NewReadBuffer(jsonrpc2.NewCodec())
	var badLines int

	rb.Append([]byte("not json at all\n" + `{"jsonrpc":"2.0","method":"ok"}` + "\n"))
	msgs := rb.Drain(func(line []byte, err error) { badLines++ })

	assert.Equal(t, 1, badLines)
	assertMethods(t, msgs, "ok")
}

func TestReadBufferSkipsEmptyLines(t *testing.T) {
	rb := NewReadBuffer(jsonrpc2.NewCodec())
	rb.Append([]byte("\n\n" + `{"jsonrpc":"2.0","method":"ok"}` + "\n\r\n"))
	msgs := rb.Drain(nil)
	assertMethods(t, msgs, "ok")
}

func assertMethods(t *testing.T, msgs []*jsonrpc2.Message, methods ...string) {
	t.Helper()
	if !assert.Len(t, msgs, len(methods)) {
		return
	}
	for i, m := range methods {
		assert.Equal(t, m, msgs[i].Notification.Method)
	}
}
