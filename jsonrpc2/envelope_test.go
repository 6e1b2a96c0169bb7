package jsonrpc2

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCodecRoundTrip checks property 6 from spec.md §8: decode(encode(m)) == m
// for every valid envelope variant.
func TestCodecRoundTrip(t *testing.T) {
	c := NewCodec()

	t.Run("request", func(t *testing.T) {
		msg := &Message{Kind: KindRequest, Request: &Request{
			ID:     NewRequestID(1),
			Method: "tools/call",
			Params: json.RawMessage(`{"name":"calc"}`),
		}}
		b, err := c.Encode(msg)
		require.NoError(t, err)

		decoded, err := c.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, KindRequest, decoded.Kind)
		assert.Equal(t, "tools/call", decoded.Request.Method)
		assert.True(t, decoded.Request.ID.Equal(NewRequestID(1)))
	})

	t.Run("notification", func(t *testing.T) {
		msg := &Message{Kind: KindNotification, Notification: &Notification{
			Method: "notifications/initialized",
		}}
		b, err := c.Encode(msg)
		require.NoError(t, err)

		decoded, err := c.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, KindNotification, decoded.Kind)
		assert.Equal(t, "notifications/initialized", decoded.Notification.Method)
	})

	t.Run("response", func(t *testing.T) {
		msg := &Message{Kind: KindResponse, Response: &Response{
			ID:     NewRequestID("req-1"),
			Result: json.RawMessage(`{"ok":true}`),
		}}
		b, err := c.Encode(msg)
		require.NoError(t, err)

		decoded, err := c.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, KindResponse, decoded.Kind)
		assert.True(t, decoded.Response.ID.IsString())
	})

	t.Run("error response", func(t *testing.T) {
		msg := &Message{Kind: KindErrorResponse, ErrorResponse: &ErrorResponse{
			ID:    NewRequestID(2),
			Error: NewError(CodeMethodNotFound, "Method not found"),
		}}
		b, err := c.Encode(msg)
		require.NoError(t, err)

		decoded, err := c.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, KindErrorResponse, decoded.Kind)
		assert.Equal(t, CodeMethodNotFound, decoded.ErrorResponse.Error.Code)
	})
}

func TestDecodeRejectsInvalidEnvelopes(t *testing.T) {
	c := NewCodec()

	_, err := c.Decode([]byte(`{"method":"x","id":1}`))
	assert.Error(t, err, "missing jsonrpc version should fail")

	_, err = c.Decode([]byte(`{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":1,"message":"x"}}`))
	assert.Error(t, err, "result and error together should fail")

	_, err = c.Decode([]byte(`{"jsonrpc":"2.0","method":"x","id":null}`))
	assert.Error(t, err, "null id on a request should fail")
}

func TestEncodeRejectsOversizeMessage(t *testing.T) {
	c := &Codec{MaxMessageSize: 16}
	msg := &Message{Kind: KindNotification, Notification: &Notification{
		Method: "notifications/this_is_definitely_too_long_to_fit",
	}}
	_, err := c.Encode(msg)
	assert.Error(t, err)
}
