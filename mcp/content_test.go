package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextContentRoundTrip(t *testing.T) {
	c := NewTextContent("hello")
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":"hello"}`, string(raw))

	var decoded Content
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, c, decoded)
}

func TestImageContentWithAnnotationsRoundTrip(t *testing.T) {
	priority := 0.8
	c := NewImageContent("aGVsbG8=", "image/png").WithAnnotations(Annotations{
		Audience: []Role{RoleUser},
		Priority: &priority,
	})
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"image","data":"aGVsbG8=","mimeType":"image/png","annotations":{"audience":["user"],"priority":0.8}}`, string(raw))

	var decoded Content
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Image)
	assert.Equal(t, "aGVsbG8=", decoded.Image.Data)
	require.NotNil(t, decoded.Annotations)
	assert.Equal(t, []Role{RoleUser}, decoded.Annotations.Audience)
}

func TestEmbeddedTextResourceRoundTrip(t *testing.T) {
	c := NewEmbeddedTextResource("file:///a.txt", "contents", "text/plain")
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"resource","resource":{"uri":"file:///a.txt","mimeType":"text/plain","text":"contents"}}`, string(raw))

	var decoded Content
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Resource)
	require.NotNil(t, decoded.Resource.Text)
	assert.Equal(t, "contents", decoded.Resource.Text.Text)
}

func TestEmbeddedBlobResourceRoundTrip(t *testing.T) {
	c := NewEmbeddedBlobResource("file:///a.bin", "AAAA", "application/octet-stream")
	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Content
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Resource)
	require.NotNil(t, decoded.Resource.Blob)
	assert.Equal(t, "AAAA", decoded.Resource.Blob.Blob)
}

func TestContentSliceMarshalsEachVariant(t *testing.T) {
	items := []Content{
		NewTextContent("a"),
		NewImageContent("ZGF0YQ==", "image/jpeg"),
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)

	var decoded []Content
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, ContentTypeText, decoded[0].Type)
	assert.Equal(t, ContentTypeImage, decoded[1].Type)
}

func TestUnknownContentTypeRejected(t *testing.T) {
	var decoded Content
	err := json.Unmarshal([]byte(`{"type":"bogus"}`), &decoded)
	assert.Error(t, err)
}
