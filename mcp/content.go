package mcp

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ContentType discriminates the Content union on the wire, via the "type"
// field every variant carries.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeAudio    ContentType = "audio"
	ContentTypeResource ContentType = "resource"
)

// Content is a union of the shapes MCP allows inside a sampling message, a
// prompt message, or a tool/call result: text, an embedded image or audio
// blob, or an embedded resource. Grounded on the teacher's
// tools/tool_api.go ToolResponseContent, generalized from a tool-result-only
// type to the taxonomy's general-purpose content union and carried as a
// value (not *Content) since every caller needs it inline in a slice.
//
// Only one of Text/Image/Audio/Resource is populated, selected by Type.
// MarshalJSON assembles the JSON object for whichever variant is set using
// sjson, rather than a hand-rolled switch producing separate anonymous
// structs per variant.
type Content struct {
	Type        ContentType
	Text        string
	Image       *BlobContent
	Audio       *BlobContent
	Resource    *EmbeddedResource
	Annotations *Annotations
}

// BlobContent is the shared shape of image and audio content: base64 data
// plus its MIME type.
type BlobContent struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// EmbeddedResource wraps a resource's contents inline in a message or tool
// result, rather than by reference.
type EmbeddedResource struct {
	// Exactly one of Text/Blob is set.
	Text *TextResourceContents
	Blob *BlobResourceContents
}

// NewTextContent builds plain text content.
func NewTextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: text}
}

// NewImageContent builds base64-encoded image content.
func NewImageContent(base64Data, mimeType string) Content {
	return Content{Type: ContentTypeImage, Image: &BlobContent{Data: base64Data, MimeType: mimeType}}
}

// NewAudioContent builds base64-encoded audio content.
func NewAudioContent(base64Data, mimeType string) Content {
	return Content{Type: ContentTypeAudio, Audio: &BlobContent{Data: base64Data, MimeType: mimeType}}
}

// NewEmbeddedTextResource wraps a text resource's contents inline.
func NewEmbeddedTextResource(uri, text, mimeType string) Content {
	return Content{Type: ContentTypeResource, Resource: &EmbeddedResource{
		Text: &TextResourceContents{ResourceContents: ResourceContents{URI: uri, MimeType: mimeType}, Text: text},
	}}
}

// NewEmbeddedBlobResource wraps a binary resource's contents inline.
func NewEmbeddedBlobResource(uri, base64Data, mimeType string) Content {
	return Content{Type: ContentTypeResource, Resource: &EmbeddedResource{
		Blob: &BlobResourceContents{ResourceContents: ResourceContents{URI: uri, MimeType: mimeType}, Blob: base64Data},
	}}
}

// WithAnnotations attaches annotations and returns the same content for
// chaining, mirroring the teacher's ToolResponseContent.WithAnnotations.
func (c Content) WithAnnotations(a Annotations) Content {
	c.Annotations = &a
	return c
}

func (c Content) GetType() string              { return string(c.Type) }
func (c Content) GetAnnotations() *Annotations { return c.Annotations }

// MarshalJSON assembles this variant's JSON, patching in "type" and
// "annotations" via sjson instead of building the object by hand per
// variant.
func (c Content) MarshalJSON() ([]byte, error) {
	var raw []byte
	var err error

	switch c.Type {
	case ContentTypeText:
		raw, err = json.Marshal(struct {
			Text string `json:"text"`
		}{Text: c.Text})
	case ContentTypeImage:
		if c.Image == nil {
			return nil, errors.New("mcp: image content missing its blob")
		}
		raw, err = json.Marshal(c.Image)
	case ContentTypeAudio:
		if c.Audio == nil {
			return nil, errors.New("mcp: audio content missing its blob")
		}
		raw, err = json.Marshal(c.Audio)
	case ContentTypeResource:
		if c.Resource == nil {
			return nil, errors.New("mcp: resource content missing its resource")
		}
		raw, err = json.Marshal(c.Resource)
	default:
		return nil, errors.Errorf("mcp: unknown content type %q", c.Type)
	}
	if err != nil {
		return nil, errors.Wrap(err, "mcp: marshal content body")
	}

	raw, err = sjson.SetBytes(raw, "type", string(c.Type))
	if err != nil {
		return nil, errors.Wrap(err, "mcp: set content type")
	}
	if c.Annotations != nil {
		annotated, err := json.Marshal(c.Annotations)
		if err != nil {
			return nil, errors.Wrap(err, "mcp: marshal content annotations")
		}
		raw, err = sjson.SetRawBytes(raw, "annotations", annotated)
		if err != nil {
			return nil, errors.Wrap(err, "mcp: set content annotations")
		}
	}
	return raw, nil
}

// UnmarshalJSON dispatches on the "type" field with gjson, then decodes the
// rest of the object into the matching variant.
func (c *Content) UnmarshalJSON(data []byte) error {
	t := gjson.GetBytes(data, "type").String()
	c.Type = ContentType(t)

	if ann := gjson.GetBytes(data, "annotations"); ann.Exists() {
		var a Annotations
		if err := json.Unmarshal([]byte(ann.Raw), &a); err != nil {
			return errors.Wrap(err, "mcp: unmarshal content annotations")
		}
		c.Annotations = &a
	}

	switch c.Type {
	case ContentTypeText:
		c.Text = gjson.GetBytes(data, "text").String()
	case ContentTypeImage:
		var b BlobContent
		if err := json.Unmarshal(data, &b); err != nil {
			return errors.Wrap(err, "mcp: unmarshal image content")
		}
		c.Image = &b
	case ContentTypeAudio:
		var b BlobContent
		if err := json.Unmarshal(data, &b); err != nil {
			return errors.Wrap(err, "mcp: unmarshal audio content")
		}
		c.Audio = &b
	case ContentTypeResource:
		res := gjson.GetBytes(data, "resource")
		target := data
		if res.Exists() {
			target = []byte(res.Raw)
		}
		var r EmbeddedResource
		if err := r.unmarshal(target); err != nil {
			return err
		}
		c.Resource = &r
	default:
		return errors.Errorf("mcp: unknown content type %q", t)
	}
	return nil
}

// MarshalJSON nests whichever of Text/Blob is set under a "resource" key,
// the wire shape of an embedded resource content item; Content.MarshalJSON
// then adds the "type" field beside that key.
func (r EmbeddedResource) MarshalJSON() ([]byte, error) {
	if r.Text != nil {
		return json.Marshal(struct {
			Resource *TextResourceContents `json:"resource"`
		}{Resource: r.Text})
	}
	if r.Blob != nil {
		return json.Marshal(struct {
			Resource *BlobResourceContents `json:"resource"`
		}{Resource: r.Blob})
	}
	return nil, errors.New("mcp: embedded resource has neither text nor blob")
}

func (r *EmbeddedResource) unmarshal(data []byte) error {
	blob := gjson.GetBytes(data, "blob")
	if blob.Exists() {
		var b BlobResourceContents
		if err := json.Unmarshal(data, &b); err != nil {
			return errors.Wrap(err, "mcp: unmarshal blob resource contents")
		}
		r.Blob = &b
		return nil
	}
	var t TextResourceContents
	if err := json.Unmarshal(data, &t); err != nil {
		return errors.Wrap(err, "mcp: unmarshal text resource contents")
	}
	r.Text = &t
	return nil
}
