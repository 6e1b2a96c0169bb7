package protocol

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/contextrt/mcp-go/jsonrpc2"
)

// debounceDelay is how long a debounce-eligible notification waits before
// actually hitting the wire, giving a synchronous burst of calls time to
// collapse into the single pending send.
const debounceDelay = 2 * time.Millisecond

// Notification sends method with params. A notification with no params and
// no RelatedRequestID, on a method configured as debounce-eligible, is
// coalesced: a burst of calls on the same method before the pending send
// drains collapses to one wire send (spec.md §4.5). If the session closes
// between the call and the drain, the drain is a silent no-op.
func (p *Protocol) Notification(method string, params interface{}, opts *NotificationOptions) error {
	if opts == nil {
		opts = &NotificationOptions{}
	}

	if params == nil && opts.RelatedRequestID == nil && p.debounce.eligible(method) {
		if !p.debounce.begin(method) {
			return nil
		}
		time.AfterFunc(debounceDelay, func() {
			p.debounce.end(method)
			if p.isClosed() {
				return
			}
			if err := p.sendNotificationNow(method, nil); err != nil {
				p.handleTransportError(err)
			}
		})
		return nil
	}

	return p.sendNotificationNow(method, params)
}

func (p *Protocol) sendNotificationNow(method string, params interface{}) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return errors.Wrap(err, "protocol: encode notification params")
		}
		raw = b
	}
	return p.send(&jsonrpc2.Message{Kind: jsonrpc2.KindNotification, Notification: &jsonrpc2.Notification{
		Method: method,
		Params: raw,
	}})
}
