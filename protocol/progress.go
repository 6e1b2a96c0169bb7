package protocol

import (
	"encoding/json"
	"strconv"
)

// ProgressToken opaquely identifies a request for the purpose of correlating
// notifications/progress back to it (spec.md §4.4 "Progress"). The spec
// flags as an open question whether this is ever non-numeric in practice;
// per SPEC_FULL.md's Open Question decision #3, this implementation keys its
// internal progress-handler table by int64 and coerces numeric-looking
// strings rather than rejecting them outright.
type ProgressToken = int64

// Progress is one progress update for an in-flight request.
type Progress struct {
	Progress float64
	Total    float64
	HasTotal bool
}

// ProgressCallback receives progress updates for a request that opted in via
// RequestOptions.OnProgress.
type ProgressCallback func(Progress)

type progressParams struct {
	ProgressToken json.RawMessage `json:"progressToken"`
	Progress      float64         `json:"progress"`
	Total         *float64        `json:"total,omitempty"`
}

// coerceProgressToken accepts a JSON number or a numeric string, per Open
// Question decision #3.
func coerceProgressToken(raw json.RawMessage) (ProgressToken, bool) {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return int64(num), true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if n, err2 := strconv.ParseInt(str, 10, 64); err2 == nil {
			return n, true
		}
	}
	return 0, false
}
