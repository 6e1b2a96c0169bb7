package jsonrpc2

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID identifies a JSON-RPC request. Per the spec it is a string or an
// integer; null is reserved for notifications and is never a valid RequestID.
type RequestID struct {
	str     string
	num     int64
	isStr   bool
	isSet   bool
}

// NewRequestID builds a RequestID from either a string or an integer.
func NewRequestID[T string | int | int64](v T) RequestID {
	switch val := any(v).(type) {
	case string:
		return RequestID{str: val, isStr: true, isSet: true}
	case int:
		return RequestID{num: int64(val), isSet: true}
	case int64:
		return RequestID{num: val, isSet: true}
	default:
		panic("unreachable")
	}
}

// IsZero reports whether this RequestID was never assigned a value.
func (id RequestID) IsZero() bool { return !id.isSet }

// IsString reports whether the ID holds a string rather than a number.
func (id RequestID) IsString() bool { return id.isStr }

// Int64 returns the numeric value, or 0 if the ID is a string.
func (id RequestID) Int64() int64 { return id.num }

// String renders the ID for logging and map keys; numbers render without
// quotes, strings render verbatim.
func (id RequestID) String() string {
	if !id.isSet {
		return ""
	}
	if id.isStr {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

func (id RequestID) MarshalJSON() ([]byte, error) {
	if !id.isSet {
		return nil, fmt.Errorf("jsonrpc2: cannot marshal an unset request id")
	}
	if id.isStr {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*id = RequestID{str: v, isStr: true, isSet: true}
	case float64:
		*id = RequestID{num: int64(v), isSet: true}
	case nil:
		return fmt.Errorf("jsonrpc2: request id must not be null")
	default:
		return fmt.Errorf("jsonrpc2: unsupported request id type %T", raw)
	}
	return nil
}

// Equal reports whether two RequestIDs identify the same request.
func (id RequestID) Equal(other RequestID) bool {
	return id.isSet == other.isSet && id.isStr == other.isStr && id.str == other.str && id.num == other.num
}
