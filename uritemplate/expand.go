package uritemplate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Values supplies variable values to Expand. A value is a string, a []string
// (for lists), a fmt.Stringer, an int, int64, float64 or bool; any other type
// makes Expand return an error. An absent key means the variable is undefined
// and its expression contributes nothing.
type Values map[string]interface{}

// Expand substitutes vars into the template and returns the resulting URI.
// Each variable value is percent-encoded per the governing expression's
// operator; every individual value is bounded by MaxVariableLength.
func (t *Template) Expand(vars Values) (string, error) {
	var b strings.Builder
	queryStarted := false

	for _, p := range t.parts {
		if p.expr == nil {
			b.WriteString(p.literal)
			continue
		}
		rendered, started, err := expandExpression(p.expr, vars, queryStarted)
		if err != nil {
			return "", err
		}
		if started {
			queryStarted = true
		}
		b.WriteString(rendered)
	}
	return b.String(), nil
}

func expandExpression(e *expression, vars Values, queryStarted bool) (string, bool, error) {
	named := e.op == opQuery || e.op == opQueryCont
	allowReserved := e.op == opPlus || e.op == opFragment

	first, sep := separators(e.op)
	if e.op == opQuery && queryStarted {
		first = "&"
	}

	var rendered []string
	for _, v := range e.vars {
		piece, ok, err := renderVar(v, vars, named, allowReserved)
		if err != nil {
			return "", false, err
		}
		if ok {
			rendered = append(rendered, piece)
		}
	}
	if len(rendered) == 0 {
		return "", false, nil
	}

	out := first + strings.Join(rendered, sep)
	started := e.op == opQuery || e.op == opQueryCont
	return out, started, nil
}

func separators(op operator) (first, sep string) {
	switch op {
	case opSimple, opPlus:
		return "", ","
	case opFragment:
		return "#", ","
	case opLabel:
		return ".", "."
	case opPathSeg:
		return "/", "/"
	case opQuery:
		return "?", "&"
	case opQueryCont:
		return "&", "&"
	default:
		return "", ","
	}
}

func renderVar(v varspec, vars Values, named, allowReserved bool) (string, bool, error) {
	raw, ok := vars[v.name]
	if !ok || raw == nil {
		return "", false, nil
	}

	if list, isList := raw.([]string); isList {
		return renderList(v, list, named, allowReserved)
	}

	str, ok := valueToString(raw)
	if !ok {
		return "", false, errors.Errorf("uritemplate: unsupported value type %T for variable %q", raw, v.name)
	}
	if len(str) > MaxVariableLength {
		return "", false, errors.Errorf("uritemplate: variable %q value exceeds max length %d", v.name, MaxVariableLength)
	}
	if v.maxLength > 0 && len(str) > v.maxLength {
		str = str[:v.maxLength]
	}
	encoded := pctEncode(str, allowReserved)
	if !named {
		return encoded, true, nil
	}
	if encoded == "" {
		return v.name + "=", true, nil
	}
	return v.name + "=" + encoded, true, nil
}

func renderList(v varspec, list []string, named, allowReserved bool) (string, bool, error) {
	if len(list) == 0 {
		return "", false, nil
	}
	// Both exploded and non-exploded lists join their encoded elements with
	// a comma on the wire; match() later recovers an exploded variable's
	// elements by splitting its captured value back on that comma (spec.md
	// §4.9).
	encoded := make([]string, len(list))
	for i, item := range list {
		if len(item) > MaxVariableLength {
			return "", false, errors.Errorf("uritemplate: variable %q value exceeds max length %d", v.name, MaxVariableLength)
		}
		encoded[i] = pctEncode(item, allowReserved)
	}

	if !named {
		return strings.Join(encoded, ","), true, nil
	}
	if !v.explode {
		return v.name + "=" + strings.Join(encoded, ","), true, nil
	}
	parts := make([]string, len(encoded))
	for i, e := range encoded {
		parts[i] = v.name + "=" + e
	}
	return strings.Join(parts, ","), true, nil
}

func valueToString(v interface{}) (string, bool) {
	switch vv := v.(type) {
	case string:
		return vv, true
	case fmt.Stringer:
		return vv.String(), true
	case int:
		return strconv.Itoa(vv), true
	case int64:
		return strconv.FormatInt(vv, 10), true
	case float64:
		return strconv.FormatFloat(vv, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(vv), true
	default:
		return "", false
	}
}

const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
const reservedExtra = ":/?#[]@!$&'()*+,;="

func pctEncode(s string, allowReserved bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(unreserved, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		if allowReserved && strings.IndexByte(reservedExtra, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}
