package uritemplate

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// matchGroup records which variable a capture group in the compiled regex
// corresponds to. Plain (unnamed) capture groups are used instead of Go
// regexp's named groups because RFC 6570 variable names (which may contain
// '.') are not always valid Go identifiers.
type matchGroup struct {
	name        string
	explode     bool
	namedPrefix string // "name=" stripped from each comma-split element, when set
}

type compiled struct {
	re     *regexp.Regexp
	groups []matchGroup
}

// compile lazily builds and caches the matching regex the first time Match
// is called on a Template.
func (t *Template) compile() (*compiled, error) {
	t.compileOnce.Do(func() {
		t.compiledVal, t.compiledErr = t.buildMatcher()
	})
	return t.compiledVal, t.compiledErr
}

func (t *Template) buildMatcher() (*compiled, error) {
	var pattern strings.Builder
	pattern.WriteByte('^')
	var groups []matchGroup
	queryStarted := false

	for _, p := range t.parts {
		if p.expr == nil {
			pattern.WriteString(regexp.QuoteMeta(p.literal))
			continue
		}
		frag, started, gs, err := exprRegexFragment(p.expr, queryStarted)
		if err != nil {
			return nil, err
		}
		if started {
			queryStarted = true
		}
		pattern.WriteString(frag)
		groups = append(groups, gs...)
	}
	pattern.WriteByte('$')

	if pattern.Len() > MaxCompiledRegex {
		return nil, errors.Errorf("uritemplate: compiled pattern exceeds max size %d", MaxCompiledRegex)
	}

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, errors.Wrap(err, "uritemplate: compile matcher")
	}
	return &compiled{re: re, groups: groups}, nil
}

func exprRegexFragment(e *expression, queryStarted bool) (string, bool, []matchGroup, error) {
	named := e.op == opQuery || e.op == opQueryCont
	first, sep := separators(e.op)
	if e.op == opQuery && queryStarted {
		first = "&"
	}
	multiVar := len(e.vars) > 1

	var groups []matchGroup
	var pieces []string
	for _, v := range e.vars {
		excludeClass := sepExcludeClass(sep, e.op, multiVar)
		valuePattern := `.+`
		if excludeClass != "" {
			valuePattern = `[^` + regexp.QuoteMeta(excludeClass) + `]+`
		}
		namedPrefix := ""
		if named {
			namedPrefix = v.name + "="
			pieces = append(pieces, regexp.QuoteMeta(namedPrefix)+"("+valuePattern+")?")
		} else {
			pieces = append(pieces, "("+valuePattern+")?")
		}
		group := matchGroup{name: v.name, explode: v.explode}
		if v.explode && named {
			group.namedPrefix = namedPrefix
		}
		groups = append(groups, group)
	}

	body := strings.Join(pieces, regexp.QuoteMeta(sep))
	frag := "(?:" + regexp.QuoteMeta(first) + body + ")?"
	started := e.op == opQuery || e.op == opQueryCont
	return frag, started, groups, nil
}

// sepExcludeClass returns the characters a single variable's raw value must
// not contain, so a bounded capture stops at the next literal separator
// instead of swallowing the rest of the URI. Query expressions always exclude
// "&", label expressions ".", and path-segment expressions "/". For the
// comma-joined operators (simple, "+", "#") the "," is only excluded when more
// than one variable shares the expression — a lone variable's value may itself
// legitimately contain it (e.g. a list's internal comma join) — so a lone
// variable there gets an empty class and its capture matches any character.
func sepExcludeClass(sep string, op operator, multiVar bool) string {
	switch op {
	case opQuery, opQueryCont:
		return "&"
	case opLabel:
		return "."
	case opPathSeg:
		return "/"
	default:
		if !multiVar || sep == "" {
			return ""
		}
		return sep
	}
}

// Match attempts to parse uri against the template, returning the extracted
// variables. Exploded variables yield a []string (recovered by splitting the
// captured value on ","); all others yield a string. ok is false if uri does
// not match the template's shape at all.
func (t *Template) Match(uri string) (Values, bool, error) {
	if len(uri) > MaxVariableLength*2 {
		return nil, false, errors.Errorf("uritemplate: uri of %d bytes exceeds matcher bound", len(uri))
	}
	c, err := t.compile()
	if err != nil {
		return nil, false, err
	}
	m := c.re.FindStringSubmatch(uri)
	if m == nil {
		return nil, false, nil
	}

	values := make(Values, len(c.groups))
	for i, g := range c.groups {
		raw := m[i+1]
		if raw == "" {
			continue
		}
		if !g.explode {
			values[g.name] = raw
			continue
		}
		items := strings.Split(raw, ",")
		if g.namedPrefix != "" {
			for i, it := range items {
				items[i] = strings.TrimPrefix(it, g.namedPrefix)
			}
		}
		values[g.name] = items
	}
	return values, true, nil
}
