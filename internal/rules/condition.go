package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type attrKind int

const (
	attrString attrKind = iota
	attrInt
	attrBool
	attrList
)

// attributes lists what conditions can test, keyed by the name exposed in
// PullContext.Attributes. Conditions may spell multi-word names with dashes.
var attributes = map[string]attrKind{
	"number":           attrInt,
	"title":            attrString,
	"body":             attrString,
	"author":           attrString,
	"base":             attrString,
	"head":             attrString,
	"repository":       attrString,
	"head_repository":  attrString,
	"merged_by":        attrString,
	"milestone":        attrString,
	"draft":            attrBool,
	"locked":           attrBool,
	"closed":           attrBool,
	"merged":           attrBool,
	"conflict":         attrBool,
	"label":            attrList,
	"assignee":         attrList,
	"review_requested": attrList,
	"files":            attrList,
}

type operator int

const (
	opEq operator = iota
	opNe
	opMatch
	opGe
	opGt
	opLe
	opLt
)

// operatorTokens is ordered so that longer tokens are tried first.
var operatorTokens = []struct {
	token string
	op    operator
}{
	{">=", opGe},
	{"<=", opLe},
	{"!=", opNe},
	{"~=", opMatch},
	{"==", opEq},
	{"≥", opGe},
	{"≤", opLe},
	{"≠", opNe},
	{"=", opEq},
	{":", opEq},
	{">", opGt},
	{"<", opLt},
}

// Condition is one parsed rule condition, e.g. "-label=wip" or "#files<10".
type Condition struct {
	raw    string
	attr   string
	kind   attrKind
	negate bool
	length bool
	op     operator
	value  string
	num    int
	flag   bool
	re     *regexp.Regexp
}

// ParseCondition parses the condition syntax:
//
//	[-|¬|+][#]attribute[operator value]
//
// A bare attribute is only valid for booleans and means "is true".
func ParseCondition(s string) (Condition, error) {
	c := Condition{raw: strings.TrimSpace(s)}
	rest := c.raw

	switch {
	case strings.HasPrefix(rest, "-"):
		c.negate = true
		rest = rest[1:]
	case strings.HasPrefix(rest, "¬"):
		c.negate = true
		rest = strings.TrimPrefix(rest, "¬")
	case strings.HasPrefix(rest, "+"):
		rest = rest[1:]
	}
	if strings.HasPrefix(rest, "#") {
		c.length = true
		rest = rest[1:]
	}

	end := strings.IndexFunc(rest, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_'
	})
	name := rest
	if end >= 0 {
		name = rest[:end]
		rest = strings.TrimSpace(rest[end:])
	} else {
		rest = ""
	}
	if name == "" {
		return Condition{}, fmt.Errorf("condition %q: missing attribute", c.raw)
	}

	c.attr = strings.ReplaceAll(name, "-", "_")
	kind, ok := attributes[c.attr]
	if !ok {
		return Condition{}, fmt.Errorf("condition %q: unknown attribute %q", c.raw, name)
	}
	c.kind = kind

	if rest == "" {
		if c.length || kind != attrBool {
			return Condition{}, fmt.Errorf("condition %q: missing operator", c.raw)
		}
		c.op = opEq
		c.flag = true
		return c, nil
	}

	matched := false
	for _, tok := range operatorTokens {
		if strings.HasPrefix(rest, tok.token) {
			c.op = tok.op
			c.value = unquote(strings.TrimSpace(rest[len(tok.token):]))
			matched = true
			break
		}
	}
	if !matched {
		return Condition{}, fmt.Errorf("condition %q: invalid operator", c.raw)
	}

	if err := c.compileValue(); err != nil {
		return Condition{}, fmt.Errorf("condition %q: %w", c.raw, err)
	}
	return c, nil
}

func (c *Condition) compileValue() error {
	if c.op == opMatch {
		if c.length {
			return fmt.Errorf("regular expressions cannot be used with #")
		}
		re, err := regexp.Compile(c.value)
		if err != nil {
			return fmt.Errorf("invalid regular expression: %w", err)
		}
		c.re = re
		return nil
	}

	switch {
	case c.length:
		if c.kind != attrList && c.kind != attrString {
			return fmt.Errorf("# can only be used with list or text attributes")
		}
		return c.parseNum()
	case c.kind == attrInt:
		return c.parseNum()
	case c.kind == attrBool:
		if c.op != opEq && c.op != opNe {
			return fmt.Errorf("only = and != apply to boolean attributes")
		}
		b, err := strconv.ParseBool(c.value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", c.value)
		}
		c.flag = b
	}
	return nil
}

func (c *Condition) parseNum() error {
	n, err := strconv.Atoi(c.value)
	if err != nil {
		return fmt.Errorf("invalid number %q", c.value)
	}
	c.num = n
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// String returns the condition as written.
func (c Condition) String() string {
	return c.raw
}

// Match evaluates the condition against pull request attributes.
func (c Condition) Match(attrs map[string]any) (bool, error) {
	v, ok := attrs[c.attr]
	if !ok {
		return false, fmt.Errorf("attribute %q is not available", c.attr)
	}

	var res bool
	switch {
	case c.length:
		switch val := v.(type) {
		case []string:
			res = compare(len(val), c.num, c.op)
		case string:
			res = compare(len(val), c.num, c.op)
		default:
			return false, fmt.Errorf("attribute %q has no length", c.attr)
		}
	default:
		switch val := v.(type) {
		case []string:
			res = c.matchList(val)
		case string:
			res = c.matchString(val)
		case int:
			res = compare(val, c.num, c.op)
		case bool:
			res = (val == c.flag) == (c.op == opEq)
		default:
			return false, fmt.Errorf("attribute %q has unsupported type %T", c.attr, v)
		}
	}

	if c.negate {
		res = !res
	}
	return res, nil
}

// matchList is true when any element matches, except for != which requires
// that no element equals the value.
func (c Condition) matchList(values []string) bool {
	if c.op == opNe {
		for _, v := range values {
			if v == c.value {
				return false
			}
		}
		return true
	}
	for _, v := range values {
		if c.matchString(v) {
			return true
		}
	}
	return false
}

func (c Condition) matchString(v string) bool {
	switch c.op {
	case opMatch:
		return c.re.MatchString(v)
	default:
		return compare(strings.Compare(v, c.value), 0, c.op)
	}
}

func compare(a, b int, op operator) bool {
	switch op {
	case opEq:
		return a == b
	case opNe:
		return a != b
	case opGe:
		return a >= b
	case opGt:
		return a > b
	case opLe:
		return a <= b
	case opLt:
		return a < b
	default:
		return false
	}
}
