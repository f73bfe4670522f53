package env

import (
	"strconv"
	"strings"
)

type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindRaw:
		return "raw"
	default:
		return "null"
	}
}

// Value is a declared variable value. Raw keeps the source text; strings keep their quotes.
type Value struct {
	Kind Kind
	Raw  string
}

// ParseValue classifies source text. The literal null yields the zero Value.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	switch {
	case s == "" || s == "null":
		return Value{}
	case len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"':
		return Value{Kind: KindString, Raw: s}
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return Value{Kind: KindNumber, Raw: s}
	}
	return Value{Kind: KindRaw, Raw: s}
}

func StringValue(s string) Value {
	return Value{Kind: KindString, Raw: strconv.Quote(s)}
}

func NumberValue(n int) Value {
	return Value{Kind: KindNumber, Raw: strconv.Itoa(n)}
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Text returns the unquoted string for string values and Raw otherwise.
func (v Value) Text() string {
	if v.Kind != KindString {
		return v.Raw
	}
	if s, err := strconv.Unquote(v.Raw); err == nil {
		return s
	}
	return v.Raw[1 : len(v.Raw)-1]
}

func (v Value) Int() (int, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.Raw, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// unwrapQuoted strips one extra quoting layer the parser puts around some literals:
// {"text"} becomes "text".
func unwrapQuoted(s string) string {
	if strings.HasPrefix(s, `{"`) && strings.HasSuffix(s, `"}`) {
		return s[1 : len(s)-1]
	}
	return s
}
