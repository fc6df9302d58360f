package symbols

import (
	"strconv"
	"strings"
)

// FieldSet names the payload keys whose string values carry venue symbols.
type FieldSet map[string]struct{}

// NewFieldSet builds a FieldSet from field names.
func NewFieldSet(fields ...string) FieldSet {
	set := make(FieldSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Contains reports whether the field name is in the set.
func (s FieldSet) Contains(field string) bool {
	_, ok := s[field]
	return ok
}

// TranslateEmbedded walks an arbitrary decoded JSON value and applies one
// normalization rule to every field:
//
//   - fields named in symbolFields have their string values translated through
//     the registry (fail-open to the raw symbol);
//   - fields literally named "side" have the venue's book codes coerced,
//     "A" to "sell" and "B" to "buy", other values verbatim;
//   - any other string leaf that is syntactically an integer or decimal is
//     coerced to a numeric value;
//   - everything else passes through unchanged.
//
// The same rule serves outbound request preparation and inbound response
// normalization. forced narrows symbol lookups to one market class; ClassAny
// leaves them unconstrained. The input is not mutated.
func (r *Registry) TranslateEmbedded(payload any, symbolFields FieldSet, forced MarketClass) any {
	switch value := payload.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, child := range value {
			out[key] = r.translateField(key, child, symbolFields, forced)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, child := range value {
			out[i] = r.TranslateEmbedded(child, symbolFields, forced)
		}
		return out
	case string:
		return coerceNumeric(value)
	default:
		return value
	}
}

func (r *Registry) translateField(key string, value any, symbolFields FieldSet, forced MarketClass) any {
	if s, ok := value.(string); ok {
		if symbolFields.Contains(key) {
			return r.ResolveSymbol(s, forced)
		}
		if key == "side" {
			return coerceSide(s)
		}
		return coerceNumeric(s)
	}
	return r.TranslateEmbedded(value, symbolFields, forced)
}

func coerceSide(value string) string {
	switch value {
	case "A":
		return "sell"
	case "B":
		return "buy"
	default:
		return value
	}
}

// coerceNumeric converts strings that are syntactically integers or decimals
// to numeric values. Anything else, including exponent forms the venue never
// emits, passes through as-is.
func coerceNumeric(value string) any {
	if !looksNumeric(value) {
		return value
	}
	if !strings.Contains(value, ".") {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func looksNumeric(value string) bool {
	if value == "" {
		return false
	}
	rest := value
	if rest[0] == '-' {
		rest = rest[1:]
	}
	if rest == "" || rest == "." {
		return false
	}
	dots := 0
	for i := 0; i < len(rest); i++ {
		switch {
		case rest[i] == '.':
			dots++
			if dots > 1 {
				return false
			}
		case rest[i] < '0' || rest[i] > '9':
			return false
		}
	}
	return true
}
