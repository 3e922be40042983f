package services

import (
	"encoding/json"
	"strings"

	"drunc.client/internal/core/domain"
)

// expandTemplate substitutes {field} placeholders from fields. Doubled braces
// are literal. A format spec or conversion after the field name (":..." or
// "!...") is accepted and ignored.
func expandTemplate(tmpl string, fields map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", &domain.TemplateError{Template: tmpl, Reason: "unmatched '{'"}
			}
			field := tmpl[i+1 : i+1+end]
			if cut := strings.IndexAny(field, ":!"); cut >= 0 {
				field = field[:cut]
			}
			if field == "" {
				return "", &domain.TemplateError{Template: tmpl, Reason: "empty placeholder"}
			}
			v, ok := fields[field]
			if !ok {
				return "", &domain.TemplateError{Template: tmpl, Field: field, Reason: "missing field"}
			}
			b.WriteString(v)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", &domain.TemplateError{Template: tmpl, Reason: "single '}'"}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// valueText renders a decoded JSON value as text. Booleans and null use
// the True/False/None spelling the process manager's own tooling produces.
func valueText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "True"
		}
		return "False"
	case nil:
		return "None"
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
