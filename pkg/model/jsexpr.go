package model

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// JSLiteral renders a literal payload as a script expression. Object keys
// are sorted.
func JSLiteral(v any) string {
	var b strings.Builder
	writeJS(&b, v)
	return b.String()
}

func writeJS(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(JSString(t))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		b.WriteString(strconv.Itoa(t))
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case []any:
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteString(", ")
			}
			writeJS(b, item)
		}
		b.WriteByte(']')
	case map[string]any:
		if len(t) == 0 {
			b.WriteString("{}")
			return
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("{ ")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			if IsIdent(k) {
				b.WriteString(k)
			} else {
				b.WriteString(JSString(k))
			}
			b.WriteString(": ")
			writeJS(b, t[k])
		}
		b.WriteString(" }")
	default:
		b.WriteString("null")
	}
}

// JSString quotes s with single quotes.
func JSString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// IsIdent reports whether s is a plain script identifier.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// PathExpr renders a variable path as a member expression:
// ["user", "tags", "0"] -> "user.tags[0]".
func PathExpr(path []string) string {
	var b strings.Builder
	for i, seg := range path {
		switch {
		case i == 0:
			b.WriteString(seg)
		case IsIdent(seg):
			b.WriteByte('.')
			b.WriteString(seg)
		case isIndex(seg):
			b.WriteByte('[')
			b.WriteString(seg)
			b.WriteByte(']')
		default:
			b.WriteByte('[')
			b.WriteString(JSString(seg))
			b.WriteByte(']')
		}
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
