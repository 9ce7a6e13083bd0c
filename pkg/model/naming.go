package model

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// KebabCase converts a component or property name to its kebab form:
// "ElButton" -> "el-button", "HTMLEditor" -> "html-editor".
func KebabCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if r == '_' || r == ' ' {
			r = '-'
		}
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PascalCase converts a kebab name back: "el-button" -> "ElButton".
func PascalCase(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(titleCaser.String(p))
	}
	return b.String()
}

// CamelCase converts a kebab name to lower camel case: "model-value" -> "modelValue".
func CamelCase(name string) string {
	p := PascalCase(name)
	if p == "" {
		return p
	}
	r := []rune(p)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// Ident makes s safe to use inside a generated identifier.
func Ident(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Handler kinds used to build handler identifiers.
const (
	HandlerEvent     = ""
	HandlerNative    = "native"
	HandlerProp      = "prop"
	HandlerDirective = "dir"
)

// HandlerName is the identifier of the generated function backing a node's
// event, native event, function-typed attribute or directive:
//
//	HandlerName("k1", HandlerEvent, "update:count") == "k1_update_count"
//	HandlerName("k1", HandlerNative, "click")       == "k1_native_click"
func HandlerName(key, kind, name string) string {
	if kind == HandlerEvent {
		return Ident(key) + "_" + Ident(name)
	}
	return Ident(key) + "_" + kind + "_" + Ident(name)
}

// EachCallable calls fn for every callable value bound by n, in emission
// order: directives, function-typed attributes, events, native events.
func EachCallable(n *Node, fn func(kind, name string, v Value)) {
	add := func(kind, name string, v *Value) {
		if v != nil && v.IsCallable() && v.Func != nil {
			fn(kind, name, *v)
		}
	}
	d := n.Directives
	if d.For != nil {
		add(HandlerDirective, "for", &d.For.Value)
	}
	add(HandlerDirective, "if", d.If)
	add(HandlerDirective, "show", d.Show)
	add(HandlerDirective, "text", d.Text)
	add(HandlerDirective, "html", d.HTML)
	n.Attrs.Range(func(name string, v Value) bool {
		add(HandlerProp, name, &v)
		return true
	})
	n.On.Range(func(name string, v Value) bool {
		add(HandlerEvent, name, &v)
		return true
	})
	n.NativeOn.Range(func(name string, v Value) bool {
		add(HandlerNative, name, &v)
		return true
	})
}

type handlerSlot struct {
	node       *Node
	kind, name string
}

// HandlerNames assigns the identifier of every callable in a tree. Names are
// HandlerName's, except that a name already given out, or reserved by a page
// declaration, takes the first free numeric suffix: k1_item_select_2.
type HandlerNames struct {
	names map[handlerSlot]string
}

// NewHandlerNames numbers the callables of tree in walk order.
func NewHandlerNames(tree []*Node, reserved ...string) *HandlerNames {
	h := &HandlerNames{names: map[handlerSlot]string{}}
	taken := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		taken[r] = true
	}
	Walk(tree, func(n *Node, _ int) bool {
		if n == nil {
			return true
		}
		EachCallable(n, func(kind, name string, _ Value) {
			slot := handlerSlot{n, kind, name}
			if _, ok := h.names[slot]; ok {
				return
			}
			base := HandlerName(n.Key, kind, name)
			ident := base
			for i := 2; taken[ident]; i++ {
				ident = base + "_" + strconv.Itoa(i)
			}
			taken[ident] = true
			h.names[slot] = ident
		})
		return true
	})
	return h
}

// Name returns the identifier of a callable of n. A nil table or an unknown
// callable falls back to HandlerName.
func (h *HandlerNames) Name(n *Node, kind, name string) string {
	if h != nil {
		if ident, ok := h.names[handlerSlot{n, kind, name}]; ok {
			return ident
		}
	}
	return HandlerName(n.Key, kind, name)
}

// MatchHandlerName reports whether ident is base or base with a numeric
// suffix as handed out by HandlerNames.
func MatchHandlerName(ident, base string) bool {
	if ident == base {
		return true
	}
	rest, ok := strings.CutPrefix(ident, base+"_")
	if !ok || rest == "" || rest == "0" || rest == "1" || rest[0] == '0' {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TrimHandlerCounter strips the numeric suffix HandlerNames may add.
func TrimHandlerCounter(ident string) (string, bool) {
	i := strings.LastIndexByte(ident, '_')
	if i <= 0 || !MatchHandlerName(ident, ident[:i]) {
		return ident, false
	}
	return ident[:i], true
}
