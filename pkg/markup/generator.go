// Package markup renders a component tree as the template block of a
// single-file component.
package markup

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/style"
)

// voidElements are HTML elements that cannot have children
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// ClassMode selects when a node carries its class token.
type ClassMode int

const (
	// ClassStyled emits the token only when the node's style compiles to
	// at least one declaration.
	ClassStyled ClassMode = iota
	// ClassAlways emits the token on every node.
	ClassAlways
	// ClassNever suppresses tokens.
	ClassNever
)

// Options tune generation.
type Options struct {
	Class ClassMode
	// Indent is one nesting level. Defaults to two spaces.
	Indent string
	// DOMSize is forwarded to the style compiler when deciding on class tokens.
	DOMSize func(key string) (width, height float64, ok bool)
	// Reserved lists identifiers the page script declares itself. Handler
	// names avoid them.
	Reserved []string
}

// Generator writes template markup.
type Generator struct {
	w     io.Writer
	opts  Options
	names *model.HandlerNames
	err   error
}

// NewGenerator creates a generator writing to w.
func NewGenerator(w io.Writer, opts Options) *Generator {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	return &Generator{w: w, opts: opts}
}

// Write renders a forest at depth zero.
func (g *Generator) Write(tree []*model.Node) error {
	g.names = model.NewHandlerNames(tree, g.opts.Reserved...)
	for _, n := range tree {
		g.node(n, 0)
	}
	return g.err
}

// Generate renders a forest to a string.
func Generate(tree []*model.Node, opts Options) (string, error) {
	var b strings.Builder
	err := NewGenerator(&b, opts).Write(tree)
	return b.String(), err
}

// write helper that tracks errors
func (g *Generator) write(parts ...string) {
	for _, s := range parts {
		if g.err != nil {
			return
		}
		_, g.err = io.WriteString(g.w, s)
	}
}

// TagName is the element name of a component: native tags as-is, everything
// else kebab-cased.
func TagName(name string) string {
	if IsNative(name) {
		return name
	}
	return model.KebabCase(name)
}

// IsNative reports whether name is a known HTML element or attribute name.
func IsNative(name string) bool {
	return atom.Lookup([]byte(name)) != 0
}

// IsVoid reports whether tag is a void HTML element.
func IsVoid(tag string) bool {
	return voidElements[tag]
}

func (g *Generator) node(n *model.Node, depth int) {
	if n == nil || g.err != nil {
		return
	}
	ind := strings.Repeat(g.opts.Indent, depth)
	tag := TagName(n.Name)

	g.write(ind, "<", tag)
	for _, a := range g.attributes(n) {
		g.write(" ", a)
	}

	if text, ok := literalText(n); ok {
		g.write(">", html.EscapeString(text), "</", tag, ">\n")
		return
	}
	if n.Directives.Text != nil || n.Directives.HTML != nil || !hasChildren(n) {
		if voidElements[tag] {
			g.write(" />\n")
			return
		}
		g.write("></", tag, ">\n")
		return
	}

	g.write(">\n")
	n.Slots.Range(func(name string, s *model.Slot) bool {
		if s == nil || len(s.Children) == 0 {
			return true
		}
		if name == "default" {
			for _, c := range s.Children {
				g.node(c, depth+1)
			}
			return true
		}
		inner := ind + g.opts.Indent
		g.write(inner, "<template #", name, ">\n")
		for _, c := range s.Children {
			g.node(c, depth+2)
		}
		g.write(inner, "</template>\n")
		return true
	})
	g.write(ind, "</", tag, ">\n")
}

func hasChildren(n *model.Node) bool {
	found := false
	n.Slots.Range(func(_ string, s *model.Slot) bool {
		found = s != nil && len(s.Children) > 0
		return !found
	})
	return found
}

// literalText returns the static text content of a node. Text that would
// read back as an interpolation is left to v-text.
func literalText(n *model.Node) (string, bool) {
	t := n.Directives.Text
	if t == nil || t.Type != model.TypeString || n.Directives.HTML != nil {
		return "", false
	}
	s, ok := t.Literal.(string)
	if !ok || strings.Contains(s, "{{") {
		return "", false
	}
	return s, true
}

// attributes returns the opening-tag attributes in emission order.
func (g *Generator) attributes(n *model.Node) []string {
	var out []string
	d := n.Directives

	if d.For != nil && !d.For.Value.IsEmpty() {
		item, index := d.For.Aliases()
		out = append(out,
			attr("v-for", "("+item+", "+index+") in "+g.expr(n, model.HandlerDirective, "for", d.For.Value)),
			attr(":key", index))
	}
	if d.If != nil && !d.If.IsEmpty() {
		out = append(out, attr("v-if", g.expr(n, model.HandlerDirective, "if", *d.If)))
	}
	if d.Show != nil && !d.Show.IsEmpty() {
		out = append(out, attr("v-show", g.expr(n, model.HandlerDirective, "show", *d.Show)))
	}
	if _, ok := literalText(n); !ok && d.Text != nil && !d.Text.IsEmpty() {
		out = append(out, attr("v-text", g.expr(n, model.HandlerDirective, "text", *d.Text)))
	}
	if d.HTML != nil && !d.HTML.IsEmpty() {
		out = append(out, attr("v-html", g.expr(n, model.HandlerDirective, "html", *d.HTML)))
	}

	classMerged := false
	if g.wantsClass(n) {
		class := style.ClassToken(n.Key)
		if v, ok := n.Attrs.Get("class"); ok && v.Type == model.TypeString {
			if s, _ := v.Literal.(string); s != "" {
				class += " " + s
			}
			classMerged = true
		}
		out = append(out, attr("class", class))
	}

	models := TwoWay(n)
	n.Attrs.Range(func(name string, v model.Value) bool {
		if !models[name] {
			return true
		}
		dir := "v-model"
		if name != "modelValue" {
			dir += ":" + name
		}
		for _, m := range v.Modifiers {
			dir += "." + m
		}
		out = append(out, attr(dir, model.PathExpr(v.Path)))
		return true
	})

	n.Attrs.Range(func(name string, v model.Value) bool {
		if models[name] || (classMerged && name == "class") || v.IsEmpty() {
			return true
		}
		switch v.Type {
		case model.TypeString:
			s, _ := v.Literal.(string)
			out = append(out, attr(name, s))
		case model.TypeBoolean:
			if v.Literal == true {
				out = append(out, name)
			} else {
				out = append(out, attr(":"+name, "false"))
			}
		default:
			out = append(out, attr(":"+name, g.expr(n, model.HandlerProp, name, v)))
		}
		return true
	})

	n.On.Range(func(event string, v model.Value) bool {
		if strings.HasPrefix(event, "update:") && models[strings.TrimPrefix(event, "update:")] {
			return true
		}
		if a, ok := g.eventAttr(n, model.HandlerEvent, event, v); ok {
			out = append(out, a)
		}
		return true
	})
	n.NativeOn.Range(func(event string, v model.Value) bool {
		if a, ok := g.eventAttr(n, model.HandlerNative, event, v); ok {
			out = append(out, a)
		}
		return true
	})
	return out
}

func (g *Generator) wantsClass(n *model.Node) bool {
	switch g.opts.Class {
	case ClassAlways:
		return true
	case ClassNever:
		return false
	}
	return len(style.Compile(n.CSS, style.Options{Key: n.Key, DOMSize: g.opts.DOMSize})) > 0
}

func (g *Generator) eventAttr(n *model.Node, kind, event string, v model.Value) (string, bool) {
	var handler string
	switch {
	case v.IsCallable() && v.Func != nil:
		handler = g.names.Name(n, kind, event)
	case v.Type == model.TypeVariable && len(v.Path) > 0:
		handler = model.PathExpr(v.Path)
	default:
		return "", false
	}
	name := "@" + event
	if kind == model.HandlerNative {
		name += ".native"
	}
	for _, m := range v.Modifiers {
		name += "." + m
	}
	return attr(name, handler), true
}

// TwoWay returns the attributes of n rendered as two-way bindings: variable
// references that either carry the model flag or are paired with an
// update:<name> event.
func TwoWay(n *model.Node) map[string]bool {
	out := map[string]bool{}
	n.Attrs.Range(func(name string, v model.Value) bool {
		if v.Type != model.TypeVariable || len(v.Path) == 0 {
			return true
		}
		if v.Model || n.On.Has("update:"+name) {
			out[name] = true
		}
		return true
	})
	return out
}

func (g *Generator) expr(n *model.Node, kind, name string, v model.Value) string {
	if v.IsCallable() {
		return g.names.Name(n, kind, name)
	}
	return Expr(n.Key, kind, name, v)
}

// Expr renders a value as a binding expression. Callable values become the
// identifier of their generated handler.
func Expr(key, kind, name string, v model.Value) string {
	switch {
	case v.Type == model.TypeVariable:
		return model.PathExpr(v.Path)
	case v.IsCallable():
		return model.HandlerName(key, kind, name)
	}
	return model.JSLiteral(v.Literal)
}

var attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;")

func attr(name, value string) string {
	return name + `="` + attrEscaper.Replace(value) + `"`
}
