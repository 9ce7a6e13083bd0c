package sfc

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/recera/lowcode/pkg/markup"
	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/registry"
	"github.com/recera/lowcode/pkg/script"
	"github.com/recera/lowcode/pkg/style"
)

var logger = slog.Default().With("component", "sfc")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l.With("component", "sfc")
}

// Diagnostic is a construct the lowering skipped or could not represent.
type Diagnostic struct {
	Pos Pos
	Msg string
}

func (d Diagnostic) String() string {
	return d.Pos.String() + ": " + d.Msg
}

// Result is a lowered document.
type Result struct {
	Tree        []*model.Node
	Globals     model.Globals
	Style       script.Style
	Diagnostics []Diagnostic
}

// Parse parses and lowers a document in one step.
func Parse(filename, src string, reg *registry.Registry) (*Result, error) {
	doc, err := ParseDocument(filename, src)
	if err != nil {
		return nil, err
	}
	return Lower(doc, reg), nil
}

type lowerer struct {
	reg     *registry.Registry
	style   script.Style
	decls   model.Map[model.Value]
	used    map[string]bool
	styles  map[string]model.Map[string]
	globals model.Globals
	diags   []Diagnostic
}

// Lower turns a parsed document back into a node forest and page globals.
// Declarations of the script that back a node binding are folded into that
// node; the rest become page variables.
func Lower(doc *Document, reg *registry.Registry) *Result {
	l := &lowerer{
		reg:    reg,
		style:  script.Options,
		used:   map[string]bool{},
		styles: map[string]model.Map[string]{},
	}
	for _, e := range doc.Errors {
		l.diag(e.Pos, e.Msg)
	}
	if doc.Script != nil {
		l.script(doc.Script)
	}
	if doc.Style != nil {
		l.styleBlock(doc.Style)
	}

	res := &Result{Tree: []*model.Node{}}
	if doc.Template != nil {
		res.Tree = l.nodes(doc.Template.Children)
	}

	l.decls.Range(func(name string, v model.Value) bool {
		if !l.used[name] {
			l.globals.Variable.Set(name, v)
		}
		return true
	})
	if doc.Script == nil {
		l.style = script.Composition
	}
	res.Globals, res.Style, res.Diagnostics = l.globals, l.style, l.diags
	return res
}

func (l *lowerer) diag(pos Pos, msg string) {
	logger.Debug("lowering diagnostic", "pos", pos.String(), "msg", msg)
	l.diags = append(l.diags, Diagnostic{Pos: pos, Msg: msg})
}

func (l *lowerer) skip(pos Pos, what string) {
	l.diag(pos, "skipped unsupported "+what)
}

func (l *lowerer) declare(pos Pos, name string, v model.Value) {
	if l.decls.Has(name) {
		l.diag(pos, "duplicate declaration "+name)
	}
	l.decls.Set(name, v)
}

// take consumes a script declaration for use by a node binding.
func (l *lowerer) take(name string) (model.Value, bool) {
	if l.used[name] {
		return model.Value{}, false
	}
	v, ok := l.decls.Get(name)
	if ok {
		l.used[name] = true
	}
	return v, ok
}

// takeHandler consumes base or the first available numbered variant of it.
func (l *lowerer) takeHandler(base string) (model.Value, bool) {
	if v, ok := l.take(base); ok {
		return v, true
	}
	for i := 2; l.decls.Has(base + "_" + strconv.Itoa(i)); i++ {
		if v, ok := l.take(base + "_" + strconv.Itoa(i)); ok {
			return v, true
		}
	}
	return model.Value{}, false
}

func (l *lowerer) available(name string) bool {
	return !l.used[name] && l.decls.Has(name)
}

// nodes lowers a sibling list into a flat node list.
func (l *lowerer) nodes(kids []Node) []*model.Node {
	out := []*model.Node{}
	for _, k := range kids {
		switch k := k.(type) {
		case *Element:
			if k.Tag == "template" {
				l.diag(k.Pos, "template wrapper flattened")
				out = append(out, l.nodes(k.Children)...)
				continue
			}
			out = append(out, l.element(k))
		case *Text:
			if t := strings.TrimSpace(k.Content); t != "" {
				out = append(out, textNode(model.String(t)))
			}
		case *Interpolation:
			n := textNode(model.Value{})
			v := l.bindValue(n.Key, model.HandlerDirective, "text", k.Expr, k.Pos)
			n.Directives.Text = &v
			out = append(out, n)
		}
	}
	return out
}

func textNode(v model.Value) *model.Node {
	n := model.NewNode("span")
	n.Directives.Text = &v
	return n
}

func (l *lowerer) componentName(tag string) string {
	if c, ok := l.reg.Lookup(tag); ok {
		return c.Name
	}
	if markup.IsNative(tag) {
		return tag
	}
	return model.PascalCase(tag)
}

func (l *lowerer) element(el *Element) *model.Node {
	n := model.NewNode(l.componentName(el.Tag))
	if c, ok := l.reg.Lookup(n.Name); ok {
		c.Slots.Range(func(name string, tmpl *model.Slot) bool {
			s := &model.Slot{Children: []*model.Node{}}
			if tmpl != nil {
				s.AllowComps = append([]string(nil), tmpl.AllowComps...)
			}
			n.Slots.Set(name, s)
			return true
		})
	}
	if key, ok := l.recoverKey(el); ok {
		n.Key, n.ID = key, key
	}

	_, iterated := el.Attr("v-for")
	for _, a := range el.Attrs {
		l.attr(n, a, iterated)
	}
	if css, ok := l.styles[n.Key]; ok {
		n.CSS.CustomCSS = css
	}
	l.fill(n, el.Children)
	return n
}

// fill lowers the children of an element into its slots. A lone text or
// interpolation child becomes the text directive.
func (l *lowerer) fill(n *model.Node, kids []Node) {
	var content []Node
	for _, k := range kids {
		switch k := k.(type) {
		case *Comment:
			continue
		case *Text:
			if strings.TrimSpace(k.Content) == "" {
				continue
			}
		}
		content = append(content, k)
	}

	if len(content) == 1 {
		switch c := content[0].(type) {
		case *Text:
			v := model.String(strings.TrimSpace(c.Content))
			n.Directives.Text = &v
			return
		case *Interpolation:
			v := l.bindValue(n.Key, model.HandlerDirective, "text", c.Expr, c.Pos)
			n.Directives.Text = &v
			return
		}
	}

	for _, k := range content {
		if el, ok := k.(*Element); ok && el.Tag == "template" {
			if name, ok := slotName(el); ok {
				s := l.slot(n, name)
				s.Children = append(s.Children, l.nodes(el.Children)...)
				continue
			}
		}
		s := l.slot(n, "default")
		s.Children = append(s.Children, l.nodes([]Node{k})...)
	}
}

func (l *lowerer) slot(n *model.Node, name string) *model.Slot {
	if s, ok := n.Slots.Get(name); ok && s != nil {
		return s
	}
	s := &model.Slot{Children: []*model.Node{}}
	n.Slots.Set(name, s)
	return s
}

func slotName(el *Element) (string, bool) {
	for _, a := range el.Attrs {
		switch {
		case a.Name == "v-slot":
			return "default", true
		case strings.HasPrefix(a.Name, "#"):
			return a.Name[1:], true
		case strings.HasPrefix(a.Name, "v-slot:"):
			return strings.TrimPrefix(a.Name, "v-slot:"), true
		}
	}
	return "", false
}

type attrKind int

const (
	attrStatic attrKind = iota
	attrBind
	attrEvent
	attrModel
	attrDirective
	attrSlot
	attrUnknown
)

// directive is a parsed attribute name.
type directive struct {
	kind   attrKind
	name   string
	mods   []string
	native bool
}

func parseAttrName(raw string) directive {
	split := func(s string) (string, []string) {
		parts := strings.Split(s, ".")
		return parts[0], parts[1:]
	}
	var d directive
	switch {
	case strings.HasPrefix(raw, "@"), strings.HasPrefix(raw, "v-on:"):
		d.kind = attrEvent
		d.name, d.mods = split(strings.TrimPrefix(strings.TrimPrefix(raw, "@"), "v-on:"))
		mods := d.mods[:0]
		for _, m := range d.mods {
			if m == "native" {
				d.native = true
				continue
			}
			mods = append(mods, m)
		}
		d.mods = mods
	case strings.HasPrefix(raw, ":"), strings.HasPrefix(raw, "v-bind:"):
		d.kind = attrBind
		d.name, d.mods = split(strings.TrimPrefix(strings.TrimPrefix(raw, ":"), "v-bind:"))
	case raw == "v-model" || strings.HasPrefix(raw, "v-model.") || strings.HasPrefix(raw, "v-model:"):
		d.kind = attrModel
		name, mods := split(strings.TrimPrefix(raw, "v-model"))
		d.name, d.mods = strings.TrimPrefix(name, ":"), mods
		if d.name == "" {
			d.name = "modelValue"
		}
	case raw == "v-for" || raw == "v-if" || raw == "v-show" || raw == "v-text" || raw == "v-html":
		d.kind, d.name = attrDirective, strings.TrimPrefix(raw, "v-")
	case strings.HasPrefix(raw, "#"), strings.HasPrefix(raw, "v-slot"):
		d.kind = attrSlot
	case strings.HasPrefix(raw, "v-"):
		d.kind, d.name = attrUnknown, raw
	default:
		d.kind, d.name = attrStatic, raw
	}
	return d
}

// recoverKey finds the node key the generator encoded into the class token
// or into the identifiers of the node's handlers.
func (l *lowerer) recoverKey(el *Element) (string, bool) {
	if a, ok := el.Attr("class"); ok {
		for _, tok := range strings.Fields(a.Value) {
			if key, ok := style.ParseClassToken(tok); ok {
				return key, true
			}
		}
	}
	for _, a := range el.Attrs {
		d := parseAttrName(a.Name)
		ident := strings.TrimSpace(a.Value)
		var suffix string
		switch d.kind {
		case attrEvent:
			kind := model.HandlerEvent
			if d.native {
				kind = model.HandlerNative
			}
			suffix = model.HandlerName("", kind, d.name)
		case attrBind:
			suffix = model.HandlerName("", model.HandlerProp, d.name)
		case attrDirective:
			suffix = model.HandlerName("", model.HandlerDirective, d.name)
			if d.name == "for" {
				_, ident = splitFor(a.Value)
			}
		case attrModel:
			suffix = model.HandlerName("", model.HandlerEvent, "update:"+d.name)
			var found string
			l.decls.Range(func(name string, _ model.Value) bool {
				base, _ := model.TrimHandlerCounter(name)
				if !l.used[name] && len(base) > len(suffix) && strings.HasSuffix(base, suffix) {
					found = name
				}
				return found == ""
			})
			ident = found
		default:
			continue
		}
		if !model.IsIdent(ident) || !l.available(ident) {
			continue
		}
		base := ident
		if !strings.HasSuffix(base, suffix) {
			base, _ = model.TrimHandlerCounter(ident)
		}
		if len(base) > len(suffix) && strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix), true
		}
	}
	return "", false
}

func (l *lowerer) attr(n *model.Node, a Attr, iterated bool) {
	d := parseAttrName(a.Name)
	switch d.kind {
	case attrStatic:
		if !a.HasValue {
			n.Attrs.Set(d.name, model.Bool(true))
			return
		}
		if d.name == "class" {
			var rest []string
			for _, tok := range strings.Fields(a.Value) {
				if _, ok := style.ParseClassToken(tok); !ok {
					rest = append(rest, tok)
				}
			}
			if len(rest) > 0 {
				n.Attrs.Set("class", model.String(strings.Join(rest, " ")))
			}
			return
		}
		n.Attrs.Set(d.name, model.String(a.Value))

	case attrBind:
		if d.name == "key" && iterated {
			return
		}
		n.Attrs.Set(d.name, l.bindValue(n.Key, model.HandlerProp, d.name, a.Value, a.Pos))

	case attrModel:
		path, ok := l.path(a.Value)
		if !ok {
			l.diag(a.Pos, "v-model needs a variable path: "+a.Value)
			return
		}
		v := model.Var(path...)
		v.Model = true
		if len(d.mods) > 0 {
			v.Modifiers = d.mods
		}
		n.Attrs.Set(d.name, v)
		event := "update:" + d.name
		if h, ok := l.takeHandler(model.HandlerName(n.Key, model.HandlerEvent, event)); ok {
			n.On.Set(event, h)
		}

	case attrEvent:
		kind := model.HandlerEvent
		if d.native {
			kind = model.HandlerNative
		}
		v := l.handlerValue(n.Key, kind, d.name, a.Value)
		if len(d.mods) > 0 {
			v.Modifiers = d.mods
		}
		if d.native {
			n.NativeOn.Set(d.name, v)
		} else {
			n.On.Set(d.name, v)
		}

	case attrDirective:
		if d.name == "for" {
			l.forDirective(n, a)
			return
		}
		v := l.bindValue(n.Key, model.HandlerDirective, d.name, a.Value, a.Pos)
		switch d.name {
		case "if":
			n.Directives.If = &v
		case "show":
			n.Directives.Show = &v
		case "text":
			n.Directives.Text = &v
		case "html":
			n.Directives.HTML = &v
		}

	case attrSlot:
		l.diag(a.Pos, "slot attribute outside a template: "+a.Name)

	default:
		l.skip(a.Pos, "directive "+a.Name)
	}
}

// splitFor splits "(item, index) in source" into its alias list and source.
func splitFor(src string) (aliases, source string) {
	for _, sep := range []string{" in ", " of "} {
		if i := strings.Index(src, sep); i >= 0 {
			return strings.TrimSpace(src[:i]), strings.TrimSpace(src[i+len(sep):])
		}
	}
	return "", strings.TrimSpace(src)
}

func (l *lowerer) forDirective(n *model.Node, a Attr) {
	aliases, src := splitFor(a.Value)
	if aliases == "" || src == "" {
		l.diag(a.Pos, "malformed v-for: "+a.Value)
		return
	}
	names := strings.Split(strings.Trim(aliases, "()"), ",")
	f := &model.ForDirective{
		Value:   l.bindValue(n.Key, model.HandlerDirective, "for", src, a.Pos),
		DataKey: strings.TrimSpace(names[0]),
	}
	if len(names) > 1 {
		f.IDKey = strings.TrimSpace(names[1])
	}
	n.Directives.For = f
}

func (l *lowerer) path(src string) ([]string, bool) {
	e, err := parseExpr(src)
	if err != nil {
		return nil, false
	}
	path, ok := exprPath(e)
	if !ok || path[0] == "this" {
		return nil, false
	}
	return path, true
}

// bindValue lowers a bound expression: the node's own generated handler when
// the script defines it, else a literal, a variable path or a computed
// expression.
func (l *lowerer) bindValue(key, kind, name, src string, pos Pos) model.Value {
	src = strings.TrimSpace(src)
	if model.MatchHandlerName(src, model.HandlerName(key, kind, name)) {
		if v, ok := l.take(src); ok {
			return v
		}
	}
	e, err := parseExpr(src)
	if err != nil {
		l.diag(pos, fmt.Sprintf("expression %q: %v", src, err))
		return model.Computed("return (" + src + ")")
	}
	if lit, err := literal(e); err == nil {
		return literalValue(lit)
	}
	if path, ok := exprPath(e); ok && path[0] != "this" {
		return model.Var(path...)
	}
	return model.Computed("return (" + src + ")")
}

// handlerValue lowers an event binding: a generated handler, a reference to
// a function, or an inline statement.
func (l *lowerer) handlerValue(key, kind, name, src string) model.Value {
	src = strings.TrimSpace(src)
	if model.MatchHandlerName(src, model.HandlerName(key, kind, name)) {
		if v, ok := l.take(src); ok {
			return v
		}
	}
	if path, ok := l.path(src); ok {
		return model.Var(path...)
	}
	return model.Func(src, "$event")
}
