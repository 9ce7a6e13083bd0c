// Package style compiles the node style model into CSS declarations and
// renders them as scoped rule blocks.
package style

import (
	"strconv"
	"strings"

	"github.com/recera/lowcode/pkg/model"
)

// Decl is one CSS declaration.
type Decl struct {
	Property string
	Value    string
}

// Declarations is an ordered property list. A property appears at most once.
type Declarations []Decl

// Get returns the value of a property.
func (d Declarations) Get(prop string) (string, bool) {
	for _, x := range d {
		if x.Property == prop {
			return x.Value, true
		}
	}
	return "", false
}

// Map returns the declarations as a plain map.
func (d Declarations) Map() map[string]string {
	m := make(map[string]string, len(d))
	for _, x := range d {
		m[x.Property] = x.Value
	}
	return m
}

// String renders "prop: value;" pairs separated by spaces.
func (d Declarations) String() string {
	parts := make([]string, len(d))
	for i, x := range d {
		parts[i] = x.Property + ": " + x.Value + ";"
	}
	return strings.Join(parts, " ")
}

// set replaces an existing property in place or appends it.
func (d *Declarations) set(prop, value string) {
	for i := range *d {
		if (*d)[i].Property == prop {
			(*d)[i].Value = value
			return
		}
	}
	*d = append(*d, Decl{Property: prop, Value: value})
}

// Options tune compilation.
type Options struct {
	// Key is the node being compiled; used for DOMSize lookups.
	Key string
	// DOMSize reports the rendered size of a node when the host tracks it.
	DOMSize func(key string) (width, height float64, ok bool)
}

// unitTable holds the default unit of the generic fallback path.
var unitTable = map[string]string{
	"width":    "px",
	"height":   "px",
	"fontSize": "px",
}

var (
	radiusEdges  = [4]string{"borderTopLeftRadius", "borderTopRightRadius", "borderBottomRightRadius", "borderBottomLeftRadius"}
	marginEdges  = [4]string{"marginTop", "marginRight", "marginBottom", "marginLeft"}
	paddingEdges = [4]string{"paddingTop", "paddingRight", "paddingBottom", "paddingLeft"}
)

// Compile maps a style model to declarations. Values equal to their default
// ("0", empty, hidden toggles) are absent from the result.
func Compile(s model.Style, opts Options) Declarations {
	c := compiler{s: s, opts: opts}
	return c.run()
}

type compiler struct {
	s    model.Style
	opts Options
	out  Declarations
}

func (c *compiler) run() Declarations {
	s := c.s
	if !isZero(s.Opacity) && s.Opacity != "100" {
		c.out.set("opacity", c.unit("opacity", s.Opacity, "%"))
	}
	if !isZero(s.Rotate) {
		c.out.set("transform", "rotate("+c.unit("rotate", s.Rotate, "deg")+")")
	}
	c.tuple("border-radius", "borderRadius", s.BorderRadius, radiusEdges)
	c.tuple("margin", "margin", s.Margin, marginEdges)
	c.tuple("padding", "padding", s.Padding, paddingEdges)
	c.anchorX()
	c.anchorY()

	if s.Color.IsShow && s.Color.ModelValue != "" {
		c.out.set("color", s.Color.ModelValue)
	}
	if s.Background.IsShow && s.Background.ModelValue != "" {
		c.out.set("background", s.Background.ModelValue)
	}
	if s.MixBlendMode.IsShow && s.MixBlendMode.ModelValue != "" && s.MixBlendMode.ModelValue != "normal" {
		c.out.set("mix-blend-mode", s.MixBlendMode.ModelValue)
	}
	if s.Blur.IsShow && !isZero(s.Blur.ModelValue) {
		prop := "filter"
		if s.Blur.Field == "backdropFilter" {
			prop = "backdrop-filter"
		}
		c.out.set(prop, "blur("+c.unit("blur", s.Blur.ModelValue, "px")+")")
	}
	c.borders()
	c.shadows()

	s.Extra.Range(func(key, v string) bool {
		if isZero(v) {
			return true
		}
		c.out.set(model.KebabCase(key), c.unit(key, v, unitTable[key]))
		return true
	})
	s.CustomCSS.Range(func(key, v string) bool {
		c.out.set(key, v)
		return true
	})
	return c.out
}

// unit suffixes a numeric value with the model's unit override for key, or
// def. The calc unit wraps the expression instead.
func (c *compiler) unit(key, v, def string) string {
	v = strings.TrimSpace(v)
	u, ok := c.s.Units[key]
	if !ok {
		u = def
	}
	if u == "calc" {
		return "calc(" + spaceOperators(v) + ")"
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return v
	}
	return v + u
}

// edgeUnit resolves one edge of a 4-tuple: its own unit key first, then the
// shorthand's, then px.
func (c *compiler) edgeUnit(edgeKey, key, v string) string {
	if isZero(v) {
		return "0"
	}
	if _, ok := c.s.Units[edgeKey]; ok {
		return c.unit(edgeKey, v, "px")
	}
	return c.unit(key, v, "px")
}

func (c *compiler) tuple(prop, key string, vals [4]string, edges [4]string) {
	nonzero := false
	for _, v := range vals {
		if !isZero(v) {
			nonzero = true
		}
	}
	if !nonzero {
		return
	}
	parts := make([]string, 4)
	for i, v := range vals {
		parts[i] = c.edgeUnit(edges[i], key, v)
	}
	c.out.set(prop, strings.Join(parts, " "))
}

func (c *compiler) domSize() (w, h float64, ok bool) {
	if c.opts.DOMSize == nil || c.opts.Key == "" {
		return 0, 0, false
	}
	return c.opts.DOMSize(c.opts.Key)
}

// declaredSize returns the node's size along one axis: the tracked DOM size
// when present, else the declared width/height if it is a plain number.
func (c *compiler) declaredSize(key string, dom float64, tracked bool) (float64, bool) {
	if tracked {
		return dom, true
	}
	v, ok := c.s.Extra.Get(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	return f, err == nil
}

func (c *compiler) anchorX() {
	w, _, tracked := c.domSize()
	size, known := c.declaredSize("width", w, tracked)
	c.anchor(c.s.ConstX, "moveX", c.s.MoveX, "left", "right", "leftRight", size, known, tracked)
}

func (c *compiler) anchorY() {
	_, h, tracked := c.domSize()
	size, known := c.declaredSize("height", h, tracked)
	c.anchor(c.s.ConstY, "moveY", c.s.MoveY, "top", "bottom", "topBottom", size, known, tracked)
}

// anchor synthesizes positional properties for one axis. start/end are the
// CSS edges; span is the mode that pins both.
func (c *compiler) anchor(mode, moveKey, move, start, end, span string, size float64, known, tracked bool) {
	if isZero(move) && !tracked {
		return
	}
	off := c.unit(moveKey, orZero(move), "px")
	switch mode {
	case "", start:
		c.out.set(start, off)
	case end:
		c.out.set(end, off)
	case "center":
		if known {
			c.out.set(start, "calc(50% - "+px(size/2)+" + "+off+")")
		} else {
			c.out.set(start, "calc(50% + "+off+")")
		}
	case span:
		c.out.set(start, off)
		if known {
			c.out.set(end, "calc(100% - "+off+" - "+px(size)+")")
		}
	default:
		c.out.set(start, off)
	}
}

func (c *compiler) borders() {
	for _, b := range c.s.Border {
		if !b.IsShow {
			continue
		}
		prop := "border"
		if b.Position != "" && b.Position != "all" {
			prop = "border-" + b.Position
		}
		parts := nonEmpty(c.unit("borderWidth", orZero(b.Width), "px"), b.Style, b.Color)
		c.out.set(prop, strings.Join(parts, " "))
	}
}

func (c *compiler) shadows() {
	var layers []string
	for _, sh := range c.s.BoxShadow {
		if !sh.IsShow {
			continue
		}
		parts := []string{}
		if sh.Inset {
			parts = append(parts, "inset")
		}
		for _, v := range []string{sh.X, sh.Y, sh.Blur, sh.Spread} {
			parts = append(parts, c.unit("boxShadow", orZero(v), "px"))
		}
		if sh.Color != "" {
			parts = append(parts, sh.Color)
		}
		for i, p := range parts {
			if p == "0px" {
				parts[i] = "0"
			}
		}
		layers = append(layers, strings.Join(parts, " "))
	}
	if len(layers) > 0 {
		c.out.set("box-shadow", strings.Join(layers, ", "))
	}
}

func isZero(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f == 0
}

func orZero(v string) string {
	if strings.TrimSpace(v) == "" {
		return "0"
	}
	return v
}

func px(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64) + "px"
}

func nonEmpty(vals ...string) []string {
	out := vals[:0]
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// spaceOperators puts single spaces around arithmetic operators so that the
// expression is valid inside calc(). A minus that starts a number is kept
// as a sign.
func spaceOperators(expr string) string {
	var b strings.Builder
	prev := byte(0) // last non-space byte written
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		switch {
		case ch == ' ' || ch == '\t':
			continue
		case ch == '+' || ch == '*' || ch == '/' || (ch == '-' && isMinus(expr, i, prev)):
			b.WriteString(" ")
			b.WriteByte(ch)
			b.WriteString(" ")
			prev = ch
			continue
		}
		b.WriteByte(ch)
		prev = ch
	}
	return strings.TrimSpace(b.String())
}

// isMinus tells a subtraction from a sign or a hyphen inside a name.
func isMinus(expr string, i int, prev byte) bool {
	if !isOperand(prev) {
		return false
	}
	if isLetter(prev) && i+1 < len(expr) && (isLetter(expr[i+1]) || expr[i+1] == '-') {
		return false
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isOperand(c byte) bool {
	return c == ')' || c == '%' || c == '.' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
