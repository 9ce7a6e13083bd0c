package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrSlotRejected is returned when a slot's allow list excludes a child.
var ErrSlotRejected = errors.New("slot does not accept component")

// ErrNoSlot is returned when inserting into a slot the node does not have.
var ErrNoSlot = errors.New("no such slot")

// Default iteration aliases.
const (
	DefaultDataKey = "item"
	DefaultIDKey   = "index"
)

// ForDirective drives iteration: the source collection plus the item and
// index aliases exposed to the repeated subtree.
type ForDirective struct {
	Value   Value
	DataKey string
	IDKey   string
}

// Aliases returns the item and index aliases, defaulted.
func (f *ForDirective) Aliases() (item, index string) {
	item, index = f.DataKey, f.IDKey
	if item == "" {
		item = DefaultDataKey
	}
	if index == "" {
		index = DefaultIDKey
	}
	return item, index
}

type forJSON struct {
	valueJSON
	DataKey string `json:"dataKey"`
	IDKey   string `json:"idKey"`
}

// MarshalJSON implements json.Marshaler.
func (f ForDirective) MarshalJSON() ([]byte, error) {
	enc, err := f.Value.encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(forJSON{valueJSON: enc, DataKey: f.DataKey, IDKey: f.IDKey})
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *ForDirective) UnmarshalJSON(data []byte) error {
	var in forJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	v, err := decodeValue(in.valueJSON)
	if err != nil {
		return fmt.Errorf("for: %w", err)
	}
	f.Value, f.DataKey, f.IDKey = v, in.DataKey, in.IDKey
	return nil
}

// Directives holds the structural control facets of a node.
type Directives struct {
	If   *Value        `json:"if,omitempty"`
	Show *Value        `json:"show,omitempty"`
	For  *ForDirective `json:"for,omitempty"`
	Text *Value        `json:"text,omitempty"`
	HTML *Value        `json:"html,omitempty"`
}

// Empty reports whether no directive is set.
func (d Directives) Empty() bool {
	return d.If == nil && d.Show == nil && d.For == nil && d.Text == nil && d.HTML == nil
}

func cloneValuePtr(v *Value) *Value {
	if v == nil {
		return nil
	}
	c := v.Clone()
	return &c
}

func (d Directives) clone() Directives {
	out := Directives{
		If:   cloneValuePtr(d.If),
		Show: cloneValuePtr(d.Show),
		Text: cloneValuePtr(d.Text),
		HTML: cloneValuePtr(d.HTML),
	}
	if d.For != nil {
		f := *d.For
		f.Value = d.For.Value.Clone()
		out.For = &f
	}
	return out
}

// Slot is a named child list, optionally restricted to some component names.
type Slot struct {
	AllowComps []string `json:"allowComps,omitempty"`
	Children   []*Node  `json:"children"`
}

// Accepts reports whether a component named name may be inserted.
func (s *Slot) Accepts(name string) bool {
	return len(s.AllowComps) == 0 || slices.Contains(s.AllowComps, name)
}

func (s *Slot) clone() *Slot {
	if s == nil {
		return nil
	}
	out := &Slot{
		AllowComps: append([]string(nil), s.AllowComps...),
		Children:   make([]*Node, 0, len(s.Children)),
	}
	for _, c := range s.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}

// Animations is owned by the animation subsystem and carried opaquely.
type Animations struct {
	Enter       []map[string]any `json:"enter"`
	Leave       []map[string]any `json:"leave"`
	State       []map[string]any `json:"state"`
	Interaction []map[string]any `json:"interaction"`
}

// Ensure makes all four effect lists exist.
func (a *Animations) Ensure() {
	if a.Enter == nil {
		a.Enter = []map[string]any{}
	}
	if a.Leave == nil {
		a.Leave = []map[string]any{}
	}
	if a.State == nil {
		a.State = []map[string]any{}
	}
	if a.Interaction == nil {
		a.Interaction = []map[string]any{}
	}
}

func (a Animations) clone() Animations {
	cp := func(in []map[string]any) []map[string]any {
		out := make([]map[string]any, len(in))
		for i, m := range in {
			out[i], _ = cloneAny(m).(map[string]any)
		}
		return out
	}
	return Animations{Enter: cp(a.Enter), Leave: cp(a.Leave), State: cp(a.State), Interaction: cp(a.Interaction)}
}

// Node is one component instance in the page tree.
type Node struct {
	Name       string
	Key        string
	ID         string
	Attrs      Map[Value]
	On         Map[Value]
	NativeOn   Map[Value]
	Directives Directives
	Slots      Map[*Slot]
	CSS        Style
	Animations Animations
}

type nodeJSON struct {
	Name       string          `json:"name"`
	Key        string          `json:"key"`
	ID         string          `json:"id"`
	Attrs      Map[Value]      `json:"attrs"`
	On         Map[Value]      `json:"on"`
	NativeOn   Map[Value]      `json:"nativeOn"`
	Directives Directives      `json:"directives"`
	Slots      Map[*Slot]      `json:"slots"`
	CSS        json.RawMessage `json:"css,omitempty"`
	Animations Animations      `json:"animations"`
}

// MarshalJSON writes the node with its style in compact form.
func (n *Node) MarshalJSON() ([]byte, error) {
	css, err := Compact(n.CSS)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.Key, err)
	}
	rawCSS, err := json.Marshal(css)
	if err != nil {
		return nil, err
	}
	anim := n.Animations
	anim.Ensure()
	return json.Marshal(nodeJSON{
		Name:       n.Name,
		Key:        n.Key,
		ID:         n.ID,
		Attrs:      n.Attrs,
		On:         n.On,
		NativeOn:   n.NativeOn,
		Directives: n.Directives,
		Slots:      n.Slots,
		CSS:        rawCSS,
		Animations: anim,
	})
}

// UnmarshalJSON reads a node, restoring its style over the default and
// filling in a missing key/id pair.
func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	css := DefaultStyle()
	if len(in.CSS) > 0 {
		var c CompactStyle
		if err := json.Unmarshal(in.CSS, &c); err != nil {
			return fmt.Errorf("node %s css: %w", in.Key, err)
		}
		restored, err := Restore(c)
		if err != nil {
			return fmt.Errorf("node %s css: %w", in.Key, err)
		}
		css = restored
	}
	*n = Node{
		Name:       in.Name,
		Key:        in.Key,
		ID:         in.ID,
		Attrs:      in.Attrs,
		On:         in.On,
		NativeOn:   in.NativeOn,
		Directives: in.Directives,
		Slots:      in.Slots,
		CSS:        css,
		Animations: in.Animations,
	}
	n.Animations.Ensure()
	switch {
	case n.Key == "" && n.ID == "":
		n.Key = NewKey()
		n.ID = n.Key
	case n.Key == "":
		n.Key = n.ID
	case n.ID == "":
		n.ID = n.Key
	}
	return nil
}

// Slot returns the named slot.
func (n *Node) Slot(name string) (*Slot, bool) {
	s, ok := n.Slots.Get(name)
	return s, ok && s != nil
}

// Children returns the children of every slot in slot order.
func (n *Node) Children() []*Node {
	var out []*Node
	n.Slots.Range(func(_ string, s *Slot) bool {
		if s != nil {
			out = append(out, s.Children...)
		}
		return true
	})
	return out
}

// Insert adds child to the named slot at index (clamped; negative appends).
func (n *Node) Insert(slot string, index int, child *Node) error {
	s, ok := n.Slot(slot)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrNoSlot, n.Name, slot)
	}
	if !s.Accepts(child.Name) {
		return fmt.Errorf("%w: %s.%s rejects %s", ErrSlotRejected, n.Name, slot, child.Name)
	}
	if index < 0 || index > len(s.Children) {
		index = len(s.Children)
	}
	s.Children = slices.Insert(s.Children, index, child)
	return nil
}

// Remove detaches the descendant with the given key. It reports whether a
// node was removed.
func (n *Node) Remove(key string) bool {
	removed := false
	n.Slots.Range(func(_ string, s *Slot) bool {
		if s == nil {
			return true
		}
		for i, c := range s.Children {
			if c.Key == key {
				s.Children = slices.Delete(s.Children, i, i+1)
				removed = true
				return false
			}
			if c.Remove(key) {
				removed = true
				return false
			}
		}
		return true
	})
	return removed
}

// Find returns the node with the given key in the subtree rooted at n.
func (n *Node) Find(key string) *Node {
	var found *Node
	n.Walk(func(c *Node, _ int) bool {
		if c.Key == key {
			found = c
			return false
		}
		return true
	})
	return found
}

// Walk visits n and its descendants depth-first, slots in order. Returning
// false from fn stops the walk.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) bool {
	if !fn(n, depth) {
		return false
	}
	for _, c := range n.Children() {
		if !c.walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// Clone deep-copies the node, keeping its key and id.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cv := func(v Value) Value { return v.Clone() }
	return &Node{
		Name:       n.Name,
		Key:        n.Key,
		ID:         n.ID,
		Attrs:      n.Attrs.CloneWith(cv),
		On:         n.On.CloneWith(cv),
		NativeOn:   n.NativeOn.CloneWith(cv),
		Directives: n.Directives.clone(),
		Slots:      n.Slots.CloneWith(func(s *Slot) *Slot { return s.clone() }),
		CSS:        n.CSS.Clone(),
		Animations: n.Animations.clone(),
	}
}

// Rekey assigns fresh key/id pairs to n and all of its descendants. Used when
// instantiating a template so copies never share keys.
func (n *Node) Rekey() {
	n.Walk(func(c *Node, _ int) bool {
		c.Key = NewKey()
		c.ID = c.Key
		return true
	})
}

// Walk visits every node of a forest in order.
func Walk(tree []*Node, fn func(node *Node, depth int) bool) {
	for _, n := range tree {
		if !n.walk(fn, 0) {
			return
		}
	}
}
