package resolve

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/reactive"
)

// NodePreview is the resolved state of one rendered node instance.
type NodePreview struct {
	Key      string         `json:"key"`
	Name     string         `json:"name"`
	Index    *int           `json:"index,omitempty"`
	Hidden   bool           `json:"hidden,omitempty"`
	Attrs    model.Map[any] `json:"attrs"`
	Events   []string       `json:"events,omitempty"`
	Text     any            `json:"text,omitempty"`
	HTML     any            `json:"html,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	Children []NodePreview  `json:"children,omitempty"`
}

// Preview resolves a whole tree the way a renderer would see it: iteration
// expands a node once per item, a false condition drops it, show only marks
// it hidden.
func (r *Resolver) Preview(tree []*model.Node, s *Scope) []NodePreview {
	var out []NodePreview
	reactive.RunBatch(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		out = r.previewList(tree, s)
	})
	return out
}

func (r *Resolver) previewList(tree []*model.Node, s *Scope) []NodePreview {
	var out []NodePreview
	for _, n := range tree {
		out = append(out, r.previewNode(n, s)...)
	}
	return out
}

func (r *Resolver) previewNode(n *model.Node, s *Scope) []NodePreview {
	d := n.Directives
	if d.For == nil {
		if p, ok := r.previewOne(n, s, nil); ok {
			return []NodePreview{p}
		}
		return nil
	}

	src, err := r.resolve(d.For.Value, s, false)
	if err != nil {
		r.logger.Warn("iteration source failed", "node", n.Key, "error", err)
		return nil
	}
	itemKey, indexKey := d.For.Aliases()
	var out []NodePreview
	for i, item := range iterate(src) {
		ctx := map[string]any{itemKey: item, indexKey: i}
		child := s.Extend(ctx).WithContext(ctx)
		idx := i
		if p, ok := r.previewOne(n, child, &idx); ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *Resolver) previewOne(n *model.Node, s *Scope, index *int) (NodePreview, bool) {
	d := n.Directives
	p := NodePreview{Key: n.Key, Name: n.Name, Index: index}

	directive := func(name string, v *model.Value) any {
		if v == nil {
			return nil
		}
		val, err := r.resolve(*v, s, false)
		if err != nil {
			p.Errors = append(p.Errors, fmt.Sprintf("%s: %v", name, err))
			return nil
		}
		return val
	}

	if d.If != nil && !Truthy(directive("if", d.If)) {
		return p, false
	}
	if d.Show != nil {
		p.Hidden = !Truthy(directive("show", d.Show))
	}

	res := r.resolveNode(n, s)
	p.Attrs = res.Attrs
	p.Events = append(res.On.Keys(), res.NativeOn.Keys()...)
	for _, err := range res.Errors {
		p.Errors = append(p.Errors, err.Error())
	}

	switch {
	case d.Text != nil:
		p.Text = directive("text", d.Text)
	case d.HTML != nil:
		p.HTML = directive("html", d.HTML)
	default:
		p.Children = r.previewList(n.Children(), s)
	}
	return p, true
}

// iterate turns an iteration source into items: arrays yield their elements,
// objects their values, a number n yields 1..n.
func iterate(src any) []any {
	switch t := src.(type) {
	case nil:
		return nil
	case []any:
		return t
	case map[string]any:
		out := make([]any, 0, len(t))
		for _, k := range sortedKeys(t) {
			out = append(out, t[k])
		}
		return out
	case float64:
		return countTo(int(t))
	case int64:
		return countTo(int(t))
	case int:
		return countTo(t)
	}
	rv := reflect.ValueOf(src)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return nil
}

func countTo(n int) []any {
	out := make([]any, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		out = append(out, float64(i))
	}
	return out
}

// Truthy applies JavaScript truthiness to a resolved value.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
