package resolve

import (
	"sort"

	"github.com/dop251/goja"

	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/reactive"
)

// cell is one named slot of a scope. get runs under the resolver lock.
type cell interface {
	get() any
}

type stateCell struct{ s *reactive.State[any] }

func (c stateCell) get() any { return c.s.Get() }

type computedCell struct{ c *reactive.Computed[any] }

func (c computedCell) get() any { return c.c.Get() }

type funcCell struct{ f *Func }

func (c funcCell) get() any { return c.f }

// Scope is a chain of named cells visible to resolved values and to function
// bodies (as `this` and as bare identifiers).
type Scope struct {
	r      *Resolver
	parent *Scope
	names  []string
	cells  map[string]cell
	// allow restricts lookups in this frame to a prefix of names.
	allow  map[string]bool
	ctx    any
	hasCtx bool

	memo map[*model.Function]*reactive.Computed[any]
	obj  *goja.Object
}

// NewScope creates a root scope holding the given values as writable cells.
func (r *Resolver) NewScope(vars map[string]any) *Scope {
	s := &Scope{r: r, cells: make(map[string]cell)}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.define(k, stateCell{reactive.NewState[any](vars[k])})
	}
	return s
}

// NewPageScope builds the scope of a page from its variables, in declaration
// order. Literals become writable state. Variable references alias an earlier
// entry. Computed entries become memoized getters that only see variables
// declared before them. Function entries see the whole page scope.
func (r *Resolver) NewPageScope(g model.Globals) *Scope {
	s := &Scope{r: r, cells: make(map[string]cell)}
	g.Variable.Range(func(name string, v model.Value) bool {
		view := s.view()
		switch {
		case v.Type.IsLiteral():
			s.define(name, stateCell{reactive.NewState[any](v.Clone().Literal)})
		case v.Type == model.TypeVariable:
			path := append([]string(nil), v.Path...)
			s.define(name, computedCell{reactive.NewComputed(func() any {
				return view.walk(path)
			})})
		case v.Type == model.TypeFunction:
			if v.Func != nil {
				s.define(name, funcCell{&Func{r: r, def: v.Func, scope: s, name: name}})
			}
		case v.Type == model.TypeComputed:
			if v.Func != nil {
				def := v.Func
				s.define(name, computedCell{reactive.NewComputed(func() any {
					return view.eval(def, name)
				})})
			}
		default:
			r.logger.Warn("skipping variable", "name", name, "type", v.Type)
		}
		return true
	})
	return s
}

func (s *Scope) define(name string, c cell) {
	if _, ok := s.cells[name]; !ok {
		s.names = append(s.names, name)
	}
	s.cells[name] = c
}

// view returns a frame over the names defined so far. Later definitions in s
// are not visible through it.
func (s *Scope) view() *Scope {
	allow := make(map[string]bool, len(s.names))
	for _, n := range s.names {
		allow[n] = true
	}
	return &Scope{r: s.r, parent: s.parent, names: append([]string(nil), s.names...), cells: s.cells, allow: allow}
}

// Extend returns a child scope with extra locals, e.g. iteration aliases.
func (s *Scope) Extend(locals map[string]any) *Scope {
	child := s.r.NewScope(locals)
	child.parent = s
	return child
}

// WithContext returns a child scope whose active slot-iteration context is ctx.
func (s *Scope) WithContext(ctx any) *Scope {
	return &Scope{r: s.r, parent: s, cells: map[string]cell{}, ctx: ctx, hasCtx: true}
}

// Context returns the nearest slot-iteration context, or nil.
func (s *Scope) Context() any {
	for f := s; f != nil; f = f.parent {
		if f.hasCtx {
			return f.ctx
		}
	}
	return nil
}

func (s *Scope) lookup(name string) (cell, bool) {
	for f := s; f != nil; f = f.parent {
		if f.allow != nil && !f.allow[name] {
			continue
		}
		if c, ok := f.cells[name]; ok {
			return c, true
		}
	}
	return nil, false
}

// Names returns every visible name, innermost first.
func (s *Scope) Names() []string {
	seen := map[string]bool{}
	var out []string
	for f := s; f != nil; f = f.parent {
		for _, n := range f.names {
			if seen[n] || (f.allow != nil && !f.allow[n]) {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Get reads a variable.
func (s *Scope) Get(name string) (any, bool) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	c, ok := s.lookup(name)
	if !ok {
		return nil, false
	}
	return c.get(), true
}

// Set writes a writable variable. It reports false for unknown or read-only
// names.
func (s *Scope) Set(name string, v any) bool {
	ok := false
	reactive.RunBatch(func() {
		s.r.mu.Lock()
		defer s.r.mu.Unlock()
		ok = s.set(name, v)
	})
	return ok
}

func (s *Scope) set(name string, v any) bool {
	c, ok := s.lookup(name)
	if !ok {
		return false
	}
	st, ok := c.(stateCell)
	if !ok {
		return false
	}
	st.s.Set(v)
	return true
}

// Snapshot returns the current value of every visible variable.
func (s *Scope) Snapshot() map[string]any {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	out := make(map[string]any)
	for _, n := range s.Names() {
		c, _ := s.lookup(n)
		out[n] = c.get()
	}
	return out
}

func (s *Scope) walk(path []string) any {
	if len(path) == 0 {
		return nil
	}
	c, ok := s.lookup(path[0])
	if !ok {
		return nil
	}
	val := c.get()
	for _, seg := range path[1:] {
		val = s.r.segment(val, seg)
		if val == nil {
			return nil
		}
	}
	return val
}

// eval runs a computed body with s as `this` and logs a failure.
func (s *Scope) eval(def *model.Function, name string) any {
	f := &Func{r: s.r, def: def, scope: s, name: name}
	out, err := f.call(nil)
	if err != nil {
		s.r.logger.Warn("computed failed", "name", name, "error", err)
		return nil
	}
	return out
}

// computed returns the memoized getter for a computed attribute.
func (s *Scope) computed(def *model.Function) *reactive.Computed[any] {
	if s.memo == nil {
		s.memo = make(map[*model.Function]*reactive.Computed[any])
	}
	if c, ok := s.memo[def]; ok {
		return c
	}
	c := reactive.NewComputed(func() any { return s.eval(def, "computed") })
	s.memo[def] = c
	return c
}

// object is the JS view of the scope.
func (s *Scope) object() *goja.Object {
	if s.obj == nil {
		s.obj = s.r.vm.NewDynamicObject(&scopeObject{s: s})
	}
	return s.obj
}

type scopeObject struct{ s *Scope }

func (o *scopeObject) Get(key string) goja.Value {
	c, ok := o.s.lookup(key)
	if !ok {
		return nil
	}
	return o.s.r.toJS(c.get())
}

func (o *scopeObject) Set(key string, val goja.Value) bool {
	return o.s.set(key, o.s.r.export(val))
}

func (o *scopeObject) Has(key string) bool {
	_, ok := o.s.lookup(key)
	return ok
}

func (o *scopeObject) Delete(string) bool { return false }

func (o *scopeObject) Keys() []string { return o.s.Names() }
