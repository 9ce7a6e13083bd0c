// Package resolve evaluates model values against a live variable scope.
//
// Function and computed bodies run in a goja runtime owned by the Resolver.
// A goja runtime is single-threaded, so every entry point takes the
// resolver's lock; code running inside the runtime (scope lookups, computed
// getters) relies on the caller already holding it.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/reactive"
	"github.com/recera/lowcode/pkg/registry"
)

// Resolver turns model values into runtime values.
type Resolver struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	reg      *registry.Registry
	compiled map[string]goja.Callable
	logger   *slog.Logger
}

// New creates a resolver. reg may be nil.
func New(reg *registry.Registry) *Resolver {
	if reg == nil {
		reg = registry.Empty()
	}
	r := &Resolver{
		vm:       goja.New(),
		reg:      reg,
		compiled: make(map[string]goja.Callable),
		logger:   slog.Default().With("component", "resolve"),
	}
	r.installConsole()
	return r
}

// SetLogger replaces the resolver's logger.
func (r *Resolver) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	r.logger = l.With("component", "resolve")
	r.mu.Unlock()
}

func (r *Resolver) installConsole() {
	logf := func(level slog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			r.logger.Log(context.Background(), level, strings.Join(parts, " "), "source", "console")
			return goja.Undefined()
		}
	}
	console := r.vm.NewObject()
	_ = console.Set("log", logf(slog.LevelInfo))
	_ = console.Set("info", logf(slog.LevelInfo))
	_ = console.Set("warn", logf(slog.LevelWarn))
	_ = console.Set("error", logf(slog.LevelError))
	_ = r.vm.Set("console", console)
}

// source wraps a function body so that scope names are visible as bare
// identifiers and parameters shadow them.
func source(fn *model.Function) string {
	kw := "function"
	if fn.Async() {
		kw = "async function"
	}
	return fmt.Sprintf("(function(){ with (this) { return %s(%s) {\n%s\n} } })",
		kw, strings.Join(fn.CodeVar, ", "), fn.Code)
}

// factory compiles fn once per distinct source text.
func (r *Resolver) factory(fn *model.Function) (goja.Callable, error) {
	src := source(fn)
	if c, ok := r.compiled[src]; ok {
		return c, nil
	}
	v, err := r.vm.RunString(src)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	c, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("compile: body did not produce a function")
	}
	r.compiled[src] = c
	return c, nil
}

// instantiate returns the JS function for fn with s as its scope.
func (r *Resolver) instantiate(fn *model.Function, s *Scope) (goja.Value, error) {
	mk, err := r.factory(fn)
	if err != nil {
		return nil, err
	}
	return mk(s.object())
}

// Resolve evaluates one value. Literals are returned as-is. A variable
// reference walks the scope and yields nil for a missing segment; if the
// walk ends at a callable it is bound to the scope's context when
// acceptsFunc is set and invoked otherwise. Function values yield a *Func,
// computed values their current memoized result.
func (r *Resolver) Resolve(v model.Value, s *Scope, acceptsFunc bool) (any, error) {
	var (
		out any
		err error
	)
	reactive.RunBatch(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		out, err = r.resolve(v, s, acceptsFunc)
	})
	return out, err
}

func (r *Resolver) resolve(v model.Value, s *Scope, acceptsFunc bool) (any, error) {
	switch {
	case v.Type.IsLiteral():
		return v.Literal, nil
	case v.Type == model.TypeVariable:
		val := s.walk(v.Path)
		f, ok := val.(*Func)
		if !ok {
			return val, nil
		}
		if acceptsFunc {
			return f.Bind(s.Context()), nil
		}
		return f.call([]any{s.Context()})
	case v.Type == model.TypeFunction:
		if v.Func == nil {
			return nil, nil
		}
		f := &Func{r: r, def: v.Func, scope: s}
		return f.Bind(s.Context()), nil
	case v.Type == model.TypeComputed:
		if v.Func == nil {
			return nil, nil
		}
		return s.computed(v.Func).Get(), nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownValueType, v.Type)
}

// Resolved is the runtime view of one node.
type Resolved struct {
	Attrs    model.Map[any]
	On       model.Map[*Func]
	NativeOn model.Map[*Func]
	Errors   []error
}

// ResolveNode resolves every attribute and event of node. It never aborts:
// a failing entry is recorded in Errors and resolves to nil.
func (r *Resolver) ResolveNode(node *model.Node, s *Scope) Resolved {
	var out Resolved
	reactive.RunBatch(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		out = r.resolveNode(node, s)
	})
	return out
}

func (r *Resolver) resolveNode(node *model.Node, s *Scope) Resolved {
	var out Resolved
	fail := func(kind, name string, err error) {
		err = fmt.Errorf("%s %s.%s: %w", node.Key, kind, name, err)
		out.Errors = append(out.Errors, err)
		r.logger.Warn("resolve failed", "node", node.Key, "component", node.Name, "entry", kind+"."+name, "error", err)
	}

	node.Attrs.Range(func(name string, v model.Value) bool {
		val, err := r.resolve(v, s, r.reg.AcceptsFunction(node.Name, name))
		if err != nil {
			fail("attrs", name, err)
			val = nil
		}
		out.Attrs.Set(name, val)
		return true
	})

	events := func(kind string, m *model.Map[model.Value], dst *model.Map[*Func]) {
		m.Range(func(name string, v model.Value) bool {
			val, err := r.resolve(v, s, true)
			if err != nil {
				fail(kind, name, err)
				return true
			}
			f, ok := val.(*Func)
			if !ok {
				if val != nil {
					fail(kind, name, fmt.Errorf("not callable (%T)", val))
				}
				return true
			}
			f.name = model.HandlerName(node.Key, "", name)
			dst.Set(name, f)
			return true
		})
	}
	events("on", &node.On, &out.On)
	events("nativeOn", &node.NativeOn, &out.NativeOn)
	return out
}

// segment reads one path segment from val. Missing segments yield nil.
func (r *Resolver) segment(val any, seg string) any {
	switch t := val.(type) {
	case nil:
		return nil
	case map[string]any:
		return t[seg]
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(t) {
			if seg == "length" {
				return float64(len(t))
			}
			return nil
		}
		return t[i]
	case *Func:
		return nil
	case goja.Value:
		obj := t.ToObject(r.vm)
		if obj == nil {
			return nil
		}
		return r.export(obj.Get(seg))
	}
	return r.export(r.vm.ToValue(val).ToObject(r.vm).Get(seg))
}

// export converts a JS value to Go. Functions stay callable as *Func.
func (r *Resolver) export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return &Func{r: r, js: fn, jsVal: v}
	}
	return v.Export()
}

// toJS converts a Go value for use inside the runtime.
func (r *Resolver) toJS(v any) goja.Value {
	switch t := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return t
	case *Func:
		fv, err := t.value()
		if err != nil {
			r.logger.Warn("function unavailable", "name", t.name, "error", err)
			return goja.Undefined()
		}
		return fv
	}
	return r.vm.ToValue(v)
}
