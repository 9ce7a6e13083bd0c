package resolve

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/reactive"
)

// ErrNotCompiled is returned when a Func has neither a body nor a JS value.
var ErrNotCompiled = errors.New("function has no body")

// Func is a resolved callable: a model function bound to a scope, or a
// function value produced by the runtime itself. Bound arguments are
// appended after the call's own arguments.
type Func struct {
	r     *Resolver
	def   *model.Function
	scope *Scope
	name  string

	js    goja.Callable
	jsVal goja.Value

	bound []any
}

// Name returns the handler name attached by ResolveNode, if any.
func (f *Func) Name() string { return f.name }

// Async reports whether calling f yields a promise.
func (f *Func) Async() bool { return f.def.Async() }

// Bind returns a copy of f that appends args to every call.
func (f *Func) Bind(args ...any) *Func {
	c := *f
	c.bound = append(append([]any(nil), f.bound...), args...)
	return &c
}

// Call invokes the function. A malformed body is reported here, at the first
// call, not when the value was resolved. Async functions return the
// runtime's promise without awaiting it.
func (f *Func) Call(args ...any) (any, error) {
	var (
		out any
		err error
	)
	reactive.RunBatch(func() {
		f.r.mu.Lock()
		defer f.r.mu.Unlock()
		out, err = f.call(args)
	})
	return out, err
}

// SafeCall invokes the function and logs a failure instead of returning it.
// A failing call behaves as a no-op and yields nil.
func (f *Func) SafeCall(args ...any) any {
	out, err := f.Call(args...)
	if err != nil {
		f.r.logger.Warn("function call failed", "name", f.name, "error", err)
		return nil
	}
	return out
}

// call runs under the resolver lock.
func (f *Func) call(args []any) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	fn, err := f.callable()
	if err != nil {
		return nil, err
	}
	all := append(append([]any(nil), args...), f.bound...)
	vals := make([]goja.Value, len(all))
	for i, a := range all {
		vals[i] = f.r.toJS(a)
	}

	this := goja.Undefined()
	if f.scope != nil {
		this = f.scope.object()
	}
	res, err := fn(this, vals...)
	if err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			return nil, fmt.Errorf("%s", ex.Value().String())
		}
		return nil, err
	}
	return f.r.export(res), nil
}

func (f *Func) callable() (goja.Callable, error) {
	if f.js != nil {
		return f.js, nil
	}
	v, err := f.value()
	if err != nil {
		return nil, err
	}
	c, ok := goja.AssertFunction(v)
	if !ok {
		return nil, ErrNotCompiled
	}
	return c, nil
}

// value returns the JS function object, compiling the body on first use.
func (f *Func) value() (goja.Value, error) {
	if f.jsVal != nil {
		return f.jsVal, nil
	}
	if f.def == nil {
		return nil, ErrNotCompiled
	}
	s := f.scope
	if s == nil {
		s = f.r.NewScope(nil)
	}
	v, err := f.r.instantiate(f.def, s)
	if err != nil {
		return nil, err
	}
	f.jsVal = v
	f.js, _ = goja.AssertFunction(v)
	return v, nil
}

// MarshalJSON renders the function as an opaque marker for previews.
func (f *Func) MarshalJSON() ([]byte, error) {
	name := f.name
	if name == "" {
		name = "anonymous"
	}
	return json.Marshal("[function " + name + "]")
}
