package sfc

import (
	"fmt"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"

	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/script"
)

// script lowers the behavior block into declarations, imports, exports and
// lifecycle hooks.
func (l *lowerer) script(b *Block) {
	if b.Has("setup") {
		l.style = script.Composition
	}
	ast, err := js.Parse(parse.NewInputString(b.Content), js.Options{})
	if err != nil {
		l.diag(b.ContentPos, "script: "+err.Error())
		return
	}
	for _, stmt := range ast.List {
		l.stmt(b.ContentPos, stmt)
	}
}

func (l *lowerer) stmt(pos Pos, s js.IStmt) {
	switch s := s.(type) {
	case *js.ImportStmt:
		l.importStmt(pos, s)
	case *js.ExportStmt:
		l.exportStmt(pos, s)
	case *js.VarDecl:
		l.varDecl(pos, s, false)
	case *js.FuncDecl:
		if s.Name == nil {
			l.skip(pos, "anonymous function declaration")
			return
		}
		l.declare(pos, s.Name.String(), funcValue(s))
	case *js.ExprStmt:
		l.exprStmt(pos, s)
	case *js.EmptyStmt, *js.Comment, *js.DirectivePrologueStmt:
	default:
		l.skip(pos, kindOf(s)+" statement")
	}
}

func kindOf(n js.INode) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*js.")
}

func (l *lowerer) importStmt(pos Pos, s *js.ImportStmt) {
	if len(s.Module) == 0 {
		l.skip(pos, "import")
		return
	}
	from, err := unquote(string(s.Module))
	if err != nil {
		l.skip(pos, "import "+string(s.Module))
		return
	}
	imp := model.Import{From: from, Default: string(s.Default)}
	if len(s.List) == 1 && string(s.List[0].Name) == "*" {
		imp.Namespace = string(s.List[0].Binding)
	} else {
		for _, a := range s.List {
			name := model.ImportName{Name: string(a.Binding)}
			if len(a.Name) > 0 {
				name = model.ImportName{Name: string(a.Name), Alias: string(a.Binding)}
			}
			// The composition emitter re-imports its own helpers.
			if from == "vue" && name.Alias == "" && script.IsHelper(name.Name) {
				continue
			}
			imp.Names = append(imp.Names, name)
		}
	}
	if imp.Default == "" && imp.Namespace == "" && len(imp.Names) == 0 && len(s.List) > 0 {
		return
	}
	l.globals.Import = append(l.globals.Import, imp)
}

func (l *lowerer) exportStmt(pos Pos, s *js.ExportStmt) {
	switch {
	case s.Default:
		obj, ok := unwrap(s.Decl).(*js.ObjectExpr)
		if !ok {
			l.skip(pos, "default export of "+kindOf(s.Decl))
			return
		}
		l.style = script.Options
		l.optionsObject(pos, obj)
	case s.Decl != nil:
		switch d := s.Decl.(type) {
		case *js.VarDecl:
			l.varDecl(pos, d, true)
		case *js.FuncDecl:
			if d.Name == nil {
				l.skip(pos, "anonymous function export")
				return
			}
			l.globals.Export.Set(d.Name.String(), funcValue(d))
		default:
			l.skip(pos, "export of "+kindOf(d))
		}
	default:
		l.skip(pos, "export list")
	}
}

func (l *lowerer) varDecl(pos Pos, d *js.VarDecl, export bool) {
	for _, el := range d.List {
		v, ok := el.Binding.(*js.Var)
		if !ok || el.Default == nil {
			l.skip(pos, "destructuring or uninitialized declaration")
			continue
		}
		name := v.String()
		if export {
			if val, ok := exportValue(el.Default); ok {
				l.globals.Export.Set(name, val)
			} else {
				l.skip(pos, "export "+name)
			}
			continue
		}
		val, ok := initValue(el.Default)
		if !ok {
			l.skip(pos, "declaration "+name)
			continue
		}
		l.declare(pos, name, val)
	}
}

// initValue lowers the initializer of a top-level declaration.
func initValue(e js.IExpr) (model.Value, bool) {
	e = unwrap(e)
	if call, ok := e.(*js.CallExpr); ok {
		switch callee, _ := exprPath(call.X); strings.Join(callee, ".") {
		case "ref", "reactive", "shallowRef":
			if len(call.Args.List) == 0 {
				return model.Null(model.TypeObject), true
			}
			lit, err := literal(call.Args.List[0].Value)
			if err != nil {
				return model.Value{}, false
			}
			return literalValue(lit), true
		case "computed":
			if len(call.Args.List) != 1 {
				return model.Value{}, false
			}
			f, body, ok := fnOf(call.Args.List[0].Value)
			if !ok {
				return model.Value{}, false
			}
			if path, ok := returnedPath(body); ok && len(path) > 1 && path[1] == "value" {
				return model.Var(append([]string{path[0]}, path[2:]...)...), true
			}
			return model.Value{Type: model.TypeComputed, Func: f}, true
		}
		return model.Value{}, false
	}
	if f, _, ok := fnOf(e); ok {
		return model.Value{Type: model.TypeFunction, Func: f}, true
	}
	if lit, err := literal(e); err == nil {
		return literalValue(lit), true
	}
	if path, ok := exprPath(e); ok && path[0] != "this" {
		return model.Var(path...), true
	}
	return model.Value{}, false
}

// exportValue lowers the initializer of a named export.
func exportValue(e js.IExpr) (model.Value, bool) {
	e = unwrap(e)
	if call, ok := e.(*js.CallExpr); ok && len(call.Args.List) == 0 {
		if f, _, ok := fnOf(call.X); ok {
			return model.Value{Type: model.TypeComputed, Func: f}, true
		}
	}
	if f, _, ok := fnOf(e); ok {
		return model.Value{Type: model.TypeFunction, Func: f}, true
	}
	if lit, err := literal(e); err == nil {
		return literalValue(lit), true
	}
	if path, ok := exprPath(e); ok {
		return model.Var(path...), true
	}
	return model.Value{}, false
}

func (l *lowerer) exprStmt(pos Pos, s *js.ExprStmt) {
	call, ok := unwrap(s.Value).(*js.CallExpr)
	if !ok {
		l.skip(pos, kindOf(s.Value)+" expression")
		return
	}
	if callee, ok := exprPath(call.X); ok && len(callee) == 1 {
		hook, ok := script.HookFor(callee[0])
		if ok && len(call.Args.List) == 1 {
			if f, _, ok := fnOf(call.Args.List[0].Value); ok {
				f.CodeVar, f.IsArrow = nil, false
				l.globals.Lifecycle.Set(hook, model.Value{Type: model.TypeFunction, Func: f})
				return
			}
		}
	}
	if f, _, ok := fnOf(call.X); ok && len(call.Args.List) == 0 {
		f.IsArrow = false
		l.globals.Lifecycle.Set("created", model.Value{Type: model.TypeFunction, Func: f})
		return
	}
	l.skip(pos, "call statement "+source(call.X))
}

// optionsObject lowers `export default { ... }`.
func (l *lowerer) optionsObject(pos Pos, obj *js.ObjectExpr) {
	for _, p := range obj.List {
		key, ok := propKey(p)
		if !ok {
			l.skip(pos, "options entry")
			continue
		}
		switch {
		case key == "data":
			l.optionsData(pos, p.Value)
		case key == "computed" || key == "methods":
			members, ok := unwrap(p.Value).(*js.ObjectExpr)
			if !ok {
				l.skip(pos, key)
				continue
			}
			for _, m := range members.List {
				name, ok := propKey(m)
				if !ok {
					l.skip(pos, key+" entry")
					continue
				}
				f, body, ok := fnOf(m.Value)
				if !ok {
					l.skip(pos, key+" "+name)
					continue
				}
				if key == "methods" {
					l.declare(pos, name, model.Value{Type: model.TypeFunction, Func: f})
					continue
				}
				if path, ok := returnedPath(body); ok && len(path) > 1 && path[0] == "this" {
					l.declare(pos, name, model.Var(path[1:]...))
					continue
				}
				f.CodeVar, f.IsArrow = nil, false
				l.declare(pos, name, model.Value{Type: model.TypeComputed, Func: f})
			}
		case script.IsHook(key):
			f, _, ok := fnOf(p.Value)
			if !ok {
				l.skip(pos, "hook "+key)
				continue
			}
			f.CodeVar, f.IsArrow = nil, false
			l.globals.Lifecycle.Set(key, model.Value{Type: model.TypeFunction, Func: f})
		default:
			l.skip(pos, "option "+key)
		}
	}
}

// optionsData reads the object returned by data() as literal variables.
func (l *lowerer) optionsData(pos Pos, e js.IExpr) {
	_, body, ok := fnOf(e)
	if !ok || len(body) != 1 {
		l.skip(pos, "data")
		return
	}
	ret, ok := body[0].(*js.ReturnStmt)
	if !ok || ret.Value == nil {
		l.skip(pos, "data")
		return
	}
	obj, ok := unwrap(ret.Value).(*js.ObjectExpr)
	if !ok {
		l.skip(pos, "data")
		return
	}
	for _, p := range obj.List {
		name, ok := propKey(p)
		if !ok {
			l.skip(pos, "data entry")
			continue
		}
		lit, err := literal(p.Value)
		if err != nil {
			l.skip(pos, "data "+name)
			continue
		}
		l.declare(pos, name, literalValue(lit))
	}
}

// fnOf lowers a function-like expression. The body is kept as source text;
// the statements are returned for callers that inspect its shape.
func fnOf(e js.IExpr) (*model.Function, []js.IStmt, bool) {
	var (
		async  bool
		arrow  bool
		params js.Params
		body   js.BlockStmt
	)
	switch x := unwrap(e).(type) {
	case *js.ArrowFunc:
		async, arrow, params, body = x.Async, true, x.Params, x.Body
	case *js.FuncDecl:
		async, params, body = x.Async, x.Params, x.Body
	case *js.MethodDecl:
		if x.Get || x.Set || x.Generator {
			return nil, nil, false
		}
		async, params, body = x.Async, x.Params, x.Body
	default:
		return nil, nil, false
	}
	f := &model.Function{
		Code:         bodyText(body.List),
		CodeVar:      paramNames(params),
		FunctionMode: model.ModeFunction,
		IsArrow:      arrow,
	}
	if async {
		f.FunctionMode = model.ModeAsyncFunction
	}
	return f, body.List, true
}

func funcValue(d *js.FuncDecl) model.Value {
	f, _, _ := fnOf(d)
	return model.Value{Type: model.TypeFunction, Func: f}
}

// returnedPath matches a body consisting of a single `return a.b.c`.
func returnedPath(body []js.IStmt) ([]string, bool) {
	if len(body) != 1 {
		return nil, false
	}
	ret, ok := body[0].(*js.ReturnStmt)
	if !ok || ret.Value == nil {
		return nil, false
	}
	return exprPath(ret.Value)
}

func literalValue(lit any) model.Value {
	switch v := lit.(type) {
	case string:
		return model.String(v)
	case float64:
		return model.Number(v)
	case bool:
		return model.Bool(v)
	case map[string]any:
		return model.Object(v)
	case []any:
		return model.Array(v)
	}
	return model.Null(model.TypeObject)
}
