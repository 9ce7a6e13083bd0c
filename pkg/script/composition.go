package script

import (
	"strings"

	"github.com/recera/lowcode/pkg/model"
)

func (e *emitter) composition() (string, error) {
	if err := e.declareImports(); err != nil {
		return "", err
	}

	var body strings.Builder

	var err error
	e.globals.Variable.Range(func(name string, v model.Value) bool {
		if err = e.declare(name, "variable"); err != nil {
			return false
		}
		body.WriteString(e.variable(name, v))
		return true
	})
	if err != nil {
		return "", err
	}

	e.globals.Export.Range(func(name string, v model.Value) bool {
		if err = e.declare(name, "export"); err != nil {
			return false
		}
		logger.Warn("named export declared as a local constant in composition mode", "name", name)
		body.WriteString(exportDecl(name, v, false))
		return true
	})
	if err != nil {
		return "", err
	}

	var hooks strings.Builder
	e.globals.Lifecycle.Range(func(name string, v model.Value) bool {
		if !v.IsCallable() || v.Func == nil || strings.TrimSpace(v.Func.Code) == "" {
			return true
		}
		hook := HookName(name)
		f := v.Func
		switch {
		case setupHook(hook):
			hooks.WriteString(";(" + asyncPrefix(f) + "() => {\n" + indentBlock(f.Code, "  ") + "})()\n")
		case hookNames[hook] != "":
			hooks.WriteString(e.use(hookNames[hook]) + "(" + asyncPrefix(f) + "() => {\n" + indentBlock(f.Code, "  ") + "})\n")
		default:
			logger.Warn("unknown lifecycle hook", "name", name)
		}
		return true
	})

	var handlers strings.Builder
	for _, h := range e.handlers {
		if err := e.declare(h.Name, "node "+h.Node); err != nil {
			return "", err
		}
		if h.Computed {
			handlers.WriteString("const " + h.Name + " = " + e.use("computed") + "(() => {\n" + indentBlock(h.Func.Code, "  ") + "})\n")
			continue
		}
		handlers.WriteString(funcDecl(h.Name, h.Func))
	}

	var out strings.Builder
	e.writeImports(&out)
	for _, part := range []string{body.String(), hooks.String(), handlers.String()} {
		if part == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString(part)
	}
	return out.String(), nil
}

func (e *emitter) variable(name string, v model.Value) string {
	switch {
	case v.Type.IsLiteral():
		return "const " + name + " = " + e.use("ref") + "(" + model.JSLiteral(v.Literal) + ")\n"
	case v.Type == model.TypeVariable:
		return "const " + name + " = " + e.use("computed") + "(() => " + e.refPath(v.Path) + ")\n"
	case v.Type == model.TypeComputed && v.Func != nil:
		return "const " + name + " = " + e.use("computed") + "(() => {\n" + indentBlock(v.Func.Code, "  ") + "})\n"
	case v.Type == model.TypeFunction && v.Func != nil:
		return funcDecl(name, v.Func)
	}
	logger.Warn("skipping variable", "name", name, "type", v.Type)
	return ""
}

// refPath reads a path whose root is a page variable through its ref.
func (e *emitter) refPath(path []string) string {
	if len(path) == 0 {
		return "undefined"
	}
	expr := model.PathExpr(path)
	if v, ok := e.globals.Variable.Get(path[0]); ok && (v.Type.IsLiteral() || v.Type == model.TypeVariable || v.Type == model.TypeComputed) {
		return path[0] + ".value" + strings.TrimPrefix(expr, path[0])
	}
	return expr
}

func funcDecl(name string, f *model.Function) string {
	if f.IsArrow {
		return "const " + name + " = " + asyncPrefix(f) + params(f) + " => {\n" + indentBlock(f.Code, "  ") + "}\n"
	}
	return asyncPrefix(f) + "function " + name + params(f) + " {\n" + indentBlock(f.Code, "  ") + "}\n"
}

// exportDecl renders one named export; exported selects the export keyword.
func exportDecl(name string, v model.Value, exported bool) string {
	prefix := ""
	if exported {
		prefix = "export "
	}
	switch {
	case v.Type == model.TypeFunction && v.Func != nil:
		return prefix + funcDecl(name, v.Func)
	case v.Type == model.TypeVariable:
		return prefix + "const " + name + " = " + model.PathExpr(v.Path) + "\n"
	case v.Type == model.TypeComputed && v.Func != nil:
		return prefix + "const " + name + " = (() => {\n" + indentBlock(v.Func.Code, "  ") + "})()\n"
	}
	return prefix + "const " + name + " = " + model.JSLiteral(v.Literal) + "\n"
}
