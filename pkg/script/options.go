package script

import (
	"strings"

	"github.com/recera/lowcode/pkg/model"
)

const (
	ind1 = "  "
	ind2 = "    "
	ind3 = "      "
)

func (e *emitter) options() (string, error) {
	if err := e.declareImports(); err != nil {
		return "", err
	}

	var exports strings.Builder
	var err error
	e.globals.Export.Range(func(name string, v model.Value) bool {
		if err = e.declare(name, "export"); err != nil {
			return false
		}
		exports.WriteString(exportDecl(name, v, true))
		return true
	})
	if err != nil {
		return "", err
	}

	var data, computed, methods strings.Builder
	e.globals.Variable.Range(func(name string, v model.Value) bool {
		if err = e.declare(name, "variable"); err != nil {
			return false
		}
		switch {
		case v.Type.IsLiteral():
			data.WriteString(ind3 + propKey(name) + ": " + model.JSLiteral(v.Literal) + ",\n")
		case v.Type == model.TypeVariable:
			computed.WriteString(ind2 + name + "() {\n" + ind3 + "return this." + model.PathExpr(v.Path) + "\n" + ind2 + "},\n")
		case v.Type == model.TypeComputed && v.Func != nil:
			computed.WriteString(method(name, v.Func))
		case v.Type == model.TypeFunction && v.Func != nil:
			methods.WriteString(method(name, v.Func))
		default:
			logger.Warn("skipping variable", "name", name, "type", v.Type)
		}
		return true
	})
	if err != nil {
		return "", err
	}

	for _, h := range e.handlers {
		if err := e.declare(h.Name, "node "+h.Node); err != nil {
			return "", err
		}
		if h.Computed {
			computed.WriteString(method(h.Name, h.Func))
		} else {
			methods.WriteString(method(h.Name, h.Func))
		}
	}

	var hooks strings.Builder
	e.globals.Lifecycle.Range(func(name string, v model.Value) bool {
		if !v.IsCallable() || v.Func == nil || strings.TrimSpace(v.Func.Code) == "" {
			return true
		}
		hook := HookName(name)
		if !setupHook(hook) && hookNames[hook] == "" {
			logger.Warn("unknown lifecycle hook", "name", name)
			return true
		}
		f := *v.Func
		f.CodeVar = nil
		hooks.WriteString(methodAt(ind1, hook, &f))
		return true
	})

	var out strings.Builder
	e.writeImports(&out)
	if exports.Len() > 0 {
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString(exports.String())
	}
	if out.Len() > 0 {
		out.WriteString("\n")
	}
	out.WriteString("export default {\n")
	if data.Len() > 0 {
		out.WriteString(ind1 + "data() {\n" + ind2 + "return {\n" + data.String() + ind2 + "}\n" + ind1 + "},\n")
	}
	if computed.Len() > 0 {
		out.WriteString(ind1 + "computed: {\n" + computed.String() + ind1 + "},\n")
	}
	if methods.Len() > 0 {
		out.WriteString(ind1 + "methods: {\n" + methods.String() + ind1 + "},\n")
	}
	if hooks.Len() > 0 {
		out.WriteString(hooks.String())
	}
	out.WriteString("}\n")
	return out.String(), nil
}

// method renders a method definition nested two levels deep.
func method(name string, f *model.Function) string {
	return methodAt(ind2, name, f)
}

func methodAt(prefix, name string, f *model.Function) string {
	return prefix + asyncPrefix(f) + name + params(f) + " {\n" + indentBlock(f.Code, prefix+ind1) + prefix + "},\n"
}

func propKey(name string) string {
	if model.IsIdent(name) {
		return name
	}
	return model.JSString(name)
}
