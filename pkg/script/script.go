// Package script renders the behavior block of a single-file component from
// the page globals and every callable bound in the tree.
package script

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recera/lowcode/pkg/model"
)

var logger = slog.Default().With("component", "script")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l.With("component", "script")
}

// ErrDuplicateIdentifier is returned when two declarations would share a name.
var ErrDuplicateIdentifier = errors.New("duplicate identifier")

// ErrUnknownStyle is returned for an unsupported API style name.
var ErrUnknownStyle = errors.New("unknown script style")

// Style selects the emission strategy.
type Style string

const (
	// Composition emits top-level declarations inside <script setup>.
	Composition Style = "composition"
	// Options emits one exported configuration object.
	Options Style = "options"
)

// ParseStyle parses a style name. The empty string means Composition.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case "", Composition:
		return Composition, nil
	case Options:
		return Options, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStyle, s)
}

// Handler is one callable bound in the tree.
type Handler struct {
	Name     string
	Node     string
	Func     *model.Function
	Computed bool
}

// Handlers collects every callable bound by a node, depth-first: directive
// functions, function-typed attributes, events, then native events. names
// assigns the identifiers; nil means plain HandlerName identifiers.
func Handlers(tree []*model.Node, names *model.HandlerNames) []Handler {
	var out []Handler
	model.Walk(tree, func(n *model.Node, _ int) bool {
		model.EachCallable(n, func(kind, name string, v model.Value) {
			out = append(out, Handler{
				Name:     names.Name(n, kind, name),
				Node:     n.Key,
				Func:     v.Func,
				Computed: v.Type == model.TypeComputed,
			})
		})
		return true
	})
	return out
}

// Generate renders the behavior block for tree and globals.
func Generate(tree []*model.Node, g model.Globals, style Style) (string, error) {
	e := &emitter{
		globals:  g,
		handlers: Handlers(tree, model.NewHandlerNames(tree, g.Declared()...)),
		idents:   map[string]string{},
		vueSeen:  map[string]bool{},
	}
	switch style {
	case "", Composition:
		return e.composition()
	case Options:
		return e.options()
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
}

type emitter struct {
	globals  model.Globals
	handlers []Handler
	idents   map[string]string
	vue      []string
	vueSeen  map[string]bool
}

func (e *emitter) declare(name, origin string) error {
	if prev, ok := e.idents[name]; ok {
		return fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateIdentifier, name, prev, origin)
	}
	e.idents[name] = origin
	return nil
}

// use records a vue helper import.
func (e *emitter) use(name string) string {
	if !e.vueSeen[name] {
		e.vueSeen[name] = true
		e.vue = append(e.vue, name)
	}
	return name
}

func (e *emitter) declareImports() error {
	for _, imp := range e.globals.Import {
		for _, local := range importLocals(imp) {
			if err := e.declare(local, "import "+imp.From); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeImports writes the vue helpers merged with any user import from vue,
// then the remaining user imports in order.
func (e *emitter) writeImports(b *strings.Builder) {
	var rest []model.Import
	var vueNames []model.ImportName
	for _, name := range e.vue {
		vueNames = append(vueNames, model.ImportName{Name: name})
	}
	for _, imp := range e.globals.Import {
		if imp.From == "vue" && imp.Default == "" && imp.Namespace == "" && len(imp.Names) > 0 && len(e.vue) > 0 {
			for _, n := range imp.Names {
				if !e.vueSeen[n.Local()] {
					vueNames = append(vueNames, n)
				}
			}
			continue
		}
		rest = append(rest, imp)
	}
	if len(vueNames) > 0 {
		b.WriteString(renderImport(model.Import{From: "vue", Names: vueNames}))
	}
	for _, imp := range rest {
		b.WriteString(renderImport(imp))
	}
}

func importLocals(imp model.Import) []string {
	var out []string
	if imp.Default != "" {
		out = append(out, imp.Default)
	}
	if imp.Namespace != "" {
		out = append(out, imp.Namespace)
	}
	for _, n := range imp.Names {
		out = append(out, n.Local())
	}
	return out
}

func renderImport(imp model.Import) string {
	var clauses []string
	if imp.Default != "" {
		clauses = append(clauses, imp.Default)
	}
	if imp.Namespace != "" {
		clauses = append(clauses, "* as "+imp.Namespace)
	}
	if len(imp.Names) > 0 {
		names := make([]string, len(imp.Names))
		for i, n := range imp.Names {
			names[i] = n.Name
			if n.Alias != "" && n.Alias != n.Name {
				names[i] += " as " + n.Alias
			}
		}
		clauses = append(clauses, "{ "+strings.Join(names, ", ")+" }")
	}
	if len(clauses) == 0 {
		return "import " + model.JSString(imp.From) + "\n"
	}
	return "import " + strings.Join(clauses, ", ") + " from " + model.JSString(imp.From) + "\n"
}

// indentBlock prefixes every non-blank line of code.
func indentBlock(code, prefix string) string {
	code = strings.Trim(code, "\n")
	if strings.TrimSpace(code) == "" {
		return ""
	}
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}

func params(f *model.Function) string {
	return "(" + strings.Join(f.CodeVar, ", ") + ")"
}

func asyncPrefix(f *model.Function) string {
	if f.Async() {
		return "async "
	}
	return ""
}

// hookNames maps lifecycle names to their registration helpers.
var hookNames = map[string]string{
	"beforeMount":     "onBeforeMount",
	"mounted":         "onMounted",
	"beforeUpdate":    "onBeforeUpdate",
	"updated":         "onUpdated",
	"beforeUnmount":   "onBeforeUnmount",
	"unmounted":       "onUnmounted",
	"activated":       "onActivated",
	"deactivated":     "onDeactivated",
	"errorCaptured":   "onErrorCaptured",
	"renderTracked":   "onRenderTracked",
	"renderTriggered": "onRenderTriggered",
	"serverPrefetch":  "onServerPrefetch",
	"beforeDestroy":   "onBeforeUnmount",
	"destroyed":       "onUnmounted",
}

// HookName normalizes a lifecycle key: "onMounted" and "mounted" are the
// same hook.
func HookName(name string) string {
	if strings.HasPrefix(name, "on") && len(name) > 2 {
		rest := name[2:]
		if lower := strings.ToLower(rest[:1]) + rest[1:]; hookNames[lower] != "" {
			return lower
		}
	}
	return name
}

// setupHook reports hooks that run inline in composition mode.
func setupHook(name string) bool {
	return name == "created" || name == "beforeCreate" || name == "setup"
}

// HookFor returns the lifecycle hook a composition helper registers, so
// "onMounted" gives "mounted".
func HookFor(helper string) (string, bool) {
	if !strings.HasPrefix(helper, "on") {
		return "", false
	}
	hook := HookName(helper)
	if hook == helper || hook == "beforeDestroy" || hook == "destroyed" {
		return "", false
	}
	return hook, true
}

// IsHook reports whether name is a lifecycle hook of the options API.
func IsHook(name string) bool {
	return setupHook(name) || hookNames[name] != ""
}

// IsHelper reports identifiers the composition emitter imports from vue on
// its own.
func IsHelper(name string) bool {
	if name == "ref" || name == "computed" {
		return true
	}
	_, ok := HookFor(name)
	return ok
}
