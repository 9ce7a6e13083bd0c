package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/recera/lowcode/pkg/model"
)

//go:embed builtin.yaml
var builtinYAML []byte

// PropSpec declares one property of a component.
type PropSpec struct {
	// Type is the value type the property takes.
	Type model.ValueType `json:"type" validate:"required,oneof=string number boolean object array variable function computed"`
	// Default is the literal used when a node is created. May be nil.
	Default any `json:"default,omitempty"`
}

// Component is the capability record of one component type.
type Component struct {
	Name  string                 `json:"name" validate:"required"`
	Props model.Map[PropSpec]    `json:"props"`
	Emits []string               `json:"emits,omitempty" validate:"dive,required"`
	Slots model.Map[*model.Slot] `json:"slots"`
}

// Prop returns the declared spec of a property.
func (c *Component) Prop(name string) (PropSpec, bool) {
	return c.Props.Get(name)
}

// Emit reports whether the component declares the event.
func (c *Component) Emit(event string) bool {
	return slices.Contains(c.Emits, event)
}

type file struct {
	Components []*Component `json:"components" validate:"dive"`
}

// Registry is the read-only catalog of known component types. It is passed
// explicitly to every pass that needs it.
type Registry struct {
	byName map[string]*Component
	order  []string
}

var validate = validator.New()

// Empty returns a registry with no components. Every lookup misses, so all
// consumers fall back to their permissive defaults.
func Empty() *Registry {
	return &Registry{byName: map[string]*Component{}}
}

// Builtin returns the registry embedded in the binary.
func Builtin() *Registry {
	r, err := Parse(builtinYAML)
	if err != nil {
		panic(fmt.Sprintf("registry: builtin catalog: %v", err))
	}
	return r
}

// Load reads a registry YAML (or JSON) file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse reads a registry document. YAML is accepted; JSON is a subset of it.
func Parse(data []byte) (*Registry, error) {
	j, err := model.YAMLToJSON(data)
	if err != nil {
		return nil, err
	}
	var f file
	if err := json.Unmarshal(j, &f); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	r := Empty()
	for _, c := range f.Components {
		var perr error
		c.Props.Range(func(name string, p PropSpec) bool {
			if err := validate.Struct(p); err != nil {
				perr = fmt.Errorf("registry: %s.%s: %w", c.Name, name, err)
				return false
			}
			if _, err := p.value(); err != nil {
				perr = fmt.Errorf("registry: %s.%s default: %w", c.Name, name, err)
				return false
			}
			return true
		})
		if perr != nil {
			return nil, perr
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate component %s", c.Name)
		}
		r.byName[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	return r, nil
}

// Names returns the registered component names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Lookup finds a component by name. The kebab form of a registered name also
// matches. Unknown names return ok=false.
func (r *Registry) Lookup(name string) (*Component, bool) {
	if r == nil {
		return nil, false
	}
	if c, ok := r.byName[name]; ok {
		return c, true
	}
	if c, ok := r.byName[model.PascalCase(name)]; ok {
		return c, true
	}
	return nil, false
}

// AcceptsFunction reports whether the declared prop takes a callable.
func (r *Registry) AcceptsFunction(component, prop string) bool {
	c, ok := r.Lookup(component)
	if !ok {
		return false
	}
	p, ok := c.Prop(prop)
	return ok && p.Type == model.TypeFunction
}

// Emits reports whether the component declares the event.
func (r *Registry) Emits(component, event string) bool {
	c, ok := r.Lookup(component)
	return ok && c.Emit(event)
}

// value builds the initial attribute for the prop: its default when set,
// otherwise a null of the declared type.
func (p PropSpec) value() (model.Value, error) {
	if p.Default == nil {
		return model.Null(p.Type), nil
	}
	raw, err := json.Marshal(map[string]any{"type": p.Type, "value": p.Default})
	if err != nil {
		return model.Value{}, err
	}
	var v model.Value
	err = json.Unmarshal(raw, &v)
	return v, err
}

// NewNode creates a node of the named component: fresh key/id, attributes
// seeded from the declared props, canonical empty on/nativeOn/directives,
// animations and css, and a deep copy of the slot template. Unknown names get
// no attributes and a single unrestricted default slot.
func (r *Registry) NewNode(name string) *model.Node {
	n := model.NewNode(name)
	c, ok := r.Lookup(name)
	if !ok {
		n.Slots.Set("default", &model.Slot{Children: []*model.Node{}})
		return n
	}
	c.Props.Range(func(prop string, p PropSpec) bool {
		v, _ := p.value()
		n.Attrs.Set(prop, v)
		return true
	})
	c.Slots.Range(func(slot string, tmpl *model.Slot) bool {
		s := &model.Slot{Children: []*model.Node{}}
		if tmpl != nil {
			s.AllowComps = append([]string(nil), tmpl.AllowComps...)
			for _, child := range tmpl.Children {
				cp := child.Clone()
				cp.Rekey()
				s.Children = append(s.Children, cp)
			}
		}
		n.Slots.Set(slot, s)
		return true
	})
	return n
}
