package model

// ImportName is one named binding of an import declaration.
type ImportName struct {
	Name  string `json:"name" yaml:"name"`
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// Local returns the identifier the import binds locally.
func (n ImportName) Local() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// Import is one import declaration of the page script.
type Import struct {
	From      string       `json:"from"`
	Default   string       `json:"default,omitempty"`
	Namespace string       `json:"namespace,omitempty"`
	Names     []ImportName `json:"names,omitempty"`
}

// Globals is the page-level state shared by every node.
type Globals struct {
	Import    []Import         `json:"import"`
	Export    Map[Value]       `json:"export"`
	Lifecycle Map[Value]       `json:"lifecycle"`
	Variable  Map[Value]       `json:"variable"`
	Actions   []map[string]any `json:"actions"`
}

// Declared returns every identifier the page script declares: import
// bindings, exports and variables.
func (g Globals) Declared() []string {
	var out []string
	for _, imp := range g.Import {
		if imp.Default != "" {
			out = append(out, imp.Default)
		}
		if imp.Namespace != "" {
			out = append(out, imp.Namespace)
		}
		for _, n := range imp.Names {
			out = append(out, n.Local())
		}
	}
	out = append(out, g.Export.Keys()...)
	return append(out, g.Variable.Keys()...)
}

// Merge overlays delta onto g. Entries of delta win; imports are appended
// unless an identical one exists.
func (g *Globals) Merge(delta Globals) {
	for _, imp := range delta.Import {
		if !g.hasImport(imp) {
			g.Import = append(g.Import, imp)
		}
	}
	delta.Export.Range(func(k string, v Value) bool { g.Export.Set(k, v); return true })
	delta.Lifecycle.Range(func(k string, v Value) bool { g.Lifecycle.Set(k, v); return true })
	delta.Variable.Range(func(k string, v Value) bool { g.Variable.Set(k, v); return true })
	g.Actions = append(g.Actions, delta.Actions...)
}

func (g *Globals) hasImport(imp Import) bool {
	for _, have := range g.Import {
		if have.From != imp.From || have.Default != imp.Default || have.Namespace != imp.Namespace || len(have.Names) != len(imp.Names) {
			continue
		}
		same := true
		for i := range have.Names {
			if have.Names[i] != imp.Names[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

// Page is a full page document: the node forest plus its globals.
type Page struct {
	Name    string  `json:"name,omitempty"`
	Tree    []*Node `json:"tree"`
	Globals Globals `json:"globals"`
}

// Find returns the node with the given key anywhere in the page.
func (p *Page) Find(key string) *Node {
	for _, n := range p.Tree {
		if f := n.Find(key); f != nil {
			return f
		}
	}
	return nil
}

// Remove detaches the node with the given key from the page.
func (p *Page) Remove(key string) bool {
	for i, n := range p.Tree {
		if n.Key == key {
			p.Tree = append(p.Tree[:i:i], p.Tree[i+1:]...)
			return true
		}
		if n.Remove(key) {
			return true
		}
	}
	return false
}
