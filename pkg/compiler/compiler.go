// Package compiler converts between page models and single-file component
// documents.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recera/lowcode/pkg/markup"
	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/registry"
	"github.com/recera/lowcode/pkg/script"
	"github.com/recera/lowcode/pkg/sfc"
	"github.com/recera/lowcode/pkg/style"
)

var logger = slog.Default().With("component", "compiler")

// SetLogger replaces the logger of this package and of every pass it drives.
func SetLogger(l *slog.Logger) {
	logger = l.With("component", "compiler")
	script.SetLogger(l)
	sfc.SetLogger(l)
}

// ErrNilPage is returned when Generate is given no page.
var ErrNilPage = errors.New("nil page")

// Options configure generation.
type Options struct {
	// Style selects the script API style. Defaults to composition.
	Style script.Style
	Class markup.ClassMode
	// Minify compacts the style block.
	Minify bool
	// DOMSize reports rendered node sizes when the host tracks them.
	DOMSize func(key string) (width, height float64, ok bool)
	// Registry is consulted for component names; nil means no catalog.
	Registry *registry.Registry
}

// Output is a generated document, block by block.
type Output struct {
	Markup string
	Script string
	Style  string
	API    script.Style
}

// Generate renders the three blocks of a page.
func Generate(p *model.Page, opts Options) (*Output, error) {
	if p == nil {
		return nil, ErrNilPage
	}
	if opts.Style == "" {
		opts.Style = script.Composition
	}

	model.Walk(p.Tree, func(n *model.Node, _ int) bool {
		if opts.Registry != nil {
			if _, ok := opts.Registry.Lookup(n.Name); !ok && !markup.IsNative(n.Name) {
				logger.Debug("unregistered component", "name", n.Name, "key", n.Key)
			}
		}
		return true
	})

	m, err := markup.Generate(p.Tree, markup.Options{Class: opts.Class, DOMSize: opts.DOMSize, Reserved: p.Globals.Declared()})
	if err != nil {
		return nil, fmt.Errorf("markup: %w", err)
	}
	s, err := script.Generate(p.Tree, p.Globals, opts.Style)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}

	out := &Output{Markup: m, Script: s, API: opts.Style}
	if opts.Class != markup.ClassNever {
		sheet := style.NewSheet()
		sheet.AddTree(p.Tree, style.Options{DOMSize: opts.DOMSize})
		out.Style = sheet.String()
		if opts.Minify && out.Style != "" {
			if out.Style, err = style.Minify(out.Style); err != nil {
				return nil, fmt.Errorf("style: %w", err)
			}
		}
	}
	return out, nil
}

// Document assembles the blocks into one file. Empty blocks are left out.
func (o *Output) Document() string {
	var b strings.Builder
	b.WriteString("<template>\n")
	b.WriteString(o.Markup)
	b.WriteString("</template>\n")
	if o.Script != "" {
		if o.API == script.Options {
			b.WriteString("\n<script>\n")
		} else {
			b.WriteString("\n<script setup>\n")
		}
		b.WriteString(o.Script)
		b.WriteString("</script>\n")
	}
	if o.Style != "" {
		b.WriteString("\n<style scoped>\n")
		b.WriteString(o.Style)
		if !strings.HasSuffix(o.Style, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("</style>\n")
	}
	return b.String()
}

// Parse reads a document back into a page. Diagnostics list what was
// skipped; only malformed markup is an error.
func Parse(filename, src string, reg *registry.Registry) (*model.Page, []sfc.Diagnostic, error) {
	res, err := sfc.Parse(filename, src, reg)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range res.Diagnostics {
		logger.Warn("parse diagnostic", "file", filename, "pos", d.Pos.String(), "msg", d.Msg)
	}
	return &model.Page{Tree: res.Tree, Globals: res.Globals}, res.Diagnostics, nil
}

// ParseStyle reports the script API style a document was written in.
func ParseStyle(filename, src string) (script.Style, error) {
	doc, err := sfc.ParseDocument(filename, src)
	if err != nil {
		return "", err
	}
	if doc.Script == nil || doc.Script.Has("setup") {
		return script.Composition, nil
	}
	return script.Options, nil
}
