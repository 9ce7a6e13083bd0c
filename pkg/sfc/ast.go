package sfc

import "fmt"

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Node is one markup AST node: *Element, *Text, *Interpolation or *Comment.
type Node interface {
	Position() Pos
	markupNode()
}

// Element is a tag with its attributes and children.
type Element struct {
	Tag         string
	Attrs       []Attr
	Children    []Node
	SelfClosing bool
	Pos         Pos
}

// Attr is one attribute as written. Value is entity-decoded.
type Attr struct {
	Name     string
	Value    string
	HasValue bool
	Pos      Pos
}

// Text is static character data, entity-decoded.
type Text struct {
	Content string
	Pos     Pos
}

// Interpolation is a {{ expr }} span.
type Interpolation struct {
	Expr string
	Pos  Pos
}

// Comment is an HTML comment.
type Comment struct {
	Content string
	Pos     Pos
}

func (n *Element) Position() Pos       { return n.Pos }
func (n *Text) Position() Pos          { return n.Pos }
func (n *Interpolation) Position() Pos { return n.Pos }
func (n *Comment) Position() Pos       { return n.Pos }

func (*Element) markupNode()       {}
func (*Text) markupNode()          {}
func (*Interpolation) markupNode() {}
func (*Comment) markupNode()       {}

// Attr returns the attribute with the given name.
func (n *Element) Attr(name string) (Attr, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// Block is a raw top-level block such as <script> or <style>.
type Block struct {
	Tag     string
	Attrs   []Attr
	Content string
	Pos     Pos
	// ContentPos is where Content starts.
	ContentPos Pos
}

// Has reports whether the block carries the attribute.
func (b *Block) Has(name string) bool {
	for _, a := range b.Attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Document is a parsed single-file component.
type Document struct {
	Template *Element
	Script   *Block
	Style    *Block

	// Errors are the markup errors the parser recovered from.
	Errors []*SyntaxError
}
