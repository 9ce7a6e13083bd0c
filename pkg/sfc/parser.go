package sfc

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/recera/lowcode/pkg/markup"
)

// SyntaxError is a positioned document parse error.
type SyntaxError struct {
	File string
	Pos  Pos
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Pos.Line, e.Pos.Col, e.Msg)
}

// Parser is a recursive descent parser for single-file components. Markup
// errors inside the template are recovered and recorded on the document;
// only malformed top-level structure fails the parse.
type Parser struct {
	input    string
	pos      int
	line     int
	col      int
	filename string

	open []string
	errs []*SyntaxError
}

// NewParser creates a new document parser
func NewParser(filename, input string) *Parser {
	return &Parser{
		input:    input,
		line:     1,
		col:      1,
		filename: filename,
	}
}

// ParseDocument parses src into its template, script and style blocks.
func ParseDocument(filename, src string) (*Document, error) {
	return NewParser(filename, src).Parse()
}

// Parse parses the entire document
func (p *Parser) Parse() (*Document, error) {
	doc := &Document{}
	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			doc.Errors = p.errs
			return doc, nil
		}
		if p.peek("<!--") {
			if _, err := p.parseComment(); err != nil {
				return nil, err
			}
			continue
		}
		start := p.position()
		if !p.consume("<") {
			return nil, p.error("expected a top-level block")
		}
		tag := p.parseTagName()
		attrs, selfClosing := p.parseAttributes()

		switch tag {
		case "template":
			if doc.Template != nil {
				return nil, p.errorAt(start, "duplicate <template> block")
			}
			el := &Element{Tag: tag, Attrs: attrs, SelfClosing: selfClosing, Pos: start}
			if !selfClosing {
				p.parseChildren(el)
			}
			doc.Template = el
		case "script", "style":
			b := &Block{Tag: tag, Attrs: attrs, Pos: start, ContentPos: p.position()}
			if !selfClosing {
				b.Content = p.parseRawText(tag)
			}
			if tag == "script" {
				if doc.Script != nil {
					return nil, p.errorAt(start, "duplicate <script> block")
				}
				doc.Script = b
			} else {
				if doc.Style != nil {
					return nil, p.errorAt(start, "duplicate <style> block")
				}
				doc.Style = b
			}
		default:
			return nil, p.errorAt(start, fmt.Sprintf("unexpected top-level <%s>", tag))
		}
	}
}

// report records a markup error the parser worked around.
func (p *Parser) report(pos Pos, msg string) {
	p.errs = append(p.errs, &SyntaxError{File: p.filename, Pos: pos, Msg: msg})
}

type mark struct{ pos, line, col int }

func (p *Parser) mark() mark { return mark{p.pos, p.line, p.col} }

func (p *Parser) reset(m mark) { p.pos, p.line, p.col = m.pos, m.line, m.col }

// parseNodes parses a sequence of markup nodes up to a closing tag or EOF
func (p *Parser) parseNodes() []Node {
	var nodes []Node

	for p.pos < len(p.input) {
		switch {
		case p.peek("<!--"):
			node, err := p.parseComment()
			if err != nil {
				p.report(node.Pos, "unterminated comment")
			}
			nodes = append(nodes, node)
		case p.peek("</"):
			return nodes
		case p.peek("{{") && p.closes():
			nodes = append(nodes, p.parseInterpolation())
		case p.tagStart():
			nodes = append(nodes, p.parseElement())
		default:
			if node := p.parseText(); node != nil {
				nodes = append(nodes, node)
			}
		}
	}

	return nodes
}

// tagStart reports whether the input is at an opening tag.
func (p *Parser) tagStart() bool {
	if !p.peek("<") || p.pos+1 >= len(p.input) {
		return false
	}
	ch := p.input[p.pos+1]
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

// closes reports whether an interpolation opened here is terminated.
func (p *Parser) closes() bool {
	return strings.Contains(p.input[p.pos+2:], "}}")
}

// parseComment reads a comment. An unterminated comment runs to EOF and is
// returned together with the error.
func (p *Parser) parseComment() (*Comment, error) {
	start := p.position()
	p.consume("<!--")
	content := p.parseUntil("-->")
	c := &Comment{Content: content, Pos: start}
	if !p.consume("-->") {
		return c, p.errorAt(start, "unterminated comment")
	}
	return c, nil
}

func (p *Parser) parseInterpolation() *Interpolation {
	start := p.position()
	p.consume("{{")
	content := p.parseUntil("}}")
	p.consume("}}")
	return &Interpolation{Expr: strings.TrimSpace(content), Pos: start}
}

// parseElement parses an element and its children
func (p *Parser) parseElement() *Element {
	start := p.position()
	p.consume("<")
	tag := p.parseTagName()

	attrs, selfClosing := p.parseAttributes()
	el := &Element{Tag: tag, Attrs: attrs, SelfClosing: selfClosing, Pos: start}
	if selfClosing || markup.IsVoid(tag) {
		return el
	}

	if tag == "script" || tag == "style" {
		el.Children = []Node{&Text{Content: p.parseRawText(tag), Pos: start}}
		return el
	}

	p.parseChildren(el)
	return el
}

// parseChildren parses el's content and its closing tag. A missing close is
// assumed when the input ends or when an enclosing element closes first; a
// close tag matching nothing open is dropped.
func (p *Parser) parseChildren(el *Element) {
	p.open = append(p.open, el.Tag)
	defer func() { p.open = p.open[:len(p.open)-1] }()

	for {
		el.Children = append(el.Children, p.parseNodes()...)
		if p.pos >= len(p.input) {
			p.report(el.Pos, fmt.Sprintf("unclosed <%s>", el.Tag))
			return
		}

		start, m := p.position(), p.mark()
		p.consume("</")
		closing := p.parseTagName()
		switch {
		case closing == el.Tag:
			p.skipWhitespace()
			if !p.consume(">") {
				p.report(p.position(), "expected >")
			}
			return
		case p.isOpen(closing):
			p.reset(m)
			p.report(start, fmt.Sprintf("missing </%s>", el.Tag))
			return
		default:
			p.parseUntil(">")
			p.consume(">")
			p.report(start, fmt.Sprintf("unexpected </%s>", closing))
		}
	}
}

func (p *Parser) isOpen(tag string) bool {
	for _, t := range p.open {
		if t == tag {
			return true
		}
	}
	return false
}

// parseRawText reads everything up to </tag> without interpreting it.
func (p *Parser) parseRawText(tag string) string {
	start := p.position()
	content := p.parseUntil("</" + tag)
	if p.pos >= len(p.input) {
		p.report(start, fmt.Sprintf("unterminated <%s>", tag))
		return content
	}
	p.consume("</")
	p.parseTagName()
	p.skipWhitespace()
	if !p.consume(">") {
		p.report(p.position(), "expected >")
	}
	return content
}

// parseAttributes parses attributes up to and including the end of the
// opening tag
func (p *Parser) parseAttributes() ([]Attr, bool) {
	var attrs []Attr

	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) {
			p.report(p.position(), "unterminated tag")
			return attrs, false
		}
		if p.consume("/>") {
			return attrs, true
		}
		if p.consume(">") {
			return attrs, false
		}

		start := p.position()
		name := p.parseAttributeName()
		if name == "" {
			p.report(start, fmt.Sprintf("unexpected %q in tag", p.input[p.pos]))
			p.advance()
			continue
		}
		a := Attr{Name: name, Pos: start}

		p.skipWhitespace()
		if p.consume("=") {
			p.skipWhitespace()
			a.Value, a.HasValue = html.UnescapeString(p.parseAttributeValue()), true
		}
		attrs = append(attrs, a)
	}
}

// parseAttributeValue reads a quoted or bare value. A quoted value missing
// its closing quote ends at the next '>'.
func (p *Parser) parseAttributeValue() string {
	start := p.position()
	for _, q := range []string{`"`, `'`} {
		if p.consume(q) {
			m := p.mark()
			value := p.parseUntil(q)
			if p.consume(q) {
				return value
			}
			p.report(start, "unterminated attribute value")
			p.reset(m)
			return p.parseUntil(">")
		}
	}
	begin := p.pos
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if unicode.IsSpace(rune(ch)) || ch == '>' || p.peek("/>") {
			break
		}
		p.advance()
	}
	if p.pos == begin {
		p.report(start, "expected attribute value")
	}
	return p.input[begin:p.pos]
}

// parseText parses character data until the next markup construct. A '<'
// that opens no tag and a '{{' that is never closed are kept as text.
func (p *Parser) parseText() *Text {
	start := p.position()
	begin := p.pos

scan:
	for p.pos < len(p.input) {
		switch {
		case p.peek("{{"):
			if p.closes() {
				break scan
			}
			p.report(p.position(), "unterminated interpolation")
			p.consume("{{")
			continue
		case p.peek("</"), p.peek("<!--"), p.tagStart():
			break scan
		case p.peek("<"):
			p.report(p.position(), "stray < treated as text")
		}
		p.advance()
	}
	if p.pos > begin {
		return &Text{Content: html.UnescapeString(p.input[begin:p.pos]), Pos: start}
	}
	return nil
}

// Helper methods

func (p *Parser) peek(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *Parser) consume(s string) bool {
	if p.peek(s) {
		for i := 0; i < len(s); i++ {
			p.advance()
		}
		return true
	}
	return false
}

func (p *Parser) advance() {
	if p.pos < len(p.input) {
		if p.input[p.pos] == '\n' {
			p.line++
			p.col = 1
		} else {
			p.col++
		}
		p.pos++
	}
}

func (p *Parser) skipWhitespace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.advance()
	}
}

func (p *Parser) parseUntil(delimiter string) string {
	start := p.pos

	for p.pos < len(p.input) {
		if p.peek(delimiter) {
			return p.input[start:p.pos]
		}
		p.advance()
	}

	return p.input[start:p.pos]
}

func (p *Parser) parseTagName() string {
	start := p.pos

	// Parse tag name (letters, digits, hyphens)
	for p.pos < len(p.input) {
		ch := rune(p.input[p.pos])
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '-' && ch != '_' && ch != '.' {
			break
		}
		p.advance()
	}

	return p.input[start:p.pos]
}

// parseAttributeName reads a name up to whitespace, '=', or the end of the tag.
// Directive punctuation (@ : # . [ ]) is part of the name.
func (p *Parser) parseAttributeName() string {
	start := p.pos

	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if unicode.IsSpace(rune(ch)) || ch == '=' || ch == '>' || ch == '"' || ch == '\'' || p.peek("/>") {
			break
		}
		p.advance()
	}

	return p.input[start:p.pos]
}

func (p *Parser) position() Pos {
	return Pos{Line: p.line, Col: p.col}
}

func (p *Parser) error(msg string) error {
	return p.errorAt(p.position(), msg)
}

func (p *Parser) errorAt(pos Pos, msg string) error {
	return &SyntaxError{File: p.filename, Pos: pos, Msg: msg}
}
