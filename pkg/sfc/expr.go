package sfc

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

var errNotLiteral = errors.New("not a literal")

// parseExpr parses a single binding expression.
func parseExpr(src string) (js.IExpr, error) {
	ast, err := js.Parse(parse.NewInputString("("+src+"\n)"), js.Options{})
	if err != nil {
		return nil, err
	}
	if len(ast.List) != 1 {
		return nil, errors.New("expected a single expression")
	}
	stmt, ok := ast.List[0].(*js.ExprStmt)
	if !ok {
		return nil, errors.New("expected an expression")
	}
	return unwrap(stmt.Value), nil
}

func unwrap(e js.IExpr) js.IExpr {
	for {
		g, ok := e.(*js.GroupExpr)
		if !ok {
			return e
		}
		e = g.X
	}
}

// exprPath returns the member path of an identifier chain such as
// user.tags[0]. A leading `this` is kept as the first segment.
func exprPath(e js.IExpr) ([]string, bool) {
	switch x := unwrap(e).(type) {
	case *js.Var:
		return []string{x.String()}, true
	case *js.LiteralExpr:
		if x.TokenType == js.ThisToken {
			return []string{"this"}, true
		}
	case *js.DotExpr:
		if x.Optional {
			return nil, false
		}
		base, ok := exprPath(x.X)
		if !ok {
			return nil, false
		}
		return append(base, string(x.Y.Data)), true
	case *js.IndexExpr:
		if x.Optional {
			return nil, false
		}
		base, ok := exprPath(x.X)
		if !ok {
			return nil, false
		}
		if lit, ok := unwrap(x.Y).(*js.LiteralExpr); ok {
			switch lit.TokenType {
			case js.StringToken:
				s, err := unquote(string(lit.Data))
				if err == nil {
					return append(base, s), true
				}
			case js.IntegerToken, js.DecimalToken:
				return append(base, string(lit.Data)), true
			}
		}
	}
	return nil, false
}

// literal converts a literal expression tree to its Go form: string,
// float64, bool, nil, []any or map[string]any.
func literal(e js.IExpr) (any, error) {
	switch x := unwrap(e).(type) {
	case *js.LiteralExpr:
		switch x.TokenType {
		case js.StringToken:
			return unquote(string(x.Data))
		case js.TrueToken:
			return true, nil
		case js.FalseToken:
			return false, nil
		case js.NullToken:
			return nil, nil
		case js.IntegerToken, js.DecimalToken:
			return strconv.ParseFloat(strings.ReplaceAll(string(x.Data), "_", ""), 64)
		}
	case *js.UnaryExpr:
		if x.Op == js.NegToken || x.Op == js.PosToken {
			v, err := literal(x.X)
			if f, ok := v.(float64); ok && err == nil {
				if x.Op == js.NegToken {
					f = -f
				}
				return f, nil
			}
		}
	case *js.ArrayExpr:
		out := make([]any, 0, len(x.List))
		for _, el := range x.List {
			if el.Value == nil || el.Spread {
				return nil, errNotLiteral
			}
			v, err := literal(el.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *js.ObjectExpr:
		out := make(map[string]any, len(x.List))
		for _, p := range x.List {
			if p.Name == nil || p.Spread || p.Init != nil || p.Name.IsComputed() {
				return nil, errNotLiteral
			}
			key, err := propName(p.Name)
			if err != nil {
				return nil, err
			}
			v, err := literal(p.Value)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	}
	return nil, errNotLiteral
}

// propKey returns the key of an object entry. Method shorthand such as
// `mounted() {}` carries its name on the method rather than the property.
func propKey(p js.Property) (string, bool) {
	if p.Spread {
		return "", false
	}
	n := p.Name
	if n == nil {
		m, ok := p.Value.(*js.MethodDecl)
		if !ok {
			return "", false
		}
		n = &m.Name
	}
	if n.IsComputed() {
		return "", false
	}
	key, err := propName(n)
	return key, err == nil
}

func propName(n *js.PropertyName) (string, error) {
	if n.Literal.TokenType == js.StringToken {
		return unquote(string(n.Literal.Data))
	}
	return string(n.Literal.Data), nil
}

// unquote decodes a single- or double-quoted script string literal.
func unquote(s string) (string, error) {
	if len(s) < 2 || (s[0] != '\'' && s[0] != '"') || s[len(s)-1] != s[0] {
		return "", errNotLiteral
	}
	body := s[1 : len(s)-1]
	if !strings.Contains(body, `\`) {
		return body, nil
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 == len(body) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case 'u':
			if i+4 < len(body) {
				if r, err := strconv.ParseUint(body[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteByte('u')
		case '\n':
			// line continuation
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String(), nil
}

// source prints a node back to script text.
func source(n js.INode) string {
	var b strings.Builder
	n.JS(&b)
	return b.String()
}

// bodyText prints a statement list, one statement per line.
func bodyText(list []js.IStmt) string {
	lines := make([]string, 0, len(list))
	for _, stmt := range list {
		s := source(stmt)
		if _, ok := stmt.(*js.VarDecl); ok {
			s += ";"
		}
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n")
}

// paramNames prints each parameter of a function.
func paramNames(p js.Params) []string {
	var out []string
	for _, el := range p.List {
		out = append(out, source(el))
	}
	if p.Rest != nil {
		out = append(out, "..."+source(p.Rest))
	}
	return out
}
