package sfc

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestParseDocumentBlocks(t *testing.T) {
	src := `<!-- page -->
<template>
  <div id="app">
    <img src="a.png">
    <p>a &amp; b {{ msg }}</p>
  </div>
</template>
<script setup>
const msg = ref('x < y')
</script>
<style scoped>
.a { color: red; }
</style>
`
	doc, err := ParseDocument("page.vue", src)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if doc.Template == nil || doc.Script == nil || doc.Style == nil {
		t.Fatal("Expected all three blocks")
	}
	if !doc.Script.Has("setup") || !doc.Style.Has("scoped") {
		t.Error("Expected block attributes to be kept")
	}
	if !strings.Contains(doc.Script.Content, "ref('x < y')") {
		t.Errorf("Expected raw script content, got %q", doc.Script.Content)
	}
	if doc.Script.ContentPos.Line != 8 {
		t.Errorf("Expected script content on line 8, got %d", doc.Script.ContentPos.Line)
	}

	var div *Element
	for _, n := range doc.Template.Children {
		if el, ok := n.(*Element); ok {
			div = el
		}
	}
	if div == nil || div.Tag != "div" {
		t.Fatalf("Expected a div, got %#v", doc.Template.Children)
	}
	if a, ok := div.Attr("id"); !ok || a.Value != "app" || a.Pos.Line != 3 {
		t.Errorf("Unexpected id attribute %+v", a)
	}

	var kinds []string
	for _, n := range div.Children {
		switch n := n.(type) {
		case *Element:
			kinds = append(kinds, n.Tag)
			if n.Tag == "p" {
				text, ok := n.Children[0].(*Text)
				if !ok || text.Content != "a & b " {
					t.Errorf("Expected decoded text, got %#v", n.Children[0])
				}
				interp, ok := n.Children[1].(*Interpolation)
				if !ok || interp.Expr != "msg" {
					t.Errorf("Expected interpolation, got %#v", n.Children[1])
				}
			}
		}
	}
	if strings.Join(kinds, ",") != "img,p" {
		t.Errorf("Expected void img then p, got %v", kinds)
	}
}

func TestParseDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		pos  Pos
		msg  string
	}{
		{"text at top level", "hello", Pos{1, 1}, "expected a top-level block"},
		{"unknown block", "\n<div></div>", Pos{2, 1}, "unexpected top-level <div>"},
		{"duplicate script", "<script></script>\n<script></script>", Pos{2, 1}, "duplicate <script> block"},
		{"unterminated comment", "<!-- x", Pos{1, 1}, "unterminated comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument("x.vue", tt.src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("Expected *SyntaxError, got %v", err)
			}
			if se.Pos != tt.pos || se.Msg != tt.msg {
				t.Errorf("Expected %v %q, got %v %q", tt.pos, tt.msg, se.Pos, se.Msg)
			}
			if !strings.HasPrefix(err.Error(), "x.vue:") {
				t.Errorf("Expected file prefix, got %q", err.Error())
			}
		})
	}
}

func TestParseAttributeForms(t *testing.T) {
	doc, err := ParseDocument("x.vue", `<template><x-box disabled a=b :c="1 > 0" @d.stop='go("q")' #e v-model:f.trim="g"/></template>`)
	if err != nil {
		t.Fatal(err)
	}
	el := doc.Template.Children[0].(*Element)
	if !el.SelfClosing {
		t.Error("Expected self-closing element")
	}
	want := []Attr{
		{Name: "disabled"},
		{Name: "a", Value: "b", HasValue: true},
		{Name: ":c", Value: "1 > 0", HasValue: true},
		{Name: "@d.stop", Value: `go("q")`, HasValue: true},
		{Name: "#e"},
		{Name: "v-model:f.trim", Value: "g", HasValue: true},
	}
	if len(el.Attrs) != len(want) {
		t.Fatalf("Expected %d attributes, got %d", len(want), len(el.Attrs))
	}
	for i, a := range el.Attrs {
		a.Pos = Pos{}
		if a != want[i] {
			t.Errorf("Attribute %d: expected %+v, got %+v", i, want[i], a)
		}
	}
}

// shape renders a template tree as tags and quoted text for comparison.
func shape(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n := n.(type) {
		case *Element:
			b.WriteString("<" + n.Tag + ">" + shape(n.Children) + "</" + n.Tag + ">")
		case *Text:
			b.WriteString(strconv.Quote(n.Content))
		case *Interpolation:
			b.WriteString("{{" + n.Expr + "}}")
		}
	}
	return b.String()
}

func TestParseDocumentRecovers(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		tree  string
		diags []string
	}{
		{
			"stray less-than",
			"<template><span>a < b</span></template>",
			`<span>"a < b"</span>`,
			[]string{"1:19: stray < treated as text"},
		},
		{
			"missing close",
			"<template><div><span>a</span></template>",
			`<div><span>"a"</span></div>`,
			[]string{"1:30: missing </div>"},
		},
		{
			"unclosed at end",
			"<template><div><p>x",
			`<div><p>"x"</p></div>`,
			[]string{"1:16: unclosed <p>", "1:11: unclosed <div>", "1:1: unclosed <template>"},
		},
		{
			"mismatched tags",
			"<template><div></span></template>",
			`<div></div>`,
			[]string{"1:16: unexpected </span>", "1:23: missing </div>"},
		},
		{
			"unterminated interpolation",
			"<template>\n  {{ a </template>",
			`"\n  {{ a "`,
			[]string{"2:3: unterminated interpolation"},
		},
		{
			"unterminated attribute",
			`<template><div id="x></div></template>`,
			`<div></div>`,
			[]string{"1:19: unterminated attribute value"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument("x.vue", tt.src)
			if err != nil {
				t.Fatalf("Expected a partial document, got %v", err)
			}
			if got := shape(doc.Template.Children); got != tt.tree {
				t.Errorf("Expected tree %s, got %s", tt.tree, got)
			}
			var got []string
			for _, e := range doc.Errors {
				got = append(got, e.Pos.String()+": "+e.Msg)
			}
			if strings.Join(got, "|") != strings.Join(tt.diags, "|") {
				t.Errorf("Expected errors %v, got %v", tt.diags, got)
			}
		})
	}
}
