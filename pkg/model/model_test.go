package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
)

func TestMapKeepsInsertionOrder(t *testing.T) {
	var m Map[int]
	m.Set("zeta", 1)
	m.Set("alpha", 2)
	m.Set("mid", 3)
	m.Set("zeta", 4)

	if got := strings.Join(m.Keys(), ","); got != "zeta,alpha,mid" {
		t.Errorf("Expected insertion order, got %s", got)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"zeta":4,"alpha":2,"mid":3}` {
		t.Errorf("Unexpected JSON %s", data)
	}

	var back Map[int]
	if err := json.Unmarshal([]byte(`{"b":1,"a":2,"c":3}`), &back); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(back.Keys(), ","); got != "b,a,c" {
		t.Errorf("Expected source order b,a,c, got %s", got)
	}

	back.Delete("a")
	if got := strings.Join(back.Keys(), ","); got != "b,c" {
		t.Errorf("Expected b,c after delete, got %s", got)
	}
}

func TestValueDecodeUsesTypeTag(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Value
	}{
		{"string", `{"type":"string","value":"hi"}`, String("hi")},
		{"number", `{"type":"number","value":3}`, Number(3)},
		{"boolean", `{"type":"boolean","value":true}`, Bool(true)},
		{"array literal", `{"type":"array","value":["items"]}`, Array([]any{"items"})},
		{"variable with same shape", `{"type":"variable","value":["items"]}`, Var("items")},
		{"object", `{"type":"object","value":{}}`, Object(map[string]any{})},
		{"null string", `{"type":"string","value":null}`, Null(TypeString)},
		{"function", `{"type":"function","value":{"code":"return a","codeVar":["a"],"functionMode":"function"}}`, Func("return a", "a")},
		{"computed", `{"type":"computed","value":{"code":"return 1","codeVar":[]}}`, Value{Type: TypeComputed, Func: &Function{Code: "return 1", CodeVar: []string{}, FunctionMode: ModeFunction}}},
		{"modifiers", `{"type":"variable","value":["go"],"modifiers":["stop","prevent"]}`, Value{Type: TypeVariable, Path: []string{"go"}, Modifiers: []string{"stop", "prevent"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Value
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("Expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestValueDecodeErrors(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"type":"expression","value":"a+b"}`), &v)
	if !errors.Is(err, ErrUnknownValueType) {
		t.Errorf("Expected ErrUnknownValueType, got %v", err)
	}
	if err := json.Unmarshal([]byte(`{"type":"number","value":"3"}`), &v); err == nil {
		t.Error("Expected error for a number tag carrying a string")
	}
}

func TestValueIsEmpty(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Null(TypeString), true},
		{Object(map[string]any{}), true},
		{Array([]any{}), true},
		{String(""), false},
		{Bool(false), false},
		{Var(), true},
		{Var("a"), false},
	}
	for i, tt := range tests {
		if got := tt.v.IsEmpty(); got != tt.want {
			t.Errorf("case %d: IsEmpty() = %v, want %v", i, got, tt.want)
		}
	}
}

func TestStyleCompactRestore(t *testing.T) {
	s := DefaultStyle()
	c, err := Compact(s)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected default style to compact to nothing, got %v", c.Keys())
	}

	s.Opacity = "50"
	s.Margin = [4]string{"4", "0", "4", "0"}
	s.Units["margin"] = "rem"
	s.CustomCSS.Set("z-index", "3")
	s.Extra.Set("width", "120")

	c, err = Compact(s)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(c.Keys(), ","); got != "opacity,margin,units,customCss,width" {
		t.Errorf("Unexpected compact keys %s", got)
	}

	back, err := Restore(c)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, s) {
		t.Errorf("Restore(Compact(s)) != s:\n got %#v\nwant %#v", back, s)
	}
}

func TestStyleCompactRestoreRandom(t *testing.T) {
	f := gofakeit.New(42)
	for i := 0; i < 50; i++ {
		s := DefaultStyle()
		if f.Bool() {
			s.Opacity = f.Numerify("##")
		}
		if f.Bool() {
			s.Rotate = f.Numerify("#")
		}
		if f.Bool() {
			s.Padding[f.IntRange(0, 3)] = f.Numerify("#")
		}
		if f.Bool() {
			s.ConstX = f.RandomString([]string{"left", "right", "center", "leftRight"})
			s.MoveX = f.Numerify("##")
		}
		if f.Bool() {
			s.Background = Toggle{IsShow: true, ModelValue: f.HexColor()}
		}
		if f.Bool() {
			s.BoxShadow = append(s.BoxShadow, Shadow{IsShow: true, X: "1", Y: "2", Blur: "3", Color: f.HexColor()})
		}
		if f.Bool() {
			s.Extra.Set("fontSize", f.Numerify("##"))
		}

		c, err := Compact(s)
		if err != nil {
			t.Fatal(err)
		}
		data, err := json.Marshal(c)
		if err != nil {
			t.Fatal(err)
		}
		var decoded CompactStyle
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatal(err)
		}
		back, err := Restore(decoded)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(back, s) {
			t.Fatalf("iteration %d: restore mismatch\n got %#v\nwant %#v", i, back, s)
		}
	}
}

func TestNodeJSONRoundTrip(t *testing.T) {
	n := NewNode("ElButton")
	n.Attrs.Set("type", String("primary"))
	n.Attrs.Set("disabled", Var("form", "locked"))
	n.On.Set("click", Func("console.log(e)", "e"))
	n.Directives.For = &ForDirective{Value: Var("items"), DataKey: "row", IDKey: "i"}
	n.CSS.Opacity = "80"
	n.Slots.Set("default", &Slot{Children: []*Node{NewNode("span")}})

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"css":{"opacity":"80"}`) {
		t.Errorf("Expected compact css in %s", data)
	}

	var back Node
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Key != n.Key || back.ID != n.ID {
		t.Errorf("Expected key/id to survive, got %s/%s", back.Key, back.ID)
	}
	if back.CSS.Opacity != "80" || back.CSS.ConstX != "left" {
		t.Errorf("Expected restored css, got %#v", back.CSS)
	}
	if got := strings.Join(back.Attrs.Keys(), ","); got != "type,disabled" {
		t.Errorf("Expected attr order type,disabled, got %s", got)
	}
	item, index := back.Directives.For.Aliases()
	if item != "row" || index != "i" {
		t.Errorf("Expected aliases row/i, got %s/%s", item, index)
	}
	if len(back.Children()) != 1 {
		t.Errorf("Expected 1 child, got %d", len(back.Children()))
	}
}

func TestNodeDecodeFillsKey(t *testing.T) {
	var n Node
	if err := json.Unmarshal([]byte(`{"name":"div","id":"abc"}`), &n); err != nil {
		t.Fatal(err)
	}
	if n.Key != "abc" {
		t.Errorf("Expected key copied from id, got %q", n.Key)
	}
	if n.Animations.Enter == nil || n.Animations.Interaction == nil {
		t.Error("Expected animations to be ensured")
	}

	var fresh Node
	if err := json.Unmarshal([]byte(`{"name":"div"}`), &fresh); err != nil {
		t.Fatal(err)
	}
	if fresh.Key == "" || fresh.Key != fresh.ID {
		t.Errorf("Expected generated key == id, got %q/%q", fresh.Key, fresh.ID)
	}
}

func TestSlotInsertRespectsAllowList(t *testing.T) {
	form := NewNode("ElForm")
	form.Slots.Set("default", &Slot{AllowComps: []string{"ElFormItem"}, Children: []*Node{}})

	if err := form.Insert("default", 0, NewNode("ElButton")); !errors.Is(err, ErrSlotRejected) {
		t.Errorf("Expected ErrSlotRejected, got %v", err)
	}
	item := NewNode("ElFormItem")
	if err := form.Insert("default", -1, item); err != nil {
		t.Fatalf("Expected insert to succeed: %v", err)
	}
	if err := form.Insert("footer", 0, NewNode("span")); !errors.Is(err, ErrNoSlot) {
		t.Errorf("Expected ErrNoSlot, got %v", err)
	}

	if form.Find(item.Key) != item {
		t.Error("Expected Find to locate inserted child")
	}
	if !form.Remove(item.Key) {
		t.Error("Expected Remove to report removal")
	}
	if form.Find(item.Key) != nil {
		t.Error("Expected child to be gone")
	}
}

func TestCloneIsDeep(t *testing.T) {
	n := NewNode("div")
	n.Attrs.Set("data", Object(map[string]any{"a": []any{1.0}}))
	n.Slots.Set("default", &Slot{Children: []*Node{NewNode("span")}})

	c := n.Clone()
	c.Attrs.Set("data", String("changed"))
	c.Children()[0].Name = "p"

	v, _ := n.Attrs.Get("data")
	if v.Type != TypeObject {
		t.Error("Expected original attrs untouched")
	}
	if n.Children()[0].Name != "span" {
		t.Error("Expected original children untouched")
	}
}

func TestYAMLPageRoundTrip(t *testing.T) {
	src := `
name: home
tree:
  - name: ElInput
    key: kinput
    attrs:
      placeholder: {type: string, value: "100"}
      modelValue: {type: variable, value: [form, name]}
      clearable: {type: boolean, value: true}
globals:
  variable:
    form: {type: object, value: {name: ""}}
    count: {type: number, value: 1}
`
	p, err := Decode([]byte(src), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Tree) != 1 || p.Tree[0].Key != "kinput" {
		t.Fatalf("Unexpected tree %#v", p.Tree)
	}
	ph, _ := p.Tree[0].Attrs.Get("placeholder")
	if ph.Literal != "100" {
		t.Errorf("Expected quoted YAML scalar to stay a string, got %#v", ph.Literal)
	}
	if got := strings.Join(p.Globals.Variable.Keys(), ","); got != "form,count" {
		t.Errorf("Expected variable order form,count, got %s", got)
	}

	out, err := Encode(p, FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	again, err := Decode(out, FormatYAML)
	if err != nil {
		t.Fatalf("re-decode: %v\n%s", err, out)
	}
	ph2, _ := again.Tree[0].Attrs.Get("placeholder")
	if !Equal(ph, ph2) {
		t.Errorf("Expected placeholder to survive YAML round trip, got %#v", ph2)
	}
}

func TestNaming(t *testing.T) {
	tests := []struct{ in, kebab string }{
		{"ElButton", "el-button"},
		{"HTMLEditor", "html-editor"},
		{"div", "div"},
		{"GhostWidget", "ghost-widget"},
	}
	for _, tt := range tests {
		if got := KebabCase(tt.in); got != tt.kebab {
			t.Errorf("KebabCase(%q) = %q, want %q", tt.in, got, tt.kebab)
		}
	}
	if got := PascalCase("el-button"); got != "ElButton" {
		t.Errorf("PascalCase = %q", got)
	}
	if got := CamelCase("model-value"); got != "modelValue" {
		t.Errorf("CamelCase = %q", got)
	}
	if got := HandlerName("k1", HandlerEvent, "update:count"); got != "k1_update_count" {
		t.Errorf("HandlerName = %q", got)
	}
	if got := HandlerName("k1", HandlerNative, "click"); got != "k1_native_click" {
		t.Errorf("HandlerName native = %q", got)
	}
}
