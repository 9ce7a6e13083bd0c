package style

import (
	"strings"
	"testing"

	"github.com/recera/lowcode/pkg/model"
)

func TestCompileOpacity(t *testing.T) {
	s := model.DefaultStyle()
	if got := Compile(s, Options{}); len(got) != 0 {
		t.Errorf("Expected default style to compile to nothing, got %v", got)
	}

	s.Opacity = "50"
	got := Compile(s, Options{})
	if len(got) != 1 {
		t.Fatalf("Expected one declaration, got %v", got)
	}
	if v, _ := got.Get("opacity"); v != "50%" {
		t.Errorf("Expected opacity 50%%, got %q", v)
	}
}

func TestCompileRules(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *model.Style)
		want  map[string]string
	}{
		{
			name:  "rotate",
			setup: func(s *model.Style) { s.Rotate = "45" },
			want:  map[string]string{"transform": "rotate(45deg)"},
		},
		{
			name:  "margin shorthand",
			setup: func(s *model.Style) { s.Margin = [4]string{"4", "0", "8", "0"} },
			want:  map[string]string{"margin": "4px 0 8px 0"},
		},
		{
			name: "per-edge unit override",
			setup: func(s *model.Style) {
				s.Padding = [4]string{"1", "2", "1", "2"}
				s.Units["padding"] = "rem"
				s.Units["paddingLeft"] = "%"
			},
			want: map[string]string{"padding": "1rem 2rem 1rem 2%"},
		},
		{
			name:  "all-zero tuple omitted",
			setup: func(s *model.Style) { s.BorderRadius = [4]string{"0", "", "0", "0"} },
			want:  map[string]string{},
		},
		{
			name: "hidden color omitted, shown background kept",
			setup: func(s *model.Style) {
				s.Color = model.Toggle{IsShow: false, ModelValue: "red"}
				s.Background = model.Toggle{IsShow: true, ModelValue: "#fff"}
			},
			want: map[string]string{"background": "#fff"},
		},
		{
			name:  "normal blend mode omitted",
			setup: func(s *model.Style) { s.MixBlendMode.IsShow = true },
			want:  map[string]string{},
		},
		{
			name:  "blend mode",
			setup: func(s *model.Style) { s.MixBlendMode = model.Toggle{IsShow: true, ModelValue: "multiply"} },
			want:  map[string]string{"mix-blend-mode": "multiply"},
		},
		{
			name:  "backdrop blur",
			setup: func(s *model.Style) { s.Blur = model.Blur{IsShow: true, ModelValue: "4", Field: "backdropFilter"} },
			want:  map[string]string{"backdrop-filter": "blur(4px)"},
		},
		{
			name: "borders by edge",
			setup: func(s *model.Style) {
				s.Border = []model.Border{
					{IsShow: true, Position: "all", Width: "1", Style: "solid", Color: "#000"},
					{IsShow: true, Position: "bottom", Width: "2", Style: "dashed", Color: "red"},
					{IsShow: false, Position: "top", Width: "9", Style: "solid"},
				}
			},
			want: map[string]string{"border": "1px solid #000", "border-bottom": "2px dashed red"},
		},
		{
			name: "box shadows comma-joined",
			setup: func(s *model.Style) {
				s.BoxShadow = []model.Shadow{
					{IsShow: true, X: "1", Y: "2", Blur: "3", Color: "#000"},
					{IsShow: true, X: "0", Y: "0", Blur: "5", Spread: "1", Color: "red", Inset: true},
				}
			},
			want: map[string]string{"box-shadow": "1px 2px 3px 0 #000, inset 0 0 5px 1px red"},
		},
		{
			name: "generic keys",
			setup: func(s *model.Style) {
				s.Extra.Set("width", "120")
				s.Extra.Set("fontSize", "14")
				s.Extra.Set("lineHeight", "1.5")
				s.Extra.Set("zIndex", "0")
			},
			want: map[string]string{"width": "120px", "font-size": "14px", "line-height": "1.5"},
		},
		{
			name: "calc unit",
			setup: func(s *model.Style) {
				s.Extra.Set("height", "100%-20px")
				s.Units["height"] = "calc"
			},
			want: map[string]string{"height": "calc(100% - 20px)"},
		},
		{
			name: "custom css last and raw",
			setup: func(s *model.Style) {
				s.Opacity = "50"
				s.CustomCSS.Set("opacity", "0.3")
				s.CustomCSS.Set("--brand", "blue")
			},
			want: map[string]string{"opacity": "0.3", "--brand": "blue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.DefaultStyle()
			tt.setup(&s)
			got := Compile(s, Options{}).Map()
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: expected %q, got %q", k, v, got[k])
				}
			}
		})
	}
}

func TestCompileAnchors(t *testing.T) {
	sized := func(key string) (float64, float64, bool) { return 200, 80, key == "k1" }

	tests := []struct {
		name  string
		setup func(s *model.Style)
		opts  Options
		want  map[string]string
	}{
		{
			name:  "zero offset untracked emits nothing",
			setup: func(s *model.Style) { s.ConstX = "right" },
			want:  map[string]string{},
		},
		{
			name:  "left offset",
			setup: func(s *model.Style) { s.MoveX = "10" },
			want:  map[string]string{"left": "10px"},
		},
		{
			name:  "bottom offset",
			setup: func(s *model.Style) { s.ConstY = "bottom"; s.MoveY = "5" },
			want:  map[string]string{"bottom": "5px"},
		},
		{
			name: "center with declared width",
			setup: func(s *model.Style) {
				s.ConstX = "center"
				s.MoveX = "10"
				s.Extra.Set("width", "120")
			},
			want: map[string]string{"left": "calc(50% - 60px + 10px)", "width": "120px"},
		},
		{
			name:  "zero offset with tracked size still anchors",
			setup: func(s *model.Style) { s.ConstX = "leftRight" },
			opts:  Options{Key: "k1", DOMSize: sized},
			want:  map[string]string{"left": "0px", "right": "calc(100% - 0px - 200px)", "top": "0px"},
		},
		{
			name:  "top-bottom from tracked height",
			setup: func(s *model.Style) { s.ConstY = "topBottom"; s.MoveY = "4" },
			opts:  Options{Key: "k1", DOMSize: sized},
			want:  map[string]string{"left": "0px", "top": "4px", "bottom": "calc(100% - 4px - 80px)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.DefaultStyle()
			tt.setup(&s)
			got := Compile(s, tt.opts).Map()
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: expected %q, got %q", k, v, got[k])
				}
			}
		})
	}
}

func TestSpaceOperators(t *testing.T) {
	tests := []struct{ in, want string }{
		{"100%-20px", "100% - 20px"},
		{"50% + 2px*3", "50% + 2px * 3"},
		{"-5px+10px", "-5px + 10px"},
		{"var(--gap-size)/2", "var(--gap-size) / 2"},
	}
	for _, tt := range tests {
		if got := spaceOperators(tt.in); got != tt.want {
			t.Errorf("spaceOperators(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSheet(t *testing.T) {
	a := model.NewNode("div")
	a.CSS.Opacity = "50"
	b := model.NewNode("span")
	a.Slots.Set("default", &model.Slot{Children: []*model.Node{b}})
	c := model.NewNode("p")
	c.CSS.Margin = [4]string{"1", "1", "1", "1"}
	b.Slots.Set("default", &model.Slot{Children: []*model.Node{c}})

	sheet := NewSheet()
	sheet.AddTree([]*model.Node{a}, Options{})
	if sheet.Len() != 2 {
		t.Fatalf("Expected rules only for styled nodes, got %d", sheet.Len())
	}

	out := sheet.String()
	want := "." + ClassToken(a.Key) + " {\n  opacity: 50%;\n}\n\n." + ClassToken(c.Key) + " {\n  margin: 1px 1px 1px 1px;\n}\n"
	if out != want {
		t.Errorf("Unexpected sheet:\n%s\nwant:\n%s", out, want)
	}

	min, err := Minify(out)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(min, "\n") || !strings.Contains(min, ClassToken(a.Key)) {
		t.Errorf("Unexpected minified output %q", min)
	}
	if len(sheet.Hash()) != 8 {
		t.Errorf("Expected 8-char hash, got %q", sheet.Hash())
	}
}

func TestClassToken(t *testing.T) {
	tok := ClassToken("k12ab")
	if tok != "lc-k12ab" {
		t.Errorf("Unexpected token %q", tok)
	}
	key, ok := ParseClassToken(tok)
	if !ok || key != "k12ab" {
		t.Errorf("Expected round trip, got %q %v", key, ok)
	}
	if _, ok := ParseClassToken("btn-primary"); ok {
		t.Error("Expected foreign class to be rejected")
	}
}
