package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Toggle is a switchable single-value style facet.
type Toggle struct {
	IsShow     bool   `json:"isShow"`
	ModelValue string `json:"modelValue"`
}

// Blur is a toggle whose target CSS property is selectable.
type Blur struct {
	IsShow     bool   `json:"isShow"`
	ModelValue string `json:"modelValue"`
	// Field is "filter" or "backdropFilter".
	Field string `json:"field"`
}

// Border is one per-edge border spec.
type Border struct {
	IsShow   bool   `json:"isShow"`
	Position string `json:"position"` // all, top, right, bottom, left
	Width    string `json:"width"`
	Style    string `json:"style"`
	Color    string `json:"color"`
}

// Shadow is one box-shadow layer.
type Shadow struct {
	IsShow bool   `json:"isShow"`
	X      string `json:"x"`
	Y      string `json:"y"`
	Blur   string `json:"blur"`
	Spread string `json:"spread"`
	Color  string `json:"color"`
	Inset  bool   `json:"inset,omitempty"`
}

// Style is the fixed-shape style model of a node. Keys outside the known
// shape are kept in Extra, in source order.
type Style struct {
	Opacity      string
	Rotate       string
	BorderRadius [4]string
	Margin       [4]string
	Padding      [4]string
	ConstX       string
	ConstY       string
	MoveX        string
	MoveY        string
	Color        Toggle
	Background   Toggle
	MixBlendMode Toggle
	Blur         Blur
	Border       []Border
	BoxShadow    []Shadow
	Units        map[string]string
	CustomCSS    Map[string]
	Extra        Map[string]
}

// DefaultStyle returns the style every new node starts from.
func DefaultStyle() Style {
	zero := [4]string{"0", "0", "0", "0"}
	return Style{
		Opacity:      "100",
		Rotate:       "0",
		BorderRadius: zero,
		Margin:       zero,
		Padding:      zero,
		ConstX:       "left",
		ConstY:       "top",
		MoveX:        "0",
		MoveY:        "0",
		MixBlendMode: Toggle{ModelValue: "normal"},
		Blur:         Blur{ModelValue: "0", Field: "filter"},
		Border:       []Border{},
		BoxShadow:    []Shadow{},
		Units:        map[string]string{},
	}
}

// styleKeys is the serialization order of the known keys.
var styleKeys = []string{
	"opacity", "rotate", "borderRadius", "margin", "padding",
	"constX", "constY", "moveX", "moveY",
	"color", "background", "mixBlendMode", "blur",
	"border", "boxShadow", "units", "customCss",
}

func (s *Style) field(key string) (any, bool) {
	switch key {
	case "opacity":
		return &s.Opacity, true
	case "rotate":
		return &s.Rotate, true
	case "borderRadius":
		return &s.BorderRadius, true
	case "margin":
		return &s.Margin, true
	case "padding":
		return &s.Padding, true
	case "constX":
		return &s.ConstX, true
	case "constY":
		return &s.ConstY, true
	case "moveX":
		return &s.MoveX, true
	case "moveY":
		return &s.MoveY, true
	case "color":
		return &s.Color, true
	case "background":
		return &s.Background, true
	case "mixBlendMode":
		return &s.MixBlendMode, true
	case "blur":
		return &s.Blur, true
	case "border":
		return &s.Border, true
	case "boxShadow":
		return &s.BoxShadow, true
	case "units":
		return &s.Units, true
	case "customCss":
		return &s.CustomCSS, true
	}
	return nil, false
}

// set decodes raw into the field named key, or into Extra when key is unknown.
func (s *Style) set(key string, raw json.RawMessage) error {
	if ptr, ok := s.field(key); ok {
		if err := json.Unmarshal(raw, ptr); err != nil {
			return fmt.Errorf("style %s: %w", key, err)
		}
		return nil
	}
	var scalar any
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return fmt.Errorf("style %s: %w", key, err)
	}
	switch v := scalar.(type) {
	case string:
		s.Extra.Set(key, v)
	case float64:
		s.Extra.Set(key, strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		s.Extra.Set(key, strconv.FormatBool(v))
	case nil:
		s.Extra.Set(key, "")
	default:
		return fmt.Errorf("style %s: unsupported %T value", key, v)
	}
	return nil
}

// entries returns every key of s with its encoded value, known keys first.
func (s Style) entries() (Map[json.RawMessage], error) {
	var out Map[json.RawMessage]
	for _, k := range styleKeys {
		ptr, _ := s.field(k)
		raw, err := json.Marshal(ptr)
		if err != nil {
			return out, fmt.Errorf("style %s: %w", k, err)
		}
		out.Set(k, raw)
	}
	var err error
	s.Extra.Range(func(k, v string) bool {
		var raw []byte
		raw, err = json.Marshal(v)
		if err != nil {
			return false
		}
		out.Set(k, raw)
		return true
	})
	return out, err
}

// MarshalJSON writes the full (uncompacted) style.
func (s Style) MarshalJSON() ([]byte, error) {
	e, err := s.entries()
	if err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// UnmarshalJSON overlays the keys present in data onto s.
func (s *Style) UnmarshalJSON(data []byte) error {
	var in Map[json.RawMessage]
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var err error
	in.Range(func(k string, raw json.RawMessage) bool {
		err = s.set(k, raw)
		return err == nil
	})
	return err
}

// CompactStyle is the persisted form of a Style: only keys that differ from
// DefaultStyle.
type CompactStyle = Map[json.RawMessage]

// Compact drops every key whose value equals the default.
func Compact(s Style) (CompactStyle, error) {
	var out CompactStyle
	cur, err := s.entries()
	if err != nil {
		return out, err
	}
	def, err := DefaultStyle().entries()
	if err != nil {
		return out, err
	}
	cur.Range(func(k string, raw json.RawMessage) bool {
		if d, ok := def.Get(k); ok && bytes.Equal(d, raw) {
			return true
		}
		out.Set(k, raw)
		return true
	})
	return out, nil
}

// Restore merges a compact style back over the default.
func Restore(c CompactStyle) (Style, error) {
	s := DefaultStyle()
	var err error
	c.Range(func(k string, raw json.RawMessage) bool {
		err = s.set(k, raw)
		return err == nil
	})
	return s, err
}

// Clone deep-copies the style.
func (s Style) Clone() Style {
	c := s
	c.Border = append([]Border(nil), s.Border...)
	c.BoxShadow = append([]Shadow(nil), s.BoxShadow...)
	if s.Border != nil && c.Border == nil {
		c.Border = []Border{}
	}
	if s.BoxShadow != nil && c.BoxShadow == nil {
		c.BoxShadow = []Shadow{}
	}
	if s.Units != nil {
		c.Units = make(map[string]string, len(s.Units))
		for k, v := range s.Units {
			c.Units[k] = v
		}
	}
	c.CustomCSS = s.CustomCSS.CloneWith(func(v string) string { return v })
	c.Extra = s.Extra.CloneWith(func(v string) string { return v })
	return c
}
