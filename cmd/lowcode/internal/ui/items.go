package ui

import (
	"fmt"
	"strings"

	"github.com/recera/lowcode/pkg/markup"
	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/style"
)

// Item is one node of the inspected page, flattened in document order.
type Item struct {
	Key    string
	Name   string
	Depth  int
	Attrs  int
	Events int
	// Markup is the node rendered with its subtree.
	Markup string
	// Style is the node's compiled rule; empty when the style is default.
	Style string
	Err   error
}

// Items flattens the page tree and renders every node.
func Items(p *model.Page, opts markup.Options) []Item {
	var items []Item
	model.Walk(p.Tree, func(n *model.Node, depth int) bool {
		item := Item{
			Key:    n.Key,
			Name:   n.Name,
			Depth:  depth,
			Attrs:  n.Attrs.Len(),
			Events: n.On.Len() + n.NativeOn.Len(),
		}
		item.Markup, item.Err = markup.Generate([]*model.Node{n}, opts)

		sheet := style.NewSheet()
		sheet.Add("."+style.ClassToken(n.Key), style.Compile(n.CSS, style.Options{Key: n.Key, DOMSize: opts.DOMSize}))
		item.Style = sheet.String()

		items = append(items, item)
		return true
	})
	return items
}

// Label is the one-line list entry of an item.
func (it Item) Label() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", it.Depth))
	b.WriteString(it.Name)
	fmt.Fprintf(&b, " #%s", it.Key)
	if it.Attrs > 0 || it.Events > 0 {
		fmt.Fprintf(&b, " (%d attrs, %d events)", it.Attrs, it.Events)
	}
	return b.String()
}

// Matches reports whether the item's name or key contains filter,
// ignoring case.
func (it Item) Matches(filter string) bool {
	if filter == "" {
		return true
	}
	f := strings.ToLower(filter)
	return strings.Contains(strings.ToLower(it.Name), f) || strings.Contains(strings.ToLower(it.Key), f)
}
