package model

import (
	"strings"

	"github.com/google/uuid"
)

// NewKey returns a fresh node key. Keys start with a letter and contain only
// hex digits after it, so they are usable inside generated identifiers.
func NewKey() string {
	id := uuid.New()
	return "k" + strings.ReplaceAll(id.String(), "-", "")[:10]
}

// NewNode returns a node of the given component with canonical empty shapes
// and a fresh key/id pair. Attributes and slots are left to the caller (see
// registry.Registry.NewNode).
func NewNode(name string) *Node {
	key := NewKey()
	n := &Node{
		Name: name,
		Key:  key,
		ID:   key,
		CSS:  DefaultStyle(),
	}
	n.Animations.Ensure()
	return n
}
