package style

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"

	"github.com/recera/lowcode/pkg/model"
)

// ClassPrefix starts every generated class token.
const ClassPrefix = "lc-"

// ClassToken returns the stable class token of a node.
func ClassToken(key string) string {
	return ClassPrefix + model.Ident(key)
}

// ParseClassToken recovers the node key from a class token.
func ParseClassToken(token string) (string, bool) {
	if !strings.HasPrefix(token, ClassPrefix) || len(token) == len(ClassPrefix) {
		return "", false
	}
	return token[len(ClassPrefix):], true
}

// Rule is one rendered rule block.
type Rule struct {
	Selector string
	Decls    Declarations
}

// Sheet collects rule blocks in insertion order.
type Sheet struct {
	mu    sync.RWMutex
	rules []Rule
	index map[string]int
}

// NewSheet returns an empty sheet.
func NewSheet() *Sheet {
	return &Sheet{index: make(map[string]int)}
}

// Add appends a rule, replacing an earlier rule with the same selector.
// Empty declaration lists are ignored.
func (s *Sheet) Add(selector string, decls Declarations) {
	if len(decls) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[selector]; ok {
		s.rules[i].Decls = decls
		return
	}
	s.index[selector] = len(s.rules)
	s.rules = append(s.rules, Rule{Selector: selector, Decls: decls})
}

// AddTree compiles every node of a forest, depth-first, into ".lc-<key>" rules.
func (s *Sheet) AddTree(tree []*model.Node, opts Options) {
	model.Walk(tree, func(n *model.Node, _ int) bool {
		o := opts
		o.Key = n.Key
		s.Add("."+ClassToken(n.Key), Compile(n.CSS, o))
		return true
	})
}

// Rules returns a copy of the rules.
func (s *Sheet) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Rule(nil), s.rules...)
}

// Len returns the number of rules.
func (s *Sheet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// String renders the sheet with one declaration per line.
func (s *Sheet) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b strings.Builder
	for i, r := range s.rules {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Selector)
		b.WriteString(" {\n")
		for _, d := range r.Decls {
			b.WriteString("  ")
			b.WriteString(d.Property)
			b.WriteString(": ")
			b.WriteString(d.Value)
			b.WriteString(";\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}

// Hash is a short content hash of the rendered sheet.
func (s *Sheet) Hash() string {
	h := sha256.Sum256([]byte(s.String()))
	return hex.EncodeToString(h[:])[:8]
}

var (
	minifierOnce sync.Once
	minifier     *minify.M
)

func getMinifier() *minify.M {
	minifierOnce.Do(func() {
		minifier = minify.New()
		minifier.AddFunc("text/css", css.Minify)
	})
	return minifier
}

// Minify compacts rendered CSS.
func Minify(src string) (string, error) {
	out, err := getMinifier().String("text/css", src)
	if err != nil {
		return "", fmt.Errorf("minify css: %w", err)
	}
	return out, nil
}
