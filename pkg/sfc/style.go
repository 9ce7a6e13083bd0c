package sfc

import (
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/style"
)

// styleBlock reads the per-node rules `.lc-<key> { ... }` back. Any other
// rule is left alone.
func (l *lowerer) styleBlock(b *Block) {
	p := css.NewParser(parse.NewInputString(b.Content), false)
	var (
		key   string
		decls *model.Map[string]
	)
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); p.HasParseError() || (err != nil && err != io.EOF) {
				l.diag(b.ContentPos, "style: "+err.Error())
			}
			return
		case css.BeginRulesetGrammar:
			sel := string(data) + joinTokens(p.Values())
			k, ok := ruleKey(sel)
			if !ok {
				logger.Debug("ignoring style rule", "selector", sel)
				decls = nil
				continue
			}
			key, decls = k, &model.Map[string]{}
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if decls != nil {
				decls.Set(string(data), strings.TrimSpace(joinTokens(p.Values())))
			}
		case css.EndRulesetGrammar:
			if decls != nil && decls.Len() > 0 {
				l.styles[key] = *decls
			}
			decls = nil
		}
	}
}

func joinTokens(tokens []css.Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.Write(t.Data)
	}
	return b.String()
}

func ruleKey(selector string) (string, bool) {
	selector = strings.TrimSpace(selector)
	if !strings.HasPrefix(selector, ".") {
		return "", false
	}
	key, ok := style.ParseClassToken(selector[1:])
	if !ok || !model.IsIdent(key) {
		return "", false
	}
	return key, true
}
