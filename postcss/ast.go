// Package postcss post-processes compiled stylesheets: it removes redundant
// rules, adds vendor prefixes, rem fallbacks and CSS2 pseudo-element syntax,
// and packs media queries, before handing the result to a minifier.
package postcss

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Node is a top level or nested item of a stylesheet: *Rule, *AtRule or
// *Decl (inside declaration list at-rules such as @font-face).
type Node interface {
	write(b *strings.Builder)
}

// Decl is a single property declaration.
type Decl struct {
	Property string
	Value    string
}

// Rule is a qualified rule, a selector with its declarations.
type Rule struct {
	Selector string
	Decls    []*Decl
}

// AtRule is an @-rule.  Block at-rules hold nested nodes, except for rules
// the parser does not know the grammar of, whose body is kept in Raw.
type AtRule struct {
	Name    string
	Prelude string
	Block   bool
	Nodes   []Node
	Raw     string
}

// Stylesheet is a parsed stylesheet.
type Stylesheet struct {
	Nodes []Node
}

// Parse parses a stylesheet.  Comments are dropped.
func Parse(src []byte) (*Stylesheet, error) {
	sheet := &Stylesheet{}
	p := css.NewParser(parse.NewInputBytes(src), false)

	var stack []*AtRule
	var rule *Rule
	add := func(n Node) {
		if len(stack) == 0 {
			sheet.Nodes = append(sheet.Nodes, n)
			return
		}
		top := stack[len(stack)-1]
		top.Nodes = append(top.Nodes, n)
	}

	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			err := p.Err()
			if err == io.EOF {
				return sheet, nil
			}
			return nil, eris.Wrap(err, "failed to parse stylesheet")
		case css.AtRuleGrammar:
			add(&AtRule{Name: atName(data), Prelude: join(p.Values())})
		case css.BeginAtRuleGrammar:
			at := &AtRule{Name: atName(data), Prelude: join(p.Values()), Block: true}
			add(at)
			stack = append(stack, at)
		case css.EndAtRuleGrammar:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case css.BeginRulesetGrammar:
			rule = &Rule{Selector: join(p.Values())}
			add(rule)
		case css.EndRulesetGrammar:
			rule = nil
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			d := &Decl{Property: string(data), Value: join(p.Values())}
			if rule != nil {
				rule.Decls = append(rule.Decls, d)
			} else {
				add(d)
			}
		case css.TokenGrammar:
			if len(stack) > 0 {
				stack[len(stack)-1].Raw += string(data)
			}
		}
	}
}

func atName(data []byte) string {
	return strings.TrimPrefix(string(data), "@")
}

func join(tokens []css.Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.Write(t.Data)
	}
	return strings.TrimSpace(b.String())
}

// String serializes the stylesheet without insignificant whitespace.
func (s *Stylesheet) String() string {
	var b strings.Builder
	writeNodes(&b, s.Nodes)
	return b.String()
}

// Bytes is String as a byte slice.
func (s *Stylesheet) Bytes() []byte {
	return []byte(s.String())
}

func writeNodes(b *strings.Builder, nodes []Node) {
	for _, n := range nodes {
		n.write(b)
	}
}

func (d *Decl) write(b *strings.Builder) {
	b.WriteString(d.Property)
	b.WriteByte(':')
	b.WriteString(d.Value)
	b.WriteByte(';')
}

func (r *Rule) write(b *strings.Builder) {
	b.WriteString(r.Selector)
	b.WriteByte('{')
	for _, d := range r.Decls {
		d.write(b)
	}
	b.WriteByte('}')
}

func (a *AtRule) write(b *strings.Builder) {
	b.WriteByte('@')
	b.WriteString(a.Name)
	if a.Prelude != "" {
		b.WriteByte(' ')
		b.WriteString(a.Prelude)
	}
	if !a.Block {
		b.WriteByte(';')
		return
	}
	b.WriteByte('{')
	writeNodes(b, a.Nodes)
	b.WriteString(a.Raw)
	b.WriteByte('}')
}

// Walk calls fn for every rule, including rules nested in at-rules.
func (s *Stylesheet) Walk(fn func(r *Rule)) {
	walkRules(s.Nodes, fn)
}

func walkRules(nodes []Node, fn func(r *Rule)) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *Rule:
			fn(n)
		case *AtRule:
			walkRules(n.Nodes, fn)
		}
	}
}
