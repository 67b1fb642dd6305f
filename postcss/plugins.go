package postcss

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	remRe    = regexp.MustCompile(`(^|[\s,(/+*-])(-?(?:\d+\.?\d*|\.\d+))rem\b`)
	pseudoRe = regexp.MustCompile(`(?i)::(before|after|first-line|first-letter)\b`)
)

// RemFallback inserts a px declaration before every declaration using rem
// units, computed against a root font size of rootPx.  Declarations that
// already have a fallback are left alone.
func RemFallback(s *Stylesheet, rootPx float64) {
	if rootPx <= 0 {
		rootPx = 16
	}
	eachDeclList(s.Nodes, func(decls []*Decl) []*Decl {
		var out []*Decl
		for i, d := range decls {
			if strings.HasPrefix(d.Property, "--") || !remRe.MatchString(d.Value) {
				out = append(out, d)
				continue
			}
			px := remRe.ReplaceAllStringFunc(d.Value, func(m string) string {
				sub := remRe.FindStringSubmatch(m)
				v, err := strconv.ParseFloat(sub[2], 64)
				if err != nil {
					return m
				}
				return sub[1] + strconv.FormatFloat(v*rootPx, 'f', -1, 64) + "px"
			})
			if i > 0 && decls[i-1].Property == d.Property {
				out = append(out, d)
				continue
			}
			out = append(out, &Decl{Property: d.Property, Value: px}, d)
		}
		return out
	})
}

// PseudoElements rewrites ::before, ::after, ::first-line and ::first-letter
// to their single colon CSS2 form.
func PseudoElements(s *Stylesheet) {
	s.Walk(func(r *Rule) {
		r.Selector = pseudoRe.ReplaceAllString(r.Selector, ":$1")
	})
}

// PackMediaQueries merges top level @media rules with the same query and
// moves them to the end of the stylesheet, in order of first appearance.
func PackMediaQueries(s *Stylesheet) {
	var rest []Node
	var order []string
	packed := make(map[string]*AtRule)
	for _, n := range s.Nodes {
		at, ok := n.(*AtRule)
		if !ok || at.Name != "media" || !at.Block || at.Raw != "" {
			rest = append(rest, n)
			continue
		}
		key := strings.ToLower(at.Prelude)
		if p, ok := packed[key]; ok {
			p.Nodes = append(p.Nodes, at.Nodes...)
			continue
		}
		packed[key] = at
		order = append(order, key)
	}
	for _, key := range order {
		rest = append(rest, packed[key])
	}
	s.Nodes = rest
}

// Clean removes empty rules, merges adjacent rules with the same selector and
// drops repeated identical declarations, keeping the last one.
func Clean(s *Stylesheet) {
	s.Nodes = cleanNodes(s.Nodes)
}

func cleanNodes(nodes []Node) []Node {
	var out []Node
	for _, n := range nodes {
		switch n := n.(type) {
		case *Rule:
			if prev, ok := last(out).(*Rule); ok && prev.Selector == n.Selector {
				prev.Decls = dedupe(append(prev.Decls, n.Decls...))
				continue
			}
			n.Decls = dedupe(n.Decls)
			if len(n.Decls) == 0 {
				continue
			}
			out = append(out, n)
		case *AtRule:
			if n.Block && n.Raw == "" {
				n.Nodes = cleanNodes(n.Nodes)
				if len(n.Nodes) == 0 {
					continue
				}
			}
			out = append(out, n)
		default:
			out = append(out, n)
		}
	}
	return out
}

func last(nodes []Node) Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

func dedupe(decls []*Decl) []*Decl {
	seen := make(map[string]int, len(decls))
	for i, d := range decls {
		seen[d.Property+":"+d.Value] = i
	}
	out := decls[:0:0]
	for i, d := range decls {
		if seen[d.Property+":"+d.Value] == i {
			out = append(out, d)
		}
	}
	return out
}

// eachDeclList calls fn with every declaration list in nodes and stores the
// list it returns.
func eachDeclList(nodes []Node, fn func([]*Decl) []*Decl) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *Rule:
			n.Decls = fn(n.Decls)
		case *AtRule:
			var decls []*Decl
			var others []Node
			for _, child := range n.Nodes {
				if d, ok := child.(*Decl); ok {
					decls = append(decls, d)
				} else {
					others = append(others, child)
				}
			}
			if len(decls) > 0 {
				nodes := make([]Node, 0, len(others)+len(decls))
				for _, d := range fn(decls) {
					nodes = append(nodes, d)
				}
				n.Nodes = append(nodes, others...)
			}
			eachDeclList(others, fn)
		}
	}
}
