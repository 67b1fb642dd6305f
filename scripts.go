package assetgen

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rotisserie/eris"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

func (p *Project) scriptStages() []Stage {
	opts := p.Config.Scripts
	stages := append([]Stage{Size("scripts - in")}, p.newer(CategoryScripts)...)
	stages = append(stages,
		OrderByRequires(),
	)
	if opts.Lint {
		stages = append(stages, Lint(opts.LintRules))
	}
	return append(stages,
		Transpile(opts.Target),
		MinifyJS(opts.Target),
		Concat(opts.Bundle, "\n"),
		Size("scripts - out"),
		Dest(p.Fs, p.root, p.Spec(CategoryScripts).Dest),
	)
}

var esTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es6":    api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"es2024": api.ES2024,
	"esnext": api.ESNext,
}

func esTarget(name string) (api.Target, error) {
	if name == "" {
		return api.ES2015, nil
	}
	t, ok := esTargets[strings.ToLower(name)]
	if !ok {
		return 0, eris.Errorf("unknown script target %q", name)
	}
	return t, nil
}

// transform runs esbuild over a single script and turns its errors into a Go
// error.
func transform(a *Asset, opts api.TransformOptions) (api.TransformResult, error) {
	opts.Loader = api.LoaderJS
	opts.Sourcefile = a.Path
	opts.LogLevel = api.LogLevelSilent
	result := api.Transform(string(a.Content), opts)
	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, m := range result.Errors {
			msgs[i] = formatMessage(a.Path, m)
		}
		return result, eris.New(strings.Join(msgs, "; "))
	}
	return result, nil
}

func formatMessage(file string, m api.Message) string {
	if m.Location == nil {
		return fmt.Sprintf("%s: %s", file, m.Text)
	}
	return fmt.Sprintf("%s:%d:%d: %s", file, m.Location.Line, m.Location.Column+1, m.Text)
}

// Transpile lowers every script to the given target.
func Transpile(target string) Stage {
	return EachAsset("transpile", func(ctx context.Context, a *Asset) error {
		t, err := esTarget(target)
		if err != nil {
			return err
		}
		result, err := transform(a, api.TransformOptions{Target: t})
		if err != nil {
			return err
		}
		a.Content = result.Code
		return nil
	})
}

// MinifyJS minifies every script.  Top level names are kept since scripts
// share the global scope once concatenated.
func MinifyJS(target string) Stage {
	return EachAsset("uglify", func(ctx context.Context, a *Asset) error {
		t, err := esTarget(target)
		if err != nil {
			return err
		}
		result, err := transform(a, api.TransformOptions{
			Target:            t,
			MinifyWhitespace:  true,
			MinifyIdentifiers: true,
			MinifySyntax:      true,
		})
		if err != nil {
			return err
		}
		a.Content = result.Code
		return nil
	})
}

// LintFinding is a problem reported by the linter.
type LintFinding struct {
	File    string
	Line    int
	Rule    string
	Message string
}

func (f LintFinding) String() string {
	return fmt.Sprintf("%s:%d: %s (%s)", f.File, f.Line, f.Message, f.Rule)
}

// Lint reports findings as warnings.  Only a script that does not parse
// fails the stage.
func Lint(rules []string) Stage {
	return EachAsset("lint", func(ctx context.Context, a *Asset) error {
		findings, err := LintScript(a, rules)
		if err != nil {
			return err
		}
		for _, f := range findings {
			Logger(ctx).Warn().
				Str("path", f.File).
				Int("line", f.Line).
				Str("rule", f.Rule).
				Msg(f.String())
		}
		return nil
	})
}

// LintScript checks a script for syntax errors, which are returned as an
// error, and for the enabled rules:
//
//	eqeqeq    use of == or !=
//	debugger  debugger statements
//	with      with statements
//
// Warnings from the parser are always reported.
func LintScript(a *Asset, rules []string) ([]LintFinding, error) {
	result, err := transform(a, api.TransformOptions{})
	if err != nil {
		return nil, err
	}

	var findings []LintFinding
	for _, w := range result.Warnings {
		line := 0
		if w.Location != nil {
			line = w.Location.Line
		}
		findings = append(findings, LintFinding{File: a.Path, Line: line, Rule: "parser", Message: w.Text})
	}

	enabled := func(rule string) bool { return slices.Contains(rules, rule) }
	l := js.NewLexer(parse.NewInputBytes(a.Content))
	line := 1
	prev := js.ErrorToken
	for {
		tt, data := l.Next()
		if tt == js.ErrorToken {
			break
		}
		if (tt == js.DivToken || tt == js.DivEqToken) && regexpAllowed(prev) {
			tt, data = l.RegExp()
			if tt == js.ErrorToken {
				break
			}
		}

		report := func(rule, msg string) {
			if enabled(rule) {
				findings = append(findings, LintFinding{File: a.Path, Line: line, Rule: rule, Message: msg})
			}
		}
		switch tt {
		case js.EqEqToken:
			report("eqeqeq", "expected '===' and instead saw '=='")
		case js.NotEqToken:
			report("eqeqeq", "expected '!==' and instead saw '!='")
		case js.DebuggerToken:
			if prev != js.DotToken {
				report("debugger", "unexpected 'debugger' statement")
			}
		case js.WithToken:
			if prev != js.DotToken {
				report("with", "unexpected 'with' statement")
			}
		}

		line += bytes.Count(data, []byte("\n"))
		switch tt {
		case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
		default:
			prev = tt
		}
	}
	return findings, nil
}

// regexpAllowed reports whether a slash after the given token starts a
// regular expression rather than a division.
func regexpAllowed(prev js.TokenType) bool {
	if js.IsIdentifier(prev) || js.IsNumeric(prev) {
		return false
	}
	switch prev {
	case js.StringToken, js.TemplateToken, js.TemplateEndToken, js.RegExpToken,
		js.CloseParenToken, js.CloseBracketToken, js.CloseBraceToken,
		js.ThisToken, js.NullToken, js.TrueToken, js.FalseToken,
		js.IncrToken, js.DecrToken, js.PrivateIdentifierToken:
		return false
	}
	return true
}

var requiresRe = regexp.MustCompile(`^//\s*requires?\s*:\s*(.*)$`)

// Requires returns the scripts a script declares it depends on, from
// "// requires: a.js, lib/b.js" lines in its leading comments.  Paths are
// resolved against the script's directory.
func Requires(a *Asset) []string {
	var deps []string
	scanner := bufio.NewScanner(bytes.NewReader(a.Content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			break
		}
		m := requiresRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, dep := range strings.FieldsFunc(m[1], func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			deps = append(deps, path.Join(path.Dir(a.Path), dep))
		}
	}
	return deps
}

// OrderByRequires sorts the stream so every script comes after the scripts
// it requires.  Independent scripts keep path order.  A cycle is an error; a
// prerequisite that is not in the stream is reported and ignored.
func OrderByRequires() Stage {
	return NewStage("order", func(ctx context.Context, in Stream) (Stream, error) {
		g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
		byPath := make(map[string]*Asset, len(in))
		for _, a := range in {
			byPath[a.Path] = a
			if err := g.AddVertex(a.Path); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, eris.Wrapf(err, "failed to add %s", a.Path)
			}
		}

		for _, a := range in {
			deps := Requires(a)
			a.SetMeta("requires", deps)
			for _, dep := range deps {
				if _, ok := byPath[dep]; !ok {
					Logger(ctx).Warn().Str("path", a.Path).Str("requires", dep).Msg("missing prerequisite")
					continue
				}
				if err := g.AddEdge(dep, a.Path); err != nil {
					switch {
					case errors.Is(err, graph.ErrEdgeAlreadyExists):
					case errors.Is(err, graph.ErrEdgeCreatesCycle), dep == a.Path:
						return nil, eris.Wrapf(ErrDependencyCycle, "%s requires %s", a.Path, dep)
					default:
						return nil, eris.Wrapf(err, "%s requires %s", a.Path, dep)
					}
				}
			}
		}

		order, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
		if err != nil {
			return nil, eris.Wrap(ErrDependencyCycle, err.Error())
		}
		out := make(Stream, len(order))
		for i, p := range order {
			out[i] = byPath[p]
		}
		return out, nil
	})
}
