// Package preprocess implements comment directives for html sources.
//
// Directives live in html comments and are evaluated against a Context:
//
//	<!-- @if NODE_ENV='production' --> ... <!-- @else --> ... <!-- @endif -->
//	<!-- @ifdef DEBUG --> ... <!-- @endif -->
//	<!-- @ifndef DEBUG --> ... <!-- @endif -->
//	<!-- @exclude --> ... <!-- @endexclude -->
//	<!-- @echo version -->
//	<!-- @include partials/header.html -->
//
// Everything outside directives is copied through untouched, including
// whitespace, so the result keeps the layout of the source.
package preprocess

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Context holds the variables visible to directives.
type Context map[string]any

func (c Context) lookup(name string) any {
	if c == nil {
		return nil
	}
	return c[name]
}

func (c Context) defined(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c[name]
	return ok
}

// Merge returns a new context with the entries of other layered on top.
func (c Context) Merge(other map[string]any) Context {
	out := make(Context, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Options control a Process call.
type Options struct {
	Context Context

	// Directory of the file being processed; @include paths are resolved
	// against it.
	Dir string

	// Reads included files.  Includes are an error when it is nil.
	ReadFile func(path string) ([]byte, error)

	// Converts included files by extension (eg ".md") before they are
	// preprocessed.
	Renderers map[string]func(src []byte) ([]byte, error)

	// Maximum include nesting, 16 when zero.
	MaxDepth int
}

// DirectiveError reports a directive that could not be processed.
type DirectiveError struct {
	File      string
	Line      int
	Directive string
	Err       error
}

func (e *DirectiveError) Error() string {
	file := e.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d: @%s: %v", file, e.Line, e.Directive, e.Err)
}

func (e *DirectiveError) Unwrap() error { return e.Err }

var (
	ErrUnbalanced     = eris.New("unbalanced directive")
	ErrUnknown        = eris.New("unknown directive")
	ErrMissingArgs    = eris.New("missing argument")
	ErrIncludeDepth   = eris.New("includes nested too deeply")
	ErrIncludeUnready = eris.New("includes are not enabled")
)

var directiveRe = regexp.MustCompile(`<!--\s*@([a-zA-Z]+)\b[ \t]*(.*?)\s*-->`)

type directive struct {
	name  string
	args  string
	start int
	end   int
	line  int
}

type node interface{}

type textNode []byte

type echoNode struct{ d directive }

type includeNode struct{ d directive }

type condNode struct {
	d         directive
	then      []node
	otherwise []node
}

type excludeNode struct {
	d    directive
	body []node
}

// Process applies all directives in src and returns the result.  The file
// argument is only used in error messages.
func Process(file string, src []byte, opts Options) ([]byte, error) {
	if opts.MaxDepth == 0 {
		opts.MaxDepth = 16
	}
	return process(file, src, opts, 0)
}

func process(file string, src []byte, opts Options, depth int) ([]byte, error) {
	nodes, err := parse(file, src)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := render(&out, file, nodes, opts, depth); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func parse(file string, src []byte) ([]node, error) {
	matches := directiveRe.FindAllSubmatchIndex(src, -1)
	directives := make([]directive, 0, len(matches))
	for _, m := range matches {
		directives = append(directives, directive{
			name:  strings.ToLower(string(src[m[2]:m[3]])),
			args:  strings.TrimSpace(string(src[m[4]:m[5]])),
			start: m[0],
			end:   m[1],
			line:  bytes.Count(src[:m[0]], []byte("\n")) + 1,
		})
	}

	p := &parser{file: file, src: src, directives: directives}
	nodes, stop, err := p.block(0)
	if err != nil {
		return nil, err
	}
	if stop != nil {
		return nil, p.errorf(*stop, ErrUnbalanced)
	}
	return nodes, nil
}

type parser struct {
	file       string
	src        []byte
	directives []directive
	pos        int // index of the next directive
	offset     int // offset in src after the last consumed directive
}

func (p *parser) errorf(d directive, err error) error {
	return &DirectiveError{File: p.file, Line: d.line, Directive: d.name, Err: err}
}

// block parses nodes until a closing directive (else, endif, endexclude)
// or the end of input.  The closing directive is returned, not consumed.
func (p *parser) block(level int) (nodes []node, stop *directive, err error) {
	for p.pos < len(p.directives) {
		d := p.directives[p.pos]
		if d.start > p.offset {
			nodes = append(nodes, textNode(p.src[p.offset:d.start]))
		}
		p.offset = d.end
		p.pos++

		switch d.name {
		case "else", "endif", "endexclude":
			if level == 0 {
				return nil, nil, p.errorf(d, ErrUnbalanced)
			}
			return nodes, &d, nil
		case "echo":
			if d.args == "" {
				return nil, nil, p.errorf(d, ErrMissingArgs)
			}
			nodes = append(nodes, echoNode{d})
		case "include":
			if d.args == "" {
				return nil, nil, p.errorf(d, ErrMissingArgs)
			}
			nodes = append(nodes, includeNode{d})
		case "if", "ifdef", "ifndef":
			if d.args == "" {
				return nil, nil, p.errorf(d, ErrMissingArgs)
			}
			cond := condNode{d: d}
			body, closer, err := p.block(level + 1)
			if err != nil {
				return nil, nil, err
			}
			cond.then = body
			if closer != nil && closer.name == "else" {
				body, closer, err = p.block(level + 1)
				if err != nil {
					return nil, nil, err
				}
				cond.otherwise = body
			}
			if closer == nil || closer.name != "endif" {
				return nil, nil, p.errorf(d, ErrUnbalanced)
			}
			nodes = append(nodes, cond)
		case "exclude":
			ex := excludeNode{d: d}
			body, closer, err := p.block(level + 1)
			if err != nil {
				return nil, nil, err
			}
			if closer == nil || closer.name != "endexclude" {
				return nil, nil, p.errorf(d, ErrUnbalanced)
			}
			ex.body = body
			nodes = append(nodes, ex)
		default:
			return nil, nil, p.errorf(d, ErrUnknown)
		}
	}
	if p.offset < len(p.src) {
		nodes = append(nodes, textNode(p.src[p.offset:]))
		p.offset = len(p.src)
	}
	return nodes, nil, nil
}

func render(out *bytes.Buffer, file string, nodes []node, opts Options, depth int) error {
	fail := func(d directive, err error) error {
		return &DirectiveError{File: file, Line: d.line, Directive: d.name, Err: err}
	}

	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			out.Write(n)
		case echoNode:
			out.WriteString(echoValue(opts.Context.lookup(n.d.args)))
		case condNode:
			var ok bool
			var err error
			switch n.d.name {
			case "ifdef":
				ok = opts.Context.defined(n.d.args)
			case "ifndef":
				ok = !opts.Context.defined(n.d.args)
			default:
				ok, err = Eval(n.d.args, opts.Context)
				if err != nil {
					return fail(n.d, err)
				}
			}
			body := n.otherwise
			if ok {
				body = n.then
			}
			if err := render(out, file, body, opts, depth); err != nil {
				return err
			}
		case excludeNode:
			drop := true
			if n.d.args != "" {
				var err error
				if drop, err = Eval(n.d.args, opts.Context); err != nil {
					return fail(n.d, err)
				}
			}
			if !drop {
				if err := render(out, file, n.body, opts, depth); err != nil {
					return err
				}
			}
		case includeNode:
			data, err := include(n.d.args, opts, depth)
			if err != nil {
				return fail(n.d, err)
			}
			out.Write(data)
		}
	}
	return nil
}

func include(target string, opts Options, depth int) ([]byte, error) {
	if opts.ReadFile == nil {
		return nil, ErrIncludeUnready
	}
	if depth+1 > opts.MaxDepth {
		return nil, ErrIncludeDepth
	}
	target = strings.Trim(target, `"'`)
	fullpath := target
	if !filepath.IsAbs(fullpath) {
		fullpath = filepath.Join(opts.Dir, filepath.FromSlash(target))
	}
	data, err := opts.ReadFile(fullpath)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to include %s", target)
	}
	if render, ok := opts.Renderers[strings.ToLower(filepath.Ext(fullpath))]; ok {
		if data, err = render(data); err != nil {
			return nil, eris.Wrapf(err, "failed to render %s", target)
		}
	}

	sub := opts
	sub.Dir = filepath.Dir(fullpath)
	return process(fullpath, data, sub, depth+1)
}

func echoValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
