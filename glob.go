package assetgen

import (
	"path"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rotisserie/eris"
)

// Matcher matches slash separated paths against a source glob.  Globs
// support "*", "?", "[...]", "{a,b}" and "**", where "**" may also match
// zero directories ("src/**/*.js" matches "src/main.js").
type Matcher struct {
	Pattern string

	// Base is the longest leading part of the pattern without any glob
	// characters.  Walking starts here and output paths are computed
	// relative to it.
	Base string

	globs []glob.Glob
}

// CompileGlob compiles a source glob.
func CompileGlob(pattern string) (*Matcher, error) {
	pattern = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(pattern)), "/")
	if pattern == "" || pattern == "." {
		return nil, eris.New("empty glob")
	}
	m := &Matcher{Pattern: pattern, Base: globBase(pattern)}
	for _, variant := range globstarVariants(pattern) {
		g, err := glob.Compile(variant, '/')
		if err != nil {
			return nil, eris.Wrapf(err, "invalid glob %q", pattern)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether a root relative, slash separated path matches.
func (m *Matcher) Match(relpath string) bool {
	relpath = strings.TrimPrefix(path.Clean("/"+relpath), "/")
	for _, g := range m.globs {
		if g.Match(relpath) {
			return true
		}
	}
	return false
}

// Rel returns relpath relative to the matcher's base.
func (m *Matcher) Rel(relpath string) string {
	if m.Base == "" {
		return relpath
	}
	return strings.TrimPrefix(relpath, m.Base+"/")
}

func hasGlobMeta(segment string) bool {
	return strings.ContainsAny(segment, "*?[{")
}

func globBase(pattern string) string {
	parts := strings.Split(pattern, "/")
	var base []string
	for i, part := range parts {
		if hasGlobMeta(part) {
			break
		}
		// a pattern without any meta characters names a single file
		if i == len(parts)-1 {
			break
		}
		base = append(base, part)
	}
	return strings.Join(base, "/")
}

// globstarVariants expands every "**/" segment into the forms with and
// without it, since gobwas requires at least one path separator around "**".
func globstarVariants(pattern string) []string {
	idx := strings.Index(pattern, "**/")
	if idx < 0 || (idx > 0 && pattern[idx-1] != '/') {
		return []string{pattern}
	}
	head, tail := pattern[:idx], pattern[idx+3:]
	var out []string
	for _, rest := range globstarVariants(tail) {
		out = append(out, head+"**/"+rest, head+rest)
	}
	return out
}
