package preprocess

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var fileOptions = &syntax.FileOptions{}

// Eval evaluates a directive condition against the context and returns its
// truth value.  Conditions use the familiar operators
//
//	NODE_ENV = 'production'    NODE_ENV == "production"    a != b
//	!DEBUG                     a && b                      a || (b && c)
//
// and are evaluated as Starlark expressions after translation.  Identifiers
// that are not in the context evaluate to None and are therefore falsy.
func Eval(expr string, ctx Context) (bool, error) {
	v, err := evalValue(expr, ctx)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}

func evalValue(expr string, ctx Context) (starlark.Value, error) {
	src := strings.TrimSpace(translate(expr))
	if src == "" {
		return nil, eris.New("empty expression")
	}

	parsed, err := fileOptions.ParseExpr("directive", src, 0)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid expression %q", expr)
	}

	env := make(starlark.StringDict)
	syntax.Walk(parsed, func(n syntax.Node) bool {
		if id, ok := n.(*syntax.Ident); ok {
			if _, seen := env[id.Name]; seen {
				return true
			}
			switch {
			case ctx.defined(id.Name):
				env[id.Name] = toStarlark(ctx.lookup(id.Name))
			case id.Name == "true":
				env[id.Name] = starlark.True
			case id.Name == "false":
				env[id.Name] = starlark.False
			default:
				env[id.Name] = starlark.None
			}
		}
		return true
	})

	thread := &starlark.Thread{Name: "preprocess"}
	v, err := starlark.EvalExprOptions(fileOptions, thread, parsed, env)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to evaluate %q", expr)
	}
	return v, nil
}

func toStarlark(v any) starlark.Value {
	switch v := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(v)
	case string:
		return starlark.String(v)
	case int:
		return starlark.MakeInt(v)
	case int64:
		return starlark.MakeInt64(v)
	case uint64:
		return starlark.MakeUint64(v)
	case float32:
		return starlark.Float(v)
	case float64:
		return starlark.Float(v)
	default:
		return starlark.String(fmt.Sprint(v))
	}
}

// translate rewrites the C style operators into Starlark ones, leaving
// string literals alone.
func translate(expr string) string {
	var out strings.Builder
	n := len(expr)
	for i := 0; i < n; i++ {
		c := expr[i]
		switch {
		case c == '"' || c == '\'':
			j := i + 1
			for j < n && expr[j] != c {
				if expr[j] == '\\' {
					j++
				}
				j++
			}
			if j >= n {
				j = n - 1
			}
			out.WriteString(expr[i : j+1])
			i = j
		case c == '&' && i+1 < n && expr[i+1] == '&':
			out.WriteString(" and ")
			i++
		case c == '|' && i+1 < n && expr[i+1] == '|':
			out.WriteString(" or ")
			i++
		case c == '!' && i+1 < n && expr[i+1] == '=':
			out.WriteString("!=")
			i++
			if i+1 < n && expr[i+1] == '=' {
				i++
			}
		case c == '!':
			out.WriteString("not ")
		case c == '=' && i+1 < n && expr[i+1] == '=':
			out.WriteString("==")
			i++
			if i+1 < n && expr[i+1] == '=' {
				i++
			}
		case c == '=' && i > 0 && strings.IndexByte("<>", expr[i-1]) >= 0:
			out.WriteByte(c)
		case c == '=':
			out.WriteString("==")
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
