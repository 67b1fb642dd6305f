package preprocess_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/assetgen/preprocess"
)

func devContext() preprocess.Context {
	return preprocess.Context{
		"NODE_ENV": "development",
		"DEBUG":    false,
		"author":   "Jane Doe",
		"version":  "1.2.3",
	}
}

func TestEval(t *testing.T) {
	ctx := devContext()
	tests := []struct {
		expr string
		want bool
	}{
		{"NODE_ENV='development'", true},
		{"NODE_ENV = 'production'", false},
		{`NODE_ENV == "development"`, true},
		{"NODE_ENV === 'development'", true},
		{"NODE_ENV != 'production'", true},
		{"NODE_ENV !== 'development'", false},
		{"DEBUG", false},
		{"!DEBUG", true},
		{"!DEBUG && version == '1.2.3'", true},
		{"DEBUG || NODE_ENV == 'x'", false},
		{"(DEBUG || true) && author", true},
		{"UNDEFINED", false},
		{"!UNDEFINED", true},
		{"  !DEBUG ", true},
		{"(!DEBUG)", true},
		{"DEBUG||!DEBUG", true},
		{"!!DEBUG", false},
		{"'a=b' == 'a=b'", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := preprocess.Eval(tt.expr, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalInvalid(t *testing.T) {
	for _, expr := range []string{"", "DEBUG &&", "(a", "a b c"} {
		_, err := preprocess.Eval(expr, devContext())
		assert.Error(t, err, expr)
	}
}

func TestProcessConditionals(t *testing.T) {
	src := `<body>
<!-- @if NODE_ENV='production' -->
<script src="analytics.js"></script>
<!-- @else -->
<p>dev build</p>
<!-- @endif -->
<!-- @ifdef DEBUG -->
<p>debug is defined</p>
<!-- @endif -->
<!-- @ifndef author -->
<p>anonymous</p>
<!-- @endif -->
</body>`

	out, err := preprocess.Process("index.html", []byte(src), preprocess.Options{Context: devContext()})
	require.NoError(t, err)
	got := string(out)
	assert.NotContains(t, got, "analytics.js")
	assert.Contains(t, got, "<p>dev build</p>")
	assert.Contains(t, got, "<p>debug is defined</p>")
	assert.NotContains(t, got, "anonymous")
	assert.NotContains(t, got, "@if")
}

func TestProcessNested(t *testing.T) {
	src := `<!-- @if !DEBUG -->a<!-- @if version='1.2.3' -->b<!-- @else -->c<!-- @endif -->d<!-- @endif -->`
	out, err := preprocess.Process("", []byte(src), preprocess.Options{Context: devContext()})
	require.NoError(t, err)
	assert.Equal(t, "abd", string(out))
}

func TestProcessEchoAndExclude(t *testing.T) {
	src := "<meta name=\"author\" content=\"<!-- @echo author -->\">\n" +
		"<!-- @exclude -->\n<p>never shipped</p>\n<!-- @endexclude -->\n" +
		"<!-- @exclude DEBUG -->kept<!-- @endexclude -->\n" +
		"v<!-- @echo version --><!-- @echo missing -->"
	out, err := preprocess.Process("", []byte(src), preprocess.Options{Context: devContext()})
	require.NoError(t, err)
	got := string(out)
	assert.Contains(t, got, `content="Jane Doe"`)
	assert.NotContains(t, got, "never shipped")
	assert.Contains(t, got, "kept")
	assert.True(t, strings.HasSuffix(got, "v1.2.3"))
}

func TestProcessPreservesWhitespace(t *testing.T) {
	src := "<div>\n    <!-- @ifdef DEBUG -->\n    <span>  spaced  </span>\n    <!-- @endif -->\n</div>\n"
	out, err := preprocess.Process("", []byte(src), preprocess.Options{Context: devContext()})
	require.NoError(t, err)
	assert.Equal(t, "<div>\n    \n    <span>  spaced  </span>\n    \n</div>\n", string(out))
}

func TestProcessErrors(t *testing.T) {
	tests := map[string]struct {
		src  string
		want error
	}{
		"missing endif":     {"<!-- @if DEBUG -->x", preprocess.ErrUnbalanced},
		"stray endif":       {"x<!-- @endif -->", preprocess.ErrUnbalanced},
		"endexclude for if": {"<!-- @if DEBUG -->x<!-- @endexclude -->", preprocess.ErrUnbalanced},
		"unknown":           {"<!-- @frobnicate -->", preprocess.ErrUnknown},
		"if without expr":   {"<!-- @if -->x<!-- @endif -->", preprocess.ErrMissingArgs},
		"include disabled":  {"<!-- @include a.html -->", preprocess.ErrIncludeUnready},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := preprocess.Process("page.html", []byte(tt.src), preprocess.Options{Context: devContext()})
			require.Error(t, err)
			var derr *preprocess.DirectiveError
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, "page.html", derr.File)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}

func TestProcessBadExpressionReportsLine(t *testing.T) {
	src := "line1\nline2\n<!-- @if DEBUG && -->x<!-- @endif -->"
	_, err := preprocess.Process("page.html", []byte(src), preprocess.Options{Context: devContext()})
	var derr *preprocess.DirectiveError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, 3, derr.Line)
	assert.Equal(t, "if", derr.Directive)
}

func TestProcessInclude(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "partials"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partials", "footer.html"),
		[]byte(`<footer>v<!-- @echo version --><!-- @include note.txt --></footer>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partials", "note.txt"), []byte("!"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intro.md"), []byte("# Hi"), 0o644))

	opts := preprocess.Options{
		Context:  devContext(),
		Dir:      dir,
		ReadFile: os.ReadFile,
		Renderers: map[string]func([]byte) ([]byte, error){
			".md": func(src []byte) ([]byte, error) {
				return []byte("<h1>" + strings.TrimPrefix(string(src), "# ") + "</h1>"), nil
			},
		},
	}
	out, err := preprocess.Process("index.html", []byte(`<!-- @include intro.md --><!-- @include "partials/footer.html" -->`), opts)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hi</h1><footer>v1.2.3!</footer>", string(out))
}

func TestProcessIncludeDepth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "self.html"), []byte(`<!-- @include self.html -->`), 0o644))
	_, err := preprocess.Process("self.html", []byte(`<!-- @include self.html -->`), preprocess.Options{
		Dir:      dir,
		ReadFile: os.ReadFile,
		MaxDepth: 4,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, preprocess.ErrIncludeDepth))
}
