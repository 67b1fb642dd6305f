package postcss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Stylesheet {
	t.Helper()
	sheet, err := Parse([]byte(src))
	require.NoError(t, err)
	return sheet
}

func TestParseAndSerialize(t *testing.T) {
	sheet := mustParse(t, `
/* header */
@import url(x.css);
a { color : red ; }
@media screen and (max-width: 600px) {
  ul li { margin: 0 auto }
}
@font-face { font-family: Foo; src: url(foo.woff) }
`)
	assert.Equal(t,
		"@import url(x.css);a{color:red;}@media screen and (max-width:600px){ul li{margin:0 auto;}}@font-face{font-family:Foo;src:url(foo.woff);}",
		sheet.String())
}

func TestParseError(t *testing.T) {
	_, err := Parse([]byte(`a{color red}`))
	assert.Error(t, err)
}

func prefixed(t *testing.T, src string, browsers []string) string {
	t.Helper()
	out, err := Autoprefix([]byte(src), browsers)
	require.NoError(t, err)
	return mustParse(t, string(out)).String()
}

func TestAutoprefix(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		browsers []string
		want     string
	}{
		{
			"user-select",
			`.a{user-select:none}`,
			nil,
			".a{-webkit-user-select:none;-moz-user-select:-moz-none;-ms-user-select:none;user-select:none;}",
		},
		{
			"sticky value",
			`.s{position:sticky}`,
			nil,
			".s{position:-webkit-sticky;position:sticky;}",
		},
		{
			"existing prefix kept",
			`.c{-webkit-user-select:text;user-select:text}`,
			nil,
			".c{-webkit-user-select:text;-moz-user-select:text;-ms-user-select:text;user-select:text;}",
		},
		{
			"unprefixed property untouched",
			`.d{color:red}`,
			nil,
			".d{color:red;}",
		},
		{
			"newer browsers need fewer",
			`.e{user-select:none;position:sticky}`,
			[]string{"chrome120", "safari17"},
			".e{-webkit-user-select:none;user-select:none;position:sticky;}",
		},
		{
			"firefox only",
			`.f{user-select:none}`,
			[]string{"firefox 60"},
			".f{-moz-user-select:-moz-none;user-select:none;}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prefixed(t, tt.src, tt.browsers))
		})
	}
}

func TestParseBrowsers(t *testing.T) {
	engines, err := ParseBrowsers([]string{"Chrome 49", "safari10.1", "ie11"})
	require.NoError(t, err)
	require.Len(t, engines, 3)
	assert.Equal(t, "49", engines[0].Version)
	assert.Equal(t, "10.1", engines[1].Version)

	_, err = ParseBrowsers([]string{"netscape4"})
	assert.Error(t, err)
	_, err = ParseBrowsers([]string{"chrome"})
	assert.Error(t, err)
}

func TestAutoprefixUnknownBrowser(t *testing.T) {
	_, err := Autoprefix([]byte(`.a{}`), []string{"mosaic1"})
	assert.Error(t, err)

	_, err = Process([]byte(`.a{}`), Options{Autoprefix: true, Browsers: []string{"mosaic1"}})
	assert.Error(t, err)
}

func TestRemFallback(t *testing.T) {
	sheet := mustParse(t, `p{font-size:1.5rem;margin:0 .5rem}h1{font-size:20px;font-size:1rem}@media print{p{padding:2rem}}`)
	RemFallback(sheet, 16)
	assert.Equal(t,
		"p{font-size:24px;font-size:1.5rem;margin:0 8px;margin:0 .5rem;}h1{font-size:20px;font-size:1rem;}@media print{p{padding:32px;padding:2rem;}}",
		sheet.String())
}

func TestPseudoElements(t *testing.T) {
	sheet := mustParse(t, `a::before,p::first-line{color:red}b::selection{color:blue}`)
	PseudoElements(sheet)
	assert.Equal(t, "a:before,p:first-line{color:red;}b::selection{color:blue;}", sheet.String())
}

func TestPackMediaQueries(t *testing.T) {
	sheet := mustParse(t, `@media (min-width:1px){a{x:1}}b{x:2}@media (min-width:1px){c{x:3}}@media print{d{x:4}}`)
	PackMediaQueries(sheet)
	assert.Equal(t, "b{x:2;}@media (min-width:1px){a{x:1;}c{x:3;}}@media print{d{x:4;}}", sheet.String())
}

func TestClean(t *testing.T) {
	sheet := mustParse(t, `a{color:red}a{color:red;margin:0}b{}c{x:1;x:1}@media print{e{}}`)
	Clean(sheet)
	assert.Equal(t, "a{color:red;margin:0;}c{x:1;}", sheet.String())
}

func TestCleanCSS(t *testing.T) {
	out, err := CleanCSS([]byte(`a{color:red}a{margin:0px}`))
	require.NoError(t, err)
	assert.Equal(t, "a{color:red;margin:0}", string(out))
}

func TestProcess(t *testing.T) {
	out, err := Process([]byte(`@media print{a{color:red}}a::after{user-select:none;width:1rem}`), DefaultOptions())
	require.NoError(t, err)
	got := string(out)
	assert.Contains(t, got, "a:after{")
	assert.Contains(t, got, "-webkit-user-select:none")
	assert.Contains(t, got, "width:16px")
	assert.Regexp(t, `@media print\{a\{color:red\}\}$`, got)
}

func TestProcessDisabled(t *testing.T) {
	out, err := Process([]byte(`a::after{width:1rem}`), Options{})
	require.NoError(t, err)
	assert.Equal(t, "a::after{width:1rem;}", string(out))
}
