package postcss

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rotisserie/eris"
)

// DefaultBrowsers are the engines prefixes are generated for when none are
// configured.
var DefaultBrowsers = []string{"chrome49", "edge15", "firefox52", "ie11", "ios10", "safari10"}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var browserRe = regexp.MustCompile(`^([a-z]+)\s*(\d+(?:\.\d+){0,2})$`)

// ParseBrowsers turns entries such as "safari10" or "chrome 49.1" into
// esbuild engines.
func ParseBrowsers(browsers []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(browsers))
	for _, b := range browsers {
		m := browserRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(b)))
		if m == nil {
			return nil, eris.Errorf("invalid browser %q", b)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, eris.Errorf("unknown browser %q", m[1])
		}
		engines = append(engines, api.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

// Autoprefix adds the vendor prefixed declarations the given browsers need,
// using esbuild's compatibility tables.  Prefixed variants already present
// in a rule are not added again.
func Autoprefix(src []byte, browsers []string) ([]byte, error) {
	if len(browsers) == 0 {
		browsers = DefaultBrowsers
	}
	engines, err := ParseBrowsers(browsers)
	if err != nil {
		return nil, err
	}
	result := api.Transform(string(src), api.TransformOptions{
		Loader:   api.LoaderCSS,
		Engines:  engines,
		LogLevel: api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, m := range result.Errors {
			msgs[i] = m.Text
			if m.Location != nil {
				msgs[i] = fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column+1, m.Text)
			}
		}
		return nil, eris.Errorf("failed to prefix stylesheet: %s", strings.Join(msgs, "; "))
	}
	return result.Code, nil
}
