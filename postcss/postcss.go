package postcss

import (
	"github.com/rotisserie/eris"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

// Options selects the post-processing passes.
type Options struct {
	Autoprefix     bool
	Browsers       []string
	RemFallback    bool
	RootPx         float64
	PseudoElements bool
	MQPacker       bool
	Minify         bool
}

// DefaultOptions enables every pass with a 16px root.
func DefaultOptions() Options {
	return Options{
		Autoprefix:     true,
		Browsers:       DefaultBrowsers,
		RemFallback:    true,
		RootPx:         16,
		PseudoElements: true,
		MQPacker:       true,
		Minify:         true,
	}
}

// Process parses src, applies the selected passes and serializes the
// result.
func Process(src []byte, opts Options) ([]byte, error) {
	if opts.Autoprefix {
		prefixed, err := Autoprefix(src, opts.Browsers)
		if err != nil {
			return nil, err
		}
		src = prefixed
	}
	sheet, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if opts.RemFallback {
		RemFallback(sheet, opts.RootPx)
	}
	if opts.PseudoElements {
		PseudoElements(sheet)
	}
	if opts.MQPacker {
		PackMediaQueries(sheet)
	}
	out := sheet.Bytes()
	if opts.Minify {
		return Minify(out)
	}
	return out, nil
}

// CleanCSS removes redundant rules and minifies.
func CleanCSS(src []byte) ([]byte, error) {
	sheet, err := Parse(src)
	if err != nil {
		return nil, err
	}
	Clean(sheet)
	return Minify(sheet.Bytes())
}

var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	// CSS2 compatibility keeps the single colon pseudo-elements.
	m.Add("text/css", &css.Minifier{KeepCSS2: true})
	return m
}

// Minify minifies a stylesheet.
func Minify(src []byte) ([]byte, error) {
	out, err := minifier.Bytes("text/css", src)
	if err != nil {
		return nil, eris.Wrap(err, "failed to minify stylesheet")
	}
	return out, nil
}
