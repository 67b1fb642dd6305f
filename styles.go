package assetgen

import (
	"context"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/panyam/assetgen/postcss"
)

func (p *Project) styleStages() []Stage {
	opts := p.Config.Styles
	stages := append([]Stage{Size("styles - in")}, p.newer(CategoryStyles)...)
	return append(stages,
		Sass(func() (SassCompiler, error) { return p.NewSassCompiler(p) }),
		Concat(opts.Basename+".css", "\n"),
		CleanCSS(),
		Pleeease(postcss.Options{
			Autoprefix:     opts.Autoprefix,
			Browsers:       opts.Browsers,
			RemFallback:    opts.RootPx > 0,
			RootPx:         opts.RootPx,
			PseudoElements: opts.PseudoElements,
			MQPacker:       opts.MQPacker,
			Minify:         opts.Minifier,
		}),
		Rename(opts.Basename, opts.Suffix),
		Size("styles - out"),
		Dest(p.Fs, p.root, p.Spec(CategoryStyles).Dest),
	)
}

// isPartial reports whether a sass file is only meant to be imported.
func isPartial(relpath string) bool {
	return strings.HasPrefix(path.Base(relpath), "_")
}

// Sass compiles every entry point in the stream to css and drops the
// partials.  The first compile error aborts the stage.
func Sass(newCompiler func() (SassCompiler, error)) Stage {
	return NewStage("sass", func(ctx context.Context, in Stream) (Stream, error) {
		var entries Stream
		for _, a := range in {
			if !isPartial(a.Path) {
				entries = append(entries, a)
			}
		}
		if len(entries) == 0 {
			return nil, nil
		}

		compiler, err := newCompiler()
		if err != nil {
			return nil, err
		}
		defer compiler.Close()

		for _, a := range entries {
			out, err := compiler.Compile(a.Path, a.Content)
			if err != nil {
				return nil, err
			}
			Logger(ctx).Debug().Str("path", a.Path).Msg("compiled")
			a.Content = out
			a.SetExt(".css")
		}
		return entries, nil
	})
}

// CleanCSS removes redundant rules from each stylesheet and minifies it.
func CleanCSS() Stage {
	return EachAsset("cleancss", func(ctx context.Context, a *Asset) (err error) {
		a.Content, err = postcss.CleanCSS(a.Content)
		return
	})
}

// Pleeease runs the post-processing passes over each stylesheet.
func Pleeease(opts postcss.Options) Stage {
	return EachAsset("pleeease", func(ctx context.Context, a *Asset) error {
		out, err := postcss.Process(a.Content, opts)
		if err != nil {
			return eris.Wrap(err, "post-processing failed")
		}
		a.Content = out
		return nil
	})
}
