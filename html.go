package assetgen

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"

	"github.com/adrg/frontmatter"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/panyam/assetgen/preprocess"
)

// HTMLContext returns the variables visible to html directives.
func (p *Project) HTMLContext() preprocess.Context {
	return preprocess.Context{
		"NODE_ENV": p.Mode.String(),
		"DEBUG":    !p.Mode.IsDev(),
		"author":   p.Package.Author,
		"version":  p.Package.Version,
	}
}

func (p *Project) htmlStages() []Stage {
	stages := append([]Stage{Size("html - in")}, p.newer(CategoryHTML)...)
	stages = append(stages,
		Preprocess(p.Fs, p.root, p.HTMLContext()),
	)
	if !p.Mode.IsDev() {
		stages = append(stages, EachAsset("htmlmin", func(ctx context.Context, a *Asset) (err error) {
			a.Content, err = MinifyHTML(a.Content)
			return
		}))
	}
	return append(stages,
		Size("html - out"),
		Dest(p.Fs, p.root, p.Spec(CategoryHTML).Dest),
	)
}

// Preprocess applies html directives to every asset.  A page may start with
// front matter whose keys extend the context for that page; the front matter
// is removed from the output.  Included files are read relative to the page
// and markdown includes are rendered to html first.
func Preprocess(afs afero.Fs, root string, base preprocess.Context) Stage {
	renderers := map[string]func([]byte) ([]byte, error){
		".md":       RenderMarkdown,
		".markdown": RenderMarkdown,
	}
	readFile := func(path string) ([]byte, error) {
		return afero.ReadFile(afs, path)
	}

	return EachAsset("preprocess", func(ctx context.Context, a *Asset) error {
		matter := map[string]any{}
		body, err := frontmatter.Parse(bytes.NewReader(a.Content), &matter)
		if err != nil {
			return eris.Wrap(err, "invalid front matter")
		}
		vars := base
		if len(matter) > 0 {
			vars = base.Merge(matter)
			a.SetMeta("frontmatter", matter)
		}

		out, err := preprocess.Process(a.Path, body, preprocess.Options{
			Context:   vars,
			Dir:       filepath.Dir(filepath.Join(root, filepath.FromSlash(a.Path))),
			ReadFile:  readFile,
			Renderers: renderers,
		})
		if err != nil {
			return err
		}
		a.Content = out
		return nil
	})
}

var htmlMinifier = newHTMLMinifier()

func newHTMLMinifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDefaultAttrVals: true,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
	})
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	return m
}

// MinifyHTML removes whitespace and comments from markup while keeping every
// element, end tag, attribute quote and default attribute value.
func MinifyHTML(src []byte) ([]byte, error) {
	out, err := htmlMinifier.Bytes("text/html", src)
	if err != nil {
		return nil, eris.Wrap(err, "failed to minify html")
	}
	return out, nil
}
