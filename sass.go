package assetgen

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bep/godartsass/v2"
	"github.com/bep/golibsass/libsass"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// SassCompiler compiles one scss entry point to css.
type SassCompiler interface {
	// Compile compiles src, whose root relative path is relpath.  Imports
	// are resolved relative to the file and then the include paths.
	Compile(relpath string, src []byte) ([]byte, error)

	Close() error
}

func newSassCompiler(p *Project) (SassCompiler, error) {
	opts := p.Config.Styles
	includes := make([]string, 0, len(opts.IncludePaths))
	for _, inc := range opts.IncludePaths {
		includes = append(includes, p.Path(inc))
	}
	switch opts.Compiler {
	case "dartsass":
		return NewDartSass(p.root, opts.DartSassBinary, includes)
	default:
		return NewLibSass(p.Fs, p.root, opts.Precision, includes), nil
	}
}

// LibSass compiles with the in-process libsass library.  Imports are read
// through the afero filesystem.
type LibSass struct {
	fs        afero.Fs
	root      string
	precision int
	includes  []string
}

// NewLibSass creates a libsass backed compiler.
func NewLibSass(fs afero.Fs, root string, precision int, includePaths []string) *LibSass {
	return &LibSass{fs: fs, root: root, precision: precision, includes: includePaths}
}

func (l *LibSass) Compile(relpath string, src []byte) ([]byte, error) {
	fullpath := filepath.Join(l.root, filepath.FromSlash(relpath))
	t, err := libsass.New(libsass.Options{
		OutputStyle:  libsass.CompressedStyle,
		Precision:    l.precision,
		IncludePaths: l.includes,
		SassSyntax:   strings.EqualFold(path.Ext(relpath), ".sass"),
		ImportResolver: func(url, prev string) (string, string, bool) {
			dir := filepath.Dir(fullpath)
			if filepath.IsAbs(prev) {
				dir = filepath.Dir(prev)
			}
			return resolveSassImport(l.fs, url, append([]string{dir}, l.includes...))
		},
		SourceMapOptions: libsass.SourceMapOptions{InputPath: fullpath},
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to create libsass transpiler")
	}
	res, err := t.Execute(string(src))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to compile %s", relpath)
	}
	return []byte(res.CSS), nil
}

func (l *LibSass) Close() error { return nil }

// resolveSassImport finds the file an @import refers to, trying the partial
// and extension variants in each directory.
func resolveSassImport(fs afero.Fs, url string, dirs []string) (string, string, bool) {
	if strings.Contains(url, "://") || strings.HasSuffix(url, ".css") || strings.HasPrefix(url, "url(") {
		return "", "", false
	}
	dir, base := path.Split(url)
	candidates := []string{url}
	if path.Ext(base) == "" {
		candidates = []string{
			path.Join(dir, base+".scss"),
			path.Join(dir, "_"+base+".scss"),
			path.Join(dir, base+".sass"),
			path.Join(dir, "_"+base+".sass"),
			path.Join(dir, base, "_index.scss"),
		}
	} else if !strings.HasPrefix(base, "_") {
		candidates = append(candidates, path.Join(dir, "_"+base))
	}
	for _, d := range dirs {
		for _, c := range candidates {
			full := filepath.Join(d, filepath.FromSlash(c))
			if data, err := afero.ReadFile(fs, full); err == nil {
				return full, string(data), true
			}
		}
	}
	return "", "", false
}

// DartSass compiles with an embedded dart-sass process.  Dart sass reads
// imports from the OS filesystem.
type DartSass struct {
	root       string
	includes   []string
	transpiler *godartsass.Transpiler
}

// NewDartSass starts the dart-sass binary.  An empty binary name looks for
// sass on the PATH.
func NewDartSass(root, binary string, includePaths []string) (*DartSass, error) {
	t, err := godartsass.Start(godartsass.Options{DartSassEmbeddedFilename: binary})
	if err != nil {
		return nil, eris.Wrap(err, "failed to start dart-sass")
	}
	return &DartSass{root: root, includes: includePaths, transpiler: t}, nil
}

func (d *DartSass) Compile(relpath string, src []byte) ([]byte, error) {
	fullpath := filepath.Join(d.root, filepath.FromSlash(relpath))
	syntax := godartsass.SourceSyntaxSCSS
	if strings.EqualFold(path.Ext(relpath), ".sass") {
		syntax = godartsass.SourceSyntaxSASS
	}
	res, err := d.transpiler.Execute(godartsass.Args{
		Source:       string(src),
		URL:          "file://" + filepath.ToSlash(fullpath),
		SourceSyntax: syntax,
		OutputStyle:  godartsass.OutputStyleCompressed,
		IncludePaths: append([]string{filepath.Dir(fullpath)}, d.includes...),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to compile %s", relpath)
	}
	return []byte(res.CSS), nil
}

func (d *DartSass) Close() error {
	return d.transpiler.Close()
}
