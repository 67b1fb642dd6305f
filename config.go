package assetgen

import (
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/morrisxyang/xreflect"
	gut "github.com/panyam/goutils/utils"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v2"

	"github.com/panyam/assetgen/postcss"
)

// Category identifies one of the asset pipelines.
type Category string

const (
	CategoryHTML    Category = "html"
	CategoryImages  Category = "images"
	CategoryStyles  Category = "styles"
	CategoryScripts Category = "scripts"
)

// Categories lists every pipeline category in a stable order.
var Categories = []Category{CategoryHTML, CategoryImages, CategoryStyles, CategoryScripts}

// Staleness policies.
const (
	// Each pipeline compares its sources against its own destination.
	StalenessOwn = "own"

	// Every pipeline compares against the images destination directory,
	// file by file.
	StalenessImages = "images"
)

// PathSpec ties a category to the glob its sources are read from and the
// directory its outputs are written to.  Both are relative to the project
// root and use forward slashes.
type PathSpec struct {
	Category Category `toml:"-" yaml:"-"`
	Src      string   `toml:"src" yaml:"src"`
	Dest     string   `toml:"dest" yaml:"dest"`
}

// PathTable holds the PathSpec of every category.
type PathTable struct {
	HTML    PathSpec `toml:"html" yaml:"html"`
	Images  PathSpec `toml:"images" yaml:"images"`
	Styles  PathSpec `toml:"styles" yaml:"styles"`
	Scripts PathSpec `toml:"scripts" yaml:"scripts"`
}

// Get returns the spec for a category with its Category field filled in.
func (t *PathTable) Get(c Category) (spec PathSpec, ok bool) {
	switch c {
	case CategoryHTML:
		spec, ok = t.HTML, true
	case CategoryImages:
		spec, ok = t.Images, true
	case CategoryStyles:
		spec, ok = t.Styles, true
	case CategoryScripts:
		spec, ok = t.Scripts, true
	}
	spec.Category = c
	return
}

// ImageOptions configure the per-format image encoders.
type ImageOptions struct {
	JPEGQuality          int  `toml:"jpeg_quality" yaml:"jpeg_quality"`
	PNGOptimizationLevel int  `toml:"png_optimization_level" yaml:"png_optimization_level"`
	SVGRemoveViewBox     bool `toml:"svg_remove_viewbox" yaml:"svg_remove_viewbox"`
	SVGCleanupIDs        bool `toml:"svg_cleanup_ids" yaml:"svg_cleanup_ids"`
}

// StyleOptions configure sass compilation and the css post-processing passes.
type StyleOptions struct {
	// Either "libsass" (in process) or "dartsass" (needs DartSassBinary).
	Compiler       string   `toml:"compiler" yaml:"compiler"`
	DartSassBinary string   `toml:"dart_sass_binary" yaml:"dart_sass_binary"`
	Precision      int      `toml:"precision" yaml:"precision"`
	IncludePaths   []string `toml:"include_paths" yaml:"include_paths"`

	// The output is renamed to Basename + Suffix + ".css"
	Basename string `toml:"basename" yaml:"basename"`
	Suffix   string `toml:"suffix" yaml:"suffix"`

	Autoprefix bool `toml:"autoprefix" yaml:"autoprefix"`
	// Browsers to prefix for, such as "safari10" or "chrome 49"
	Browsers []string `toml:"browsers" yaml:"browsers"`

	RootPx         float64 `toml:"root_px" yaml:"root_px"`
	PseudoElements bool    `toml:"pseudo_elements" yaml:"pseudo_elements"`
	MQPacker       bool    `toml:"mqpacker" yaml:"mqpacker"`
	Minifier       bool    `toml:"minifier" yaml:"minifier"`
}

// ScriptOptions configure the scripts pipeline.
type ScriptOptions struct {
	// esbuild target, eg es2015, es2017, esnext
	Target    string   `toml:"target" yaml:"target"`
	Bundle    string   `toml:"bundle" yaml:"bundle"`
	Lint      bool     `toml:"lint" yaml:"lint"`
	LintRules []string `toml:"lint_rules" yaml:"lint_rules"`
}

// Config is everything a Project needs to know about the layout of a
// repository and the knobs of its pipelines.  DefaultConfig returns the
// standard layout; a toml or yaml file can override any of it.
type Config struct {
	// Root of the project.  All other paths are relative to it.
	Root string `toml:"root" yaml:"root"`

	// Directory removed by the clean task.
	OutputDir string `toml:"output_dir" yaml:"output_dir"`

	// Package descriptor providing name, version and author.
	PackageFile string `toml:"package_file" yaml:"package_file"`

	// Dotenv file consulted for NODE_ENV when it is not set.
	EnvFile string `toml:"env_file" yaml:"env_file"`

	// One of StalenessOwn or StalenessImages.
	Staleness string `toml:"staleness" yaml:"staleness"`

	Paths   PathTable     `toml:"paths" yaml:"paths"`
	Images  ImageOptions  `toml:"images" yaml:"images"`
	Styles  StyleOptions  `toml:"styles" yaml:"styles"`
	Scripts ScriptOptions `toml:"scripts" yaml:"scripts"`
}

// DefaultConfig returns the standard project layout.
func DefaultConfig() *Config {
	return &Config{
		Root:        ".",
		OutputDir:   "build",
		PackageFile: "package.json",
		EnvFile:     ".env",
		Staleness:   StalenessOwn,
		Paths: PathTable{
			HTML:    PathSpec{Src: "src/public/**/*.html", Dest: "build/"},
			Images:  PathSpec{Src: "src/assets/**/*.{jpg,jpeg,png}", Dest: "build/assets/"},
			Styles:  PathSpec{Src: "src/**/*.scss", Dest: "build/"},
			Scripts: PathSpec{Src: "src/**/*.js", Dest: "build/"},
		},
		Images: ImageOptions{
			JPEGQuality:          75,
			PNGOptimizationLevel: 5,
			SVGRemoveViewBox:     true,
			SVGCleanupIDs:        false,
		},
		Styles: StyleOptions{
			Compiler:       "libsass",
			Precision:      3,
			Basename:       "main",
			Suffix:         ".min",
			Autoprefix:     true,
			Browsers:       slices.Clone(postcss.DefaultBrowsers),
			RootPx:         16,
			PseudoElements: true,
			MQPacker:       true,
			Minifier:       true,
		},
		Scripts: ScriptOptions{
			Target:    "es2015",
			Bundle:    "main.min.js",
			Lint:      true,
			LintRules: []string{"eqeqeq", "debugger", "with"},
		},
	}
}

// LoadConfig returns the default config overlaid with the contents of the
// given file.  The format is picked from the extension (.toml, .yaml, .yml).
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	path = gut.ExpandUserPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read config %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, eris.Wrapf(err, "invalid toml in %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, eris.Wrapf(err, "invalid yaml in %s", path)
		}
	default:
		return nil, eris.Errorf("unsupported config format %s", path)
	}
	return cfg, cfg.Validate()
}

// ApplyOverrides sets fields from "Field.Path=value" pairs, eg
// "Scripts.Target=es2017" or "Styles.RootPx=10".  The value is parsed
// according to the field's type; lists are comma separated.
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, kv := range overrides {
		pos := strings.Index(kv, "=")
		if pos <= 0 {
			return eris.Errorf("override %q is not of the form Field=value", kv)
		}
		field, raw := strings.TrimSpace(kv[:pos]), kv[pos+1:]

		typ, err := xreflect.EmbedFieldType(c, field)
		if err != nil {
			return eris.Wrapf(err, "cannot override %s", field)
		}
		value, err := parseOverride(typ, raw)
		if err != nil {
			return eris.Wrapf(err, "cannot set %s to %q", field, raw)
		}
		if err := xreflect.SetEmbedField(c, field, value.Interface()); err != nil {
			return eris.Wrapf(err, "cannot set %s to %q", field, raw)
		}
	}
	return c.Validate()
}

// parseOverride parses raw into a value of type typ.
func parseOverride(typ reflect.Type, raw string) (reflect.Value, error) {
	v := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return v, eris.Wrap(err, "not a bool")
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, typ.Bits())
		if err != nil {
			return v, eris.Wrap(err, "not an integer")
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), typ.Bits())
		if err != nil {
			return v, eris.Wrap(err, "not a number")
		}
		v.SetFloat(f)
	case reflect.Slice:
		if typ.Elem().Kind() != reflect.String {
			return v, eris.Errorf("unsupported list type %s", typ)
		}
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		list := reflect.MakeSlice(typ, len(items), len(items))
		for i, item := range items {
			list.Index(i).SetString(item)
		}
		v.Set(list)
	default:
		return v, eris.Errorf("unsupported field type %s", typ)
	}
	return v, nil
}

// Validate checks the values that would otherwise fail deep inside a
// pipeline run.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return eris.New("output_dir must not be empty")
	}
	if !outputInsideRoot(c.OutputDir) {
		return eris.Errorf("output_dir %q must be a directory inside the project root", c.OutputDir)
	}
	switch c.Staleness {
	case StalenessOwn, StalenessImages:
	default:
		return eris.Errorf("unknown staleness policy %q", c.Staleness)
	}
	for _, cat := range Categories {
		spec, _ := c.Paths.Get(cat)
		if spec.Src == "" || spec.Dest == "" {
			return eris.Errorf("paths.%s needs both src and dest", cat)
		}
		if _, err := CompileGlob(spec.Src); err != nil {
			return eris.Wrapf(err, "paths.%s.src", cat)
		}
	}
	if _, err := postcss.ParseBrowsers(c.Styles.Browsers); err != nil {
		return eris.Wrap(err, "styles.browsers")
	}
	switch c.Styles.Compiler {
	case "libsass", "dartsass":
	default:
		return eris.Errorf("unknown sass compiler %q", c.Styles.Compiler)
	}
	return nil
}
