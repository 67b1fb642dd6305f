package assetgen

import (
	"context"
	"path"
	"path/filepath"
	"time"

	gut "github.com/panyam/goutils/utils"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// Project is a repository whose assets are built: the configuration, the
// build mode and the package descriptor, plus the filesystem everything is
// read from and written to.  It is read only once initialized and is shared
// by all concurrently running pipelines.
type Project struct {
	Config  *Config
	Mode    Mode
	Package PackageInfo

	// Filesystem holding the project.  Defaults to the OS filesystem.
	Fs afero.Fs

	// Disables the staleness filter so every source is rebuilt.
	Force bool

	Hooks *HookRegistry

	// How often watch polls for changes, and how long it collects changes
	// before running a pipeline.
	PollInterval time.Duration
	Debounce     time.Duration

	// Creates the sass compiler used by a styles run.  Defaults to the
	// backend named by Config.Styles.Compiler.
	NewSassCompiler func(p *Project) (SassCompiler, error)

	root        string
	initialized bool
}

// NewProject creates a project for the given config (the default layout
// when nil).  The build mode is read from NODE_ENV, falling back to the
// project's dotenv file.
func NewProject(cfg *Config) *Project {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	root := gut.ExpandUserPath(cfg.Root)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	p := &Project{
		Config: cfg,
		Fs:     afero.NewOsFs(),
		Hooks:  NewHookRegistry(),
		root:   root,
	}
	envFile := ""
	if cfg.EnvFile != "" {
		envFile = filepath.Join(root, cfg.EnvFile)
	}
	p.Mode = ModeFromEnv(envFile)
	return p
}

// Init validates the configuration and loads the package descriptor.
func (p *Project) Init() error {
	if err := p.Config.Validate(); err != nil {
		return err
	}
	if p.Fs == nil {
		p.Fs = afero.NewOsFs()
	}
	if p.NewSassCompiler == nil {
		p.NewSassCompiler = newSassCompiler
	}
	if p.Config.PackageFile != "" {
		info, err := LoadPackageInfo(p.Fs, p.Path(p.Config.PackageFile))
		if err != nil {
			return err
		}
		p.Package = info
	}
	p.initialized = true
	return nil
}

// Root returns the absolute project root.
func (p *Project) Root() string {
	return p.root
}

// Path returns the filesystem path of a root relative, slash separated path.
func (p *Project) Path(relpath string) string {
	return filepath.Join(p.root, filepath.FromSlash(relpath))
}

// Spec returns the path spec of a category.
func (p *Project) Spec(c Category) PathSpec {
	spec, _ := p.Config.Paths.Get(c)
	return spec
}

// Banner is the line logged at the start of clean and watch.
func (p *Project) Banner() string {
	return p.Package.Banner(p.Mode)
}

// stalenessTarget returns what a category's sources are compared against.
func (p *Project) stalenessTarget(c Category) StalenessTarget {
	if p.Config.Staleness == StalenessImages {
		return StalenessTarget{Dir: p.Config.Paths.Images.Dest}
	}
	spec := p.Spec(c)
	switch c {
	case CategoryStyles:
		return StalenessTarget{File: path.Join(spec.Dest, p.styleBundleName())}
	case CategoryScripts:
		return StalenessTarget{File: path.Join(spec.Dest, p.Config.Scripts.Bundle)}
	}
	return StalenessTarget{Dir: spec.Dest}
}

func (p *Project) styleBundleName() string {
	return p.Config.Styles.Basename + p.Config.Styles.Suffix + ".css"
}

// newer returns the staleness filter of a category, or nothing when forced.
func (p *Project) newer(c Category) []Stage {
	if p.Force {
		return nil
	}
	return []Stage{Newer(p.Fs, p.root, p.stalenessTarget(c))}
}

// Pipeline assembles the pipeline of a category for the project's mode.
func (p *Project) Pipeline(c Category) (*Pipeline, error) {
	if !p.initialized {
		if err := p.Init(); err != nil {
			return nil, err
		}
	}
	var stages []Stage
	switch c {
	case CategoryHTML:
		stages = p.htmlStages()
	case CategoryImages:
		stages = p.imageStages()
	case CategoryStyles:
		stages = p.styleStages()
	case CategoryScripts:
		stages = p.scriptStages()
	default:
		return nil, eris.Wrapf(ErrUnknownTask, "%s", c)
	}
	return &Pipeline{
		Category: c,
		Spec:     p.Spec(c),
		Fs:       p.Fs,
		Root:     p.root,
		Stages:   stages,
	}, nil
}

// RunCategory runs the pipeline of one category once.
func (p *Project) RunCategory(ctx context.Context, c Category) (out Stream, err error) {
	pipeline, err := p.Pipeline(c)
	if err != nil {
		return nil, err
	}
	err = p.runTask(ctx, string(c), func(ctx context.Context) (Stream, error) {
		out, err = pipeline.Run(ctx)
		return out, err
	})
	return out, err
}

// runTask wraps a task body with start and finish logging and hooks.
func (p *Project) runTask(ctx context.Context, name string, fn func(ctx context.Context) (Stream, error)) error {
	ctx = withTask(ctx, name)
	info := RunInfo{Task: name, Mode: p.Mode, Started: time.Now()}
	p.Hooks.emitTaskStart(info)
	Logger(ctx).Info().Msg("starting")

	elapsed, err := timed(func() error {
		var err error
		info.Outputs, err = fn(ctx)
		return err
	})
	info.Duration, info.Err = elapsed, err
	if err != nil {
		Logger(ctx).Error().Err(err).Dur("elapsed", elapsed).Msg("failed")
	} else {
		Logger(ctx).Info().Dur("elapsed", elapsed).Msgf("finished after %s", elapsed.Round(time.Millisecond))
	}
	p.Hooks.emitTaskEnd(info)
	return err
}
