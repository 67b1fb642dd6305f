package assetgen

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	TaskClean = "clean"
	TaskBuild = "build"
	TaskWatch = "watch"
)

// Tasks lists the task names Run accepts.
func Tasks() []string {
	out := []string{TaskClean}
	for _, c := range Categories {
		out = append(out, string(c))
	}
	return append(out, TaskBuild, TaskWatch)
}

// Run executes a task by name.
func (p *Project) Run(ctx context.Context, task string) error {
	if !p.initialized {
		if err := p.Init(); err != nil {
			return err
		}
	}
	switch task {
	case TaskClean:
		return p.Clean(ctx)
	case TaskBuild:
		return p.Build(ctx)
	case TaskWatch:
		return p.Watch(ctx)
	}
	for _, c := range Categories {
		if string(c) == task {
			_, err := p.RunCategory(ctx, c)
			return err
		}
	}
	return eris.Wrapf(ErrUnknownTask, "%q (expected one of %s)", task, strings.Join(Tasks(), ", "))
}

// Clean logs the banner and removes the output directory.  A missing
// directory is not an error.
func (p *Project) Clean(ctx context.Context) error {
	return p.runTask(ctx, TaskClean, func(ctx context.Context) (Stream, error) {
		Logger(ctx).Info().Msg(p.Banner())
		out := p.Path(p.Config.OutputDir)
		if err := p.Fs.RemoveAll(out); err != nil {
			return nil, eris.Wrapf(err, "failed to remove %s", out)
		}
		Logger(ctx).Debug().Str("path", out).Msg("removed")
		return nil, nil
	})
}

// BuildGraph returns the build task graph: clean, then every category
// pipeline in parallel.
func (p *Project) BuildGraph() (*TaskGraph, error) {
	g := NewTaskGraph()
	g.Hooks = p.Hooks
	if err := g.Add(TaskClean, p.Clean); err != nil {
		return nil, err
	}
	for _, c := range Categories {
		c := c
		run := func(ctx context.Context) error {
			_, err := p.RunCategory(ctx, c)
			return err
		}
		if err := g.Add(string(c), run, TaskClean); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Build runs the build graph.  Failures of individual pipelines are
// combined into the returned error.
func (p *Project) Build(ctx context.Context) error {
	g, err := p.BuildGraph()
	if err != nil {
		return err
	}
	ctx = withTask(ctx, TaskBuild)
	Logger(ctx).Info().Str("mode", p.Mode.String()).Msg("starting")
	return g.Run(ctx)
}

// outputInsideRoot checks that the clean task cannot remove anything outside
// the project or the project itself.
func outputInsideRoot(outputDir string) bool {
	clean := filepath.Clean(filepath.FromSlash(outputDir))
	if clean == "." || filepath.IsAbs(clean) {
		return false
	}
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
