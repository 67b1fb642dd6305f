package assetgen

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// Pipeline is the fixed chain of stages a category runs every time it is
// invoked: the sources matched by Spec are read and handed through Stages in
// order.  The last stage is normally Dest.
type Pipeline struct {
	Category Category
	Spec     PathSpec
	Fs       afero.Fs
	Root     string
	Stages   []Stage
}

// Run executes the pipeline once and returns the stream produced by the last
// stage.  A stage that empties the stream ends the run early.
func (p *Pipeline) Run(ctx context.Context) (Stream, error) {
	stream, err := ReadSources(p.Fs, p.Root, p.Spec)
	if err != nil {
		return nil, panicOrError(eris.Wrapf(err, "%s: failed to read sources", p.Category))
	}
	if len(stream) == 0 {
		Logger(ctx).Debug().Str("src", p.Spec.Src).Msg("no sources")
		return nil, nil
	}

	for _, stage := range p.Stages {
		stream, err = stage.Apply(ctx, stream)
		if err != nil {
			return nil, panicOrError(eris.Wrapf(err, "%s: %s", p.Category, stage.Name()))
		}
		if len(stream) == 0 {
			Logger(ctx).Info().Str("stage", stage.Name()).Msg("nothing to do")
			return nil, nil
		}
	}
	return stream, nil
}
