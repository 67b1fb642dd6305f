package assetgen

import (
	"bytes"
	"context"
	"io/fs"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// Stage is one step of a pipeline.  It receives the stream produced by the
// previous stage and returns the stream for the next one.  Stages may drop,
// rewrite, merge or rename assets.
type Stage interface {
	Name() string
	Apply(ctx context.Context, in Stream) (Stream, error)
}

type stageFunc struct {
	name string
	fn   func(ctx context.Context, in Stream) (Stream, error)
}

func (s *stageFunc) Name() string { return s.name }

func (s *stageFunc) Apply(ctx context.Context, in Stream) (Stream, error) {
	return s.fn(ctx, in)
}

// NewStage wraps a function working on the whole stream.
func NewStage(name string, fn func(ctx context.Context, in Stream) (Stream, error)) Stage {
	return &stageFunc{name: name, fn: fn}
}

// EachAsset builds a stage that applies fn to every asset in turn.  The first
// failure stops the stage and is reported with the asset's path.
func EachAsset(name string, fn func(ctx context.Context, a *Asset) error) Stage {
	return NewStage(name, func(ctx context.Context, in Stream) (Stream, error) {
		for _, a := range in {
			if err := fn(ctx, a); err != nil {
				return nil, eris.Wrapf(err, "%s", a.Path)
			}
		}
		return in, nil
	})
}

// Size logs the number of assets and their combined size under the given
// title, leaving the stream untouched.
func Size(title string) Stage {
	return NewStage("size", func(ctx context.Context, in Stream) (Stream, error) {
		Logger(ctx).Info().
			Str("title", title).
			Int("files", len(in)).
			Int64("bytes", in.Size()).
			Msgf("%s %d files, %s", title, len(in), units.HumanSize(float64(in.Size())))
		return in, nil
	})
}

// StalenessTarget names what the sources of a pipeline are compared against.
// With File set, all sources are compared to that single file (bundles);
// otherwise each source is compared to its counterpart under Dir.
type StalenessTarget struct {
	Dir  string
	File string
}

// Newer drops sources whose output is already up to date.
//
// For a directory target an asset passes when Dir/<relpath> does not exist
// or is older than the asset.  For a file target every asset passes if any
// of them is newer than the file (or the file is missing), otherwise none do.
func Newer(afs afero.Fs, root string, target StalenessTarget) Stage {
	return NewStage("newer", func(ctx context.Context, in Stream) (Stream, error) {
		if target.File != "" {
			info, err := afs.Stat(filepath.Join(root, filepath.FromSlash(target.File)))
			if err != nil {
				if eris.Is(err, fs.ErrNotExist) {
					return in, nil
				}
				return nil, eris.Wrapf(err, "failed to stat %s", target.File)
			}
			for _, a := range in {
				if a.ModTime.After(info.ModTime()) {
					return in, nil
				}
			}
			Logger(ctx).Debug().Str("path", target.File).Msg("bundle is up to date")
			return nil, nil
		}

		var out Stream
		for _, a := range in {
			destpath := filepath.Join(root, filepath.FromSlash(target.Dir), filepath.FromSlash(a.RelPath()))
			info, err := afs.Stat(destpath)
			if err != nil {
				if !eris.Is(err, fs.ErrNotExist) {
					return nil, eris.Wrapf(err, "failed to stat %s", destpath)
				}
				out = append(out, a)
				continue
			}
			if a.ModTime.After(info.ModTime()) {
				out = append(out, a)
			} else {
				Logger(ctx).Debug().Str("path", a.Path).Msg("up to date")
			}
		}
		return out, nil
	})
}

// Dest writes every asset to dir/<relpath>, creating directories as needed.
func Dest(afs afero.Fs, root string, dir string) Stage {
	return EachAsset("dest", func(ctx context.Context, a *Asset) error {
		destpath := filepath.Join(root, filepath.FromSlash(dir), filepath.FromSlash(a.RelPath()))
		if err := afs.MkdirAll(filepath.Dir(destpath), 0o755); err != nil {
			return eris.Wrapf(err, "failed to create %s", filepath.Dir(destpath))
		}
		if err := afero.WriteFile(afs, destpath, a.Content, 0o644); err != nil {
			return eris.Wrapf(err, "failed to write %s", destpath)
		}
		Logger(ctx).Debug().Str("path", destpath).Msg("wrote")
		return nil
	})
}

// Concat joins every asset into a single asset named name, in stream order,
// separating contents with sep.  The result carries the newest modification
// time of its parts.
func Concat(name, sep string) Stage {
	return NewStage("concat", func(ctx context.Context, in Stream) (Stream, error) {
		out := &Asset{Path: name}
		var buf bytes.Buffer
		for i, a := range in {
			if i > 0 {
				buf.WriteString(sep)
			}
			buf.Write(a.Content)
			if a.ModTime.After(out.ModTime) {
				out.ModTime = a.ModTime
			}
		}
		out.Content = buf.Bytes()
		return Stream{out}, nil
	})
}

// Rename sets every asset's file name to basename + suffix, keeping its
// directory and extension.
func Rename(basename, suffix string) Stage {
	return EachAsset("rename", func(ctx context.Context, a *Asset) error {
		a.Rename(basename, suffix)
		return nil
	})
}
