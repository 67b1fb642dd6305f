package assetgen

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// Asset is one file flowing through a pipeline.  It starts out as a copy of
// a source file and is rewritten in place by each stage until the final
// stage writes it to a destination directory.
type Asset struct {
	// Path of the file relative to the project root, slash separated.
	// Stages that rename the output (eg .scss -> .css) update it.
	Path string

	// The static part of the source glob this asset was matched by.  The
	// output location is Dest + Path relative to Base.
	Base string

	// Current contents.
	Content []byte

	// Modification time of the source file.
	ModTime time.Time

	// Stage specific annotations (eg declared script prerequisites).
	Meta map[string]any
}

// RelPath returns the path relative to the asset's base.
func (a *Asset) RelPath() string {
	if a.Base == "" {
		return a.Path
	}
	return strings.TrimPrefix(a.Path, a.Base+"/")
}

// Ext returns the extension of the asset's current path.
func (a *Asset) Ext() string {
	return path.Ext(a.Path)
}

// Returns the path without the extension.  With all set, every extension is
// removed ("a.min.css" -> "a").
func (a *Asset) WithoutExt(all bool) string {
	out := a.Path
	for {
		ext := path.Ext(out)
		if ext == "" {
			break
		}
		out = out[:len(out)-len(ext)]
		if !all {
			break
		}
	}
	return out
}

// SetExt replaces the extension of the asset's path.
func (a *Asset) SetExt(ext string) {
	a.Path = a.WithoutExt(false) + ext
}

// Rename sets the file name to basename + suffix, keeping the directory and
// the extension.
func (a *Asset) Rename(basename, suffix string) {
	a.Path = path.Join(path.Dir(a.Path), basename+suffix+a.Ext())
}

// SetMeta stores a stage annotation.
func (a *Asset) SetMeta(key string, value any) {
	if a.Meta == nil {
		a.Meta = make(map[string]any)
	}
	a.Meta[key] = value
}

// Stream is the ordered list of assets a pipeline works on.
type Stream []*Asset

// Size returns the combined content size in bytes.
func (s Stream) Size() (total int64) {
	for _, a := range s {
		total += int64(len(a.Content))
	}
	return
}

// Paths returns the current path of every asset.
func (s Stream) Paths() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = a.Path
	}
	return out
}

// ReadSources walks the static base of the glob and loads every matching
// file.  A base directory that does not exist gives an empty stream.  Assets
// are sorted by path.
func ReadSources(afs afero.Fs, root string, spec PathSpec) (Stream, error) {
	m, err := CompileGlob(spec.Src)
	if err != nil {
		return nil, err
	}

	walkRoot := filepath.Join(root, filepath.FromSlash(m.Base))
	if _, err := afs.Stat(walkRoot); err != nil {
		if eris.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "failed to stat %s", walkRoot)
	}

	var out Stream
	err = afero.Walk(afs, walkRoot, func(fullpath string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, fullpath)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !m.Match(rel) {
			return nil
		}
		data, err := afero.ReadFile(afs, fullpath)
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", rel)
		}
		out = append(out, &Asset{
			Path:    rel,
			Base:    m.Base,
			Content: data,
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to walk %s", walkRoot)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
