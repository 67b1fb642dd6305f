package assetgen

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fs afero.Fs, name, content string, modTime time.Time) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	if !modTime.IsZero() {
		require.NoError(t, fs.Chtimes(name, modTime, modTime))
	}
}

func TestReadSources(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/src/b.js", "b", time.Time{})
	writeFile(t, fs, "/proj/src/lib/a.js", "a", time.Time{})
	writeFile(t, fs, "/proj/src/style.scss", "", time.Time{})

	stream, err := ReadSources(fs, "/proj", PathSpec{Src: "src/**/*.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/b.js", "src/lib/a.js"}, stream.Paths())
	assert.Equal(t, "lib/a.js", stream[1].RelPath())
	assert.Equal(t, int64(2), stream.Size())

	stream, err = ReadSources(fs, "/proj", PathSpec{Src: "missing/**/*.js"})
	require.NoError(t, err)
	assert.Empty(t, stream)
}

func TestAssetPaths(t *testing.T) {
	a := &Asset{Path: "src/css/site.min.scss", Base: "src"}
	assert.Equal(t, ".scss", a.Ext())
	assert.Equal(t, "src/css/site.min", a.WithoutExt(false))
	assert.Equal(t, "src/css/site", a.WithoutExt(true))

	a.SetExt(".css")
	assert.Equal(t, "src/css/site.min.css", a.Path)
	a.Rename("main", ".min")
	assert.Equal(t, "src/css/main.min.css", a.Path)
	assert.Equal(t, "css/main.min.css", a.RelPath())
}

func TestNewerDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	old := time.Now().Add(-time.Hour)
	writeFile(t, fs, "/proj/build/fresh.html", "", time.Time{})
	writeFile(t, fs, "/proj/build/stale.html", "", old)

	in := Stream{
		{Path: "src/fresh.html", Base: "src", ModTime: old},
		{Path: "src/stale.html", Base: "src", ModTime: time.Now()},
		{Path: "src/new.html", Base: "src", ModTime: old},
	}
	out, err := Newer(fs, "/proj", StalenessTarget{Dir: "build"}).Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/stale.html", "src/new.html"}, out.Paths())
}

func TestNewerFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Now()
	stage := Newer(fs, "/proj", StalenessTarget{File: "build/main.min.js"})
	in := Stream{
		{Path: "src/a.js", ModTime: now.Add(-2 * time.Hour)},
		{Path: "src/b.js", ModTime: now.Add(-2 * time.Hour)},
	}

	// no bundle yet
	out, err := stage.Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	writeFile(t, fs, "/proj/build/main.min.js", "", now.Add(-time.Hour))
	out, err = stage.Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, out)

	// one changed source rebuilds the whole bundle
	in[1].ModTime = now
	out, err = stage.Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestConcatAndRename(t *testing.T) {
	newest := time.Now()
	in := Stream{
		{Path: "src/a.css", Base: "src", Content: []byte("a{}"), ModTime: newest.Add(-time.Minute)},
		{Path: "src/b.css", Base: "src", Content: []byte("b{}"), ModTime: newest},
	}
	out, err := Concat("main.css", "\n").Apply(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "main.css", out[0].Path)
	assert.Equal(t, "a{}\nb{}", string(out[0].Content))
	assert.True(t, out[0].ModTime.Equal(newest))

	out, err = Rename("site", ".min").Apply(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "site.min.css", out[0].Path)
}

func TestDest(t *testing.T) {
	fs := afero.NewMemMapFs()
	in := Stream{{Path: "src/public/blog/index.html", Base: "src/public", Content: []byte("<p>")}}
	_, err := Dest(fs, "/proj", "build/").Apply(context.Background(), in)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/proj/build/blog/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>", string(data))
}

func TestEachAssetReportsPath(t *testing.T) {
	stage := EachAsset("fail", func(ctx context.Context, a *Asset) error {
		if a.Path == "b" {
			return assert.AnError
		}
		return nil
	})
	_, err := stage.Apply(context.Background(), Stream{{Path: "a"}, {Path: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPipelineStopsOnEmptyStream(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/src/a.txt", "a", time.Time{})

	reached := false
	p := &Pipeline{
		Category: CategoryHTML,
		Spec:     PathSpec{Src: "src/*.txt", Dest: "out"},
		Fs:       fs,
		Root:     "/proj",
		Stages: []Stage{
			NewStage("drop", func(ctx context.Context, in Stream) (Stream, error) { return nil, nil }),
			NewStage("after", func(ctx context.Context, in Stream) (Stream, error) {
				reached = true
				return in, nil
			}),
		},
	}
	out, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.False(t, reached)

	p.Stages = []Stage{NewStage("boom", func(ctx context.Context, in Stream) (Stream, error) {
		return nil, assert.AnError
	})}
	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "html: boom")
}
