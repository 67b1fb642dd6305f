package assetgen

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestTaskGraphRunsInOrder(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	task := func(name string) TaskFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, name)
			return nil
		}
	}

	g := NewTaskGraph()
	require.NoError(t, g.Add("clean", task("clean")))
	require.NoError(t, g.Add("styles", task("styles"), "clean"))
	require.NoError(t, g.Add("scripts", task("scripts"), "clean"))
	require.NoError(t, g.Add("deploy", task("deploy"), "styles", "scripts"))

	order, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "scripts", "styles", "deploy"}, order)

	require.NoError(t, g.Run(context.Background()))
	require.Len(t, ran, 4)
	assert.Equal(t, "clean", ran[0])
	assert.Equal(t, "deploy", ran[3])
	for _, name := range order {
		assert.Equal(t, TaskSucceeded, g.State(name), name)
	}
}

func TestTaskGraphFailureSkipsDependents(t *testing.T) {
	errStyles := errors.New("styles broke")
	errScripts := errors.New("scripts broke")
	ok := func(ctx context.Context) error { return nil }

	hooks := NewHookRegistry()
	var mu sync.Mutex
	var skipped []string
	hooks.OnTaskEnd(func(info RunInfo) {
		mu.Lock()
		defer mu.Unlock()
		if info.Skipped {
			skipped = append(skipped, info.Task)
		}
	})

	g := NewTaskGraph()
	g.Hooks = hooks
	require.NoError(t, g.Add("clean", ok))
	require.NoError(t, g.Add("styles", func(ctx context.Context) error { return errStyles }, "clean"))
	require.NoError(t, g.Add("scripts", func(ctx context.Context) error { return errScripts }, "clean"))
	require.NoError(t, g.Add("html", ok, "clean"))
	require.NoError(t, g.Add("deploy", ok, "styles", "html"))

	err := g.Run(context.Background())
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Equal(t, errScripts, errs[0])
	assert.Equal(t, errStyles, errs[1])

	assert.Equal(t, TaskSucceeded, g.State("html"))
	assert.Equal(t, TaskFailed, g.State("styles"))
	assert.Equal(t, TaskSkipped, g.State("deploy"))
	assert.Equal(t, "skipped", g.State("deploy").String())
	assert.Equal(t, []string{"deploy"}, skipped)
}

func TestTaskGraphAddErrors(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	g := NewTaskGraph()
	require.NoError(t, g.Add("a", ok))

	assert.Error(t, g.Add("a", ok))

	err := g.Add("b", ok, "missing")
	assert.True(t, errors.Is(err, ErrUnknownTask), err)

	err = g.Add("c", ok, "c")
	assert.True(t, errors.Is(err, ErrDependencyCycle), err)
}
