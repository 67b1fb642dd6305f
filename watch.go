package assetgen

import (
	"context"
	"path/filepath"
	"time"

	"github.com/radovskyb/watcher"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultDebounce     = 300 * time.Millisecond
)

// Watch logs the banner and re-runs a category's pipeline whenever a file
// matching its source glob changes.  Changes are collected for a short while
// before a run so a burst of saves triggers one run.  Runs of one category
// never overlap; different categories run independently.  Pipeline failures
// are logged and watching continues.  Watch returns when ctx is done.
//
// Watching polls the OS filesystem regardless of Project.Fs.
func (p *Project) Watch(ctx context.Context) error {
	if !p.initialized {
		if err := p.Init(); err != nil {
			return err
		}
	}
	ctx = withTask(ctx, TaskWatch)
	Logger(ctx).Info().Msg(p.Banner())

	group, ctx := errgroup.WithContext(ctx)
	for _, c := range Categories {
		c := c
		group.Go(func() error {
			return p.watchCategory(ctx, c)
		})
	}
	err := group.Wait()
	if eris.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Project) watchCategory(ctx context.Context, c Category) error {
	spec := p.Spec(c)
	m, err := CompileGlob(spec.Src)
	if err != nil {
		return err
	}
	dir := p.Path(m.Base)

	w := watcher.New()
	w.FilterOps(watcher.Create, watcher.Write, watcher.Remove, watcher.Rename, watcher.Move)
	if err := w.AddRecursive(dir); err != nil {
		Logger(ctx).Warn().Str("category", string(c)).Str("dir", dir).Err(err).Msg("not watching")
		<-ctx.Done()
		return nil
	}
	defer closeWatcher(w)

	started := make(chan error, 1)
	go func() {
		started <- w.Start(p.pollInterval())
	}()
	Logger(ctx).Info().Str("category", string(c)).Str("src", spec.Src).Msg("watching")

	ticker := time.NewTicker(p.debounce())
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-started:
			if err != nil {
				return eris.Wrapf(err, "failed to watch %s", dir)
			}
			return nil
		case err := <-w.Error:
			Logger(ctx).Warn().Str("category", string(c)).Err(err).Msg("watch error")
		case event := <-w.Event:
			if event.IsDir() {
				continue
			}
			rel, err := filepath.Rel(p.root, event.Path)
			if err != nil || !m.Match(filepath.ToSlash(rel)) {
				continue
			}
			Logger(ctx).Debug().Str("path", filepath.ToSlash(rel)).Str("op", event.Op.String()).Msg("changed")
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			dirty = false
			if _, err := p.RunCategory(ctx, c); err != nil {
				Logger(ctx).Error().Str("category", string(c)).Msg(eris.ToString(err, false))
			}
		}
	}
}

// closeWatcher stops w, draining events it may be blocked on delivering.
func closeWatcher(w *watcher.Watcher) {
	go w.Close()
	timeout := time.After(time.Second)
	for {
		select {
		case <-w.Event:
		case <-w.Error:
		case <-w.Closed:
			return
		case <-timeout:
			return
		}
	}
}

func (p *Project) pollInterval() time.Duration {
	if p.PollInterval > 0 {
		return p.PollInterval
	}
	return defaultPollInterval
}

func (p *Project) debounce() time.Duration {
	if p.Debounce > 0 {
		return p.Debounce
	}
	return defaultDebounce
}
