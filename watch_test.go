package assetgen

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchRebuildsChangedCategory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	cfg := DefaultConfig()
	cfg.Root = root
	cfg.EnvFile = ""
	p := NewProject(cfg)
	p.Mode = Development
	p.PollInterval = 20 * time.Millisecond
	p.Debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()

	// give the watchers time to take their first snapshot
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.js"), []byte("var app = 1;"), 0o644))

	bundle := filepath.Join(root, "build", "main.min.js")
	require.Eventually(t, func() bool {
		_, err := os.Stat(bundle)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	// unrelated files do not trigger a run
	_, err := os.Stat(filepath.Join(root, "build", "index.html"))
	assert.True(t, os.IsNotExist(err))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestHandlerServesOutput(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "build", "index.html"), []byte("<p>hi</p>"), 0o644))

	cfg := DefaultConfig()
	cfg.Root = root
	p := NewProject(cfg)
	require.NoError(t, p.Init())

	srv := httptest.NewServer(p.Handler(context.Background()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<p>hi</p>", string(body))

	missing, err := http.Get(srv.URL + "/nope.css")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
