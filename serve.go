package assetgen

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rotisserie/eris"
)

// Handler serves the output directory.
func (p *Project) Handler(ctx context.Context) http.Handler {
	router := mux.NewRouter()
	router.PathPrefix("/").Handler(http.FileServer(http.Dir(p.Path(p.Config.OutputDir))))
	return withRequestLog(ctx, router)
}

// Serve serves the output directory on addr until ctx is done.
func (p *Project) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:           p.Handler(ctx),
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		Logger(ctx).Info().Str("addr", addr).Str("dir", p.Config.OutputDir).Msg("serving")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return eris.Wrapf(err, "failed to serve on %s", addr)
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return eris.Wrap(err, "shutdown failed")
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrapf(err, "failed to serve on %s", addr)
	}
	return nil
}

func withRequestLog(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		m := httpsnoop.CaptureMetrics(handler, writer, request)
		Logger(ctx).Debug().
			Int("status", m.Code).
			Dur("elapsed", m.Duration).
			Int64("bytes", m.Written).
			Msg(request.URL.Path)
	})
}
