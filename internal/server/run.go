package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run serves until SIGINT/SIGTERM, then shuts down gracefully. When
// the operations listener is enabled it serves /metrics and /healthz
// on its own address. Watched files only produce a restart warning;
// configuration never reloads live.
func (s *Server) Run(watchPaths ...string) error {
	cfg := s.cfg

	main := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      s,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var ops *http.Server
	if cfg.Ops.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.collector.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		ops = &http.Server{Addr: cfg.Ops.Address, Handler: mux}
	}

	var watcher *config.Watcher
	if len(watchPaths) > 0 {
		var err error
		watcher, err = config.NewWatcher(watchPaths...)
		if err != nil {
			logging.Warn("file watcher unavailable", zap.Error(err))
		} else {
			watcher.OnChange(func(path string) {
				logging.Warn("configuration file changed on disk; restart required to apply",
					zap.String("path", path),
				)
			})
			watcher.Start()
			defer watcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("listening", zap.String("address", main.Addr))
		if err := main.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if ops != nil {
		g.Go(func() error {
			logging.Info("operations listener", zap.String("address", ops.Addr))
			if err := ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		logging.Info("shutting down")
		if ops != nil {
			ops.Shutdown(shutdownCtx)
		}
		return main.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Close()
	return err
}
