// deskcanvas server
//
// Backend for the browser-based canvas file browser:
// - one watched directory at a time, navigable from the client
// - WebSocket session streaming whole-directory snapshots
// - per-directory icon layout persisted in a hidden sidecar file
// - image thumbnails, Prometheus metrics, structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/deskcanvas/deskcanvas/internal/api"
	"github.com/deskcanvas/deskcanvas/internal/config"
	"github.com/deskcanvas/deskcanvas/internal/layout"
	"github.com/deskcanvas/deskcanvas/internal/logging"
	"github.com/deskcanvas/deskcanvas/internal/metrics"
	"github.com/deskcanvas/deskcanvas/internal/session"
	"github.com/deskcanvas/deskcanvas/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("deskcanvas server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("root", cfg.RootDir))

	nav, err := session.NewNavigator(cfg.RootDir)
	if err != nil {
		logging.Fatal("navigator init failed", zap.Error(err))
	}
	store := layout.NewStore()
	builder := snapshot.NewBuilder(store)

	srv := api.NewServer(nav, builder, store, cfg.ThumbMaxSize)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logging.Error("server shutdown error", zap.Error(err))
		}
		if err := metricsServer.Shutdown(ctx); err != nil {
			logging.Error("metrics server shutdown error", zap.Error(err))
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
