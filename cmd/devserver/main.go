// Command devserver runs a local marketplace backend for the guardian client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/foodguardian/internal/auth"
	"github.com/mmynk/foodguardian/internal/config"
	"github.com/mmynk/foodguardian/internal/devserver"
	"github.com/mmynk/foodguardian/internal/middleware"
	"github.com/mmynk/foodguardian/internal/storage/sqlite"
	"github.com/mmynk/foodguardian/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.ParseServer(os.Args[1:])
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}
	if cfg.EphemeralSecret {
		slog.Warn("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	api := devserver.New(store, auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		devserver.WithMetrics(middleware.NewMetrics(reg)),
		devserver.WithLogger(slog.Default()),
	)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", api.Handler())

	// h2c lets HTTP/2 clients talk to the server without TLS.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Dev server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
