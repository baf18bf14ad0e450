package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hyperengineering/pocportal/internal/api"
	"github.com/hyperengineering/pocportal/internal/config"
	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/store"
	"github.com/hyperengineering/pocportal/internal/worker"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "pocportal",
	Short:        "POC portal - proof-of-concept lifecycle tracking service",
	RunE:         run,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(setRegionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	slog.SetDefault(slog.New(newLogHandler(os.Stdout, cfg.Log)))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)
	if cfg.Auth.APISecret == "" {
		slog.Warn("API authentication disabled", "component", "auth", "reason", "dev_mode")
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	classifier := lifecycle.NewClassifier(cfg.ClassifierPolicy())

	handler := api.NewHandler(db, classifier, cfg.Auth.APISecret, Version, cfg.Location())
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)
	slog.Info("router initialized", "cors_origins", len(cfg.CORS.AllowedOrigins))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	var wg sync.WaitGroup
	if cfg.Worker.RiskSnapshotSchedule != "" {
		schedule, err := config.ParseSchedule(cfg.Worker.RiskSnapshotSchedule)
		if err != nil {
			db.Close()
			return err
		}
		riskWorker := worker.NewRiskSnapshotWorker(db, classifier, schedule, cfg.Location())
		startWorker(ctx, &wg, "risk-snapshot", riskWorker.Run)
	} else {
		slog.Info("risk snapshot worker disabled")
	}

	go func() {
		slog.Info("server starting", "address", addr, "version", Version)
		// ErrServerClosed is expected after Shutdown; anything else is fatal.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// Drain in-flight requests, then workers, then the store.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	wg.Wait()
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newLogHandler builds the process log handler. JSON unless format is "text".
func newLogHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine tracked by wg.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker launched", "worker", name)
		fn(ctx)
		slog.Info("worker exited", "worker", name)
	}()
}
