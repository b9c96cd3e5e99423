package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/hooklog/internal/api"
	"github.com/gyaneshwarpardhi/hooklog/internal/config"
	"github.com/gyaneshwarpardhi/hooklog/internal/eventlog"
	"github.com/gyaneshwarpardhi/hooklog/internal/store"
)

func main() {
	cfgPath := flag.String("config", "configs/hooklog.yaml", "Path to YAML config (optional; env overrides)")
	flag.Parse()

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Logging.Level))
	slog.SetDefault(newLogger(cfg.Logging.Format, level))

	// ── Event log ────────────────────────────────────────────────────────────
	fileStore := store.NewFileStore(cfg.Log.Path)
	persister := store.NewPersister(fileStore)
	events := eventlog.Open(fileStore, persister, cfg.Log.Capacity)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		level.Set(parseLevel(newCfg.Logging.Level))
		if newCfg.Log.Capacity != events.Capacity() || newCfg.Log.Path != fileStore.Path() {
			slog.Warn("log capacity/path changed; restart to apply",
				"capacity", newCfg.Log.Capacity, "path", newCfg.Log.Path)
		}
		if newCfg.Server.Addr != cfg.Server.Addr || newCfg.Server.WebhookPath != cfg.Server.WebhookPath {
			slog.Warn("server addr/webhook path changed; restart to apply",
				"addr", newCfg.Server.Addr, "webhook_path", newCfg.Server.WebhookPath)
		}
		slog.Info("config hot-reloaded")
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(events, loader.Config, persister.Err)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr, "webhook_path", cfg.Server.WebhookPath, "events_file", cfg.Log.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	events.Close() // flush the newest snapshot
	slog.Info("goodbye")
}

func newLogger(format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
