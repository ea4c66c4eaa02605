package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhle/mailtrace/internal/auth"
	"github.com/nhle/mailtrace/internal/credential"
	"github.com/nhle/mailtrace/internal/model"
	"github.com/nhle/mailtrace/internal/sender"
	"github.com/nhle/mailtrace/internal/store"
	"github.com/nhle/mailtrace/internal/tracker"
	"github.com/nhle/mailtrace/internal/web"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	db, err := store.NewSQLiteStore(cfg.Database)
	if err != nil {
		logger.Error("open database", "path", cfg.Database, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// The session-signing secret lives in the keyring so sessions
	// survive restarts. Falling back to an ephemeral secret keeps the
	// server usable on hosts without a writable keyring.
	secret, err := credential.GetOrCreate("session-secret")
	if err != nil {
		logger.Warn("keyring unavailable; sessions reset on restart", "error", err)
		secret = ""
	}

	sessions, err := auth.New(secret, time.Duration(cfg.Server.SessionTTLHours)*time.Hour)
	if err != nil {
		logger.Error("init sessions", "error", err)
		os.Exit(1)
	}

	ledger := tracker.New(db)
	send := sender.New(cfg.Mail, cfg.Server.BaseURL, ledger, db, logger)
	server := web.NewServer(cfg, db, ledger, send, sessions, logger)

	httpSrv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown http", "error", err)
	}
}
