package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgerbank/internal/cache"
	"ledgerbank/internal/config"
	"ledgerbank/internal/db"
	"ledgerbank/internal/handlers"
	"ledgerbank/internal/logging"
	"ledgerbank/internal/models"
	"ledgerbank/internal/repository"
	"ledgerbank/internal/scheduler"
	"ledgerbank/internal/services"
	"ledgerbank/internal/websocket"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL, 10*time.Second)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	txRunner := db.NewTxRunner(database)
	repo := repository.NewAccountRepository(database, txRunner)

	var listCache services.ListCache = cache.Noop[[]models.Account]{}
	if cfg.CacheEnabled() {
		client, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, account list cache disabled")
		} else {
			defer client.Close()
			listCache = cache.NewViewCache[[]models.Account](client, "ledgerbank:", cfg.CacheTTL, logger)
		}
	}

	hub := websocket.NewHub()
	service := services.NewAccountService(txRunner, repo, listCache, hub, logger)

	if cfg.SeedAdmin() {
		created, err := service.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName)
		if err != nil {
			logger.WithError(err).Fatal("failed to seed admin account")
		}
		if created {
			logger.WithField("email", cfg.AdminEmail).Info("seeded admin account")
		}
	}

	sweeper, err := scheduler.New(cfg.OverdueSweepSchedule, service, logger, 30*time.Second)
	if err != nil {
		logger.WithError(err).Fatal("invalid overdue sweep schedule")
	}
	sweeper.Start()

	handler := handlers.New(cfg, service, websocket.NewServer(hub, cfg.AllowedOrigins, logger), logger)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler.Routes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"addr": server.Addr, "env": cfg.AppEnv}).Info("ledger API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
	sweeper.Stop(shutdownCtx)
	logger.Info("ledger API stopped")
}
