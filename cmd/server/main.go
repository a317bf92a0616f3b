package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loadxpress/loadxpress/internal/account"
	"github.com/loadxpress/loadxpress/internal/api"
	"github.com/loadxpress/loadxpress/internal/captcha"
	"github.com/loadxpress/loadxpress/internal/config"
	"github.com/loadxpress/loadxpress/internal/credential"
	"github.com/loadxpress/loadxpress/internal/logger"
	"github.com/loadxpress/loadxpress/internal/mailer"
	"github.com/loadxpress/loadxpress/internal/orders"
	"github.com/loadxpress/loadxpress/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger, err := logger.New(cfg.App.LogLevel, !cfg.IsProd())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		appLogger.Error("open database failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Error("redis unreachable", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	repo := store.NewRepositoryManager(db)
	codes := store.NewCodesStore(rdb)

	mail := mailer.New(&cfg.Email, cfg.App.SiteURL, appLogger)

	lifecycleOpts := []account.Option{
		account.WithMailer(mail),
		account.WithLogger(appLogger),
	}

	if cfg.Captcha.Secret != "" {
		lifecycleOpts = append(lifecycleOpts, account.WithCaptcha(
			captcha.New(cfg.Captcha.Secret, cfg.Captcha.Hostnames),
		))
	}

	if cfg.Google.ClientID != "" {
		verifier, err := credential.NewGoogleVerifier(cfg.Google.ClientID,
			credential.WithGoogleLogger(appLogger),
		)
		if err != nil {
			appLogger.Error("google verifier init failed", "error", err)
			os.Exit(1)
		}
		lifecycleOpts = append(lifecycleOpts, account.WithIdentityVerifier(verifier))
	}

	lifecycle := account.NewLifecycle(repo.Users(), codes, lifecycleOpts...)

	reseller := orders.NewResellerClient(
		cfg.Reseller.BaseURL,
		cfg.Reseller.Token,
		orders.WithResellerLogger(appLogger),
	)
	orderSvc := orders.NewService(repo, repo.Users(), repo.Transactions(), reseller,
		orders.WithServiceLogger(appLogger))

	srv := api.NewServer(cfg, appLogger, rdb, repo, lifecycle, orderSvc)

	go func() {
		appLogger.Info("server listening", "addr", cfg.App.HTTPAddr)
		if err := srv.Listen(); err != nil {
			appLogger.Error("server run failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", "error", err)
	}
}
