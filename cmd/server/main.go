package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/randgate/backend/internal/bot"
	"github.com/randgate/backend/internal/config"
	"github.com/randgate/backend/internal/handler"
	"github.com/randgate/backend/internal/logger"
	appMiddleware "github.com/randgate/backend/internal/middleware"
	"github.com/randgate/backend/internal/repository"
	"github.com/randgate/backend/internal/service"
	"github.com/randgate/backend/pkg/payment"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "randgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db, cfg.Database.Driver); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	log.Info("database connected and migrated", zap.String("driver", cfg.Database.Driver))

	entRepo := repository.NewEntitlementRepository(db)
	var store service.EntitlementStore = entRepo
	var cachePinger handler.Pinger
	if cfg.Redis.Addr != "" {
		rdb, err := repository.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis error: %w", err)
		}
		defer rdb.Close()
		store = repository.NewEntitlementCache(entRepo, rdb, cfg.Redis.TTL, log)
		cachePinger = handler.PingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Info("entitlement cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize services
	gateway := payment.NewFaucetPay(cfg.Payment.BaseURL, cfg.Payment.Timeout)
	validator := service.NewIPNValidator(service.IPNValidatorConfig{
		MerchantUsername: cfg.Payment.MerchantUsername,
		Amount:           cfg.Payment.Amount,
		Currency:         cfg.Payment.Currency,
		EnforceAmount:    cfg.Payment.EnforceAmount,
		LookupTimeout:    cfg.Payment.Timeout,
	}, gateway)
	entSvc := service.NewEntitlementService(store, validator, gateway, nil, service.PaymentSettings{
		MerchantUsername: cfg.Payment.MerchantUsername,
		ItemDescription:  cfg.Payment.ItemDescription,
		Amount:           cfg.Payment.Amount,
		Currency:         cfg.Payment.Currency,
		APIKey:           cfg.Payment.APIKey,
		CallbackURL:      cfg.CallbackURL(),
		SuccessURL:       cfg.SuccessURL(),
		CancelURL:        cfg.CancelURL(),
		Timeout:          cfg.Payment.Timeout,
	}, cfg.Telegram.SendTimeout, log)
	authSvc := service.NewAuthService(cfg.Auth.JWTSecret)
	if !authSvc.Enabled() {
		log.Warn("auth.jwt_secret not set, admin API will reject every request")
	}

	// Telegram
	api, err := bot.NewAPI(cfg.Telegram.Token, cfg.Telegram.SendTimeout, cfg.Telegram.PollTimeout)
	if err != nil {
		return err
	}
	tg := bot.New(api, entSvc, cfg.Telegram.Workers, cfg.Telegram.SendTimeout, log)
	entSvc.SetNotifier(tg)
	log.Info("telegram connected", zap.String("username", api.Self.UserName), zap.String("mode", cfg.Telegram.Mode))

	var telegramHook http.Handler
	switch cfg.Telegram.Mode {
	case bot.ModeWebhook:
		if err := bot.RegisterWebhook(api, cfg.TelegramWebhookURL(), cfg.Telegram.WebhookSecret); err != nil {
			return err
		}
		telegramHook = tg.WebhookHandler(cfg.Telegram.WebhookSecret)
	default:
		updates, err := bot.StartPolling(api, cfg.Telegram.PollTimeout)
		if err != nil {
			return err
		}
		go tg.Poll(ctx, updates)
		defer api.StopReceivingUpdates()
	}

	limiter := appMiddleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	defer limiter.Stop()

	router := newRouter(routerDeps{
		log:         log,
		corsOrigins: cfg.Server.CORSOrigins,
		limiter:     limiter,
		verifier:    authSvc,
		ipn:         handler.NewIPNHandler(entSvc),
		health:      handler.NewHealthHandler(entRepo, cachePinger),
		admin:       handler.NewAdminHandler(entRepo),
		telegram:    telegramHook,
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("callback_url", cfg.CallbackURL()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", zap.Error(err))
	}
	if err := tg.Wait(shutdownCtx, cfg.Telegram.Workers); err != nil {
		log.Warn("telegram updates still in flight", zap.Error(err))
	}
	// Each pending confirmation is bounded by telegram.send_timeout.
	entSvc.Wait()
	return nil
}
