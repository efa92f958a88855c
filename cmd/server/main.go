package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/config"
	"github.com/ecodeli/ecodeli-backend/internal/database"
	"github.com/ecodeli/ecodeli-backend/internal/handler"
	"github.com/ecodeli/ecodeli-backend/internal/logger"
	"github.com/ecodeli/ecodeli-backend/internal/mail"
	"github.com/ecodeli/ecodeli-backend/internal/queue"
	"github.com/ecodeli/ecodeli-backend/internal/repository"
	"github.com/ecodeli/ecodeli-backend/internal/router"
	"github.com/ecodeli/ecodeli-backend/internal/service"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			zl.Fatal("schema migration failed", zap.Error(err))
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		zl.Warn("redis unavailable, running without cache and rate limit")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	categories := repository.NewProviderCategoryRepo(db)
	requests := repository.NewRequestRepo(db)
	applications := repository.NewApplicationRepo(db)
	justifications := repository.NewJustificationRepo(db)

	publisher := queue.NewPublisher(cfg.AMQPURL, zl)
	defer publisher.Close()

	transport := mail.NewSMTPTransport(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		Timeout:  cfg.SMTP.Timeout,
	})
	welcome := mail.NewWelcomeMailer(transport, cfg.MailFrom, zl)

	now := time.Now
	eligibility := service.NewEligibility(users, categories)
	catalog := service.NewCatalog(requests, users, eligibility, zl, now)
	engine := service.NewApplications(eligibility, users, requests, applications, publisher, zl, now)
	dashboard := service.NewDashboard(eligibility, categories, applications)
	vault := service.NewVault(afero.NewOsFs(), cfg.UploadDir, eligibility, justifications, zl, now)
	accounts := service.NewAccounts(users, publisher, welcome, cfg.BcryptCost, zl, now)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg.AMQPURL, zl)
	consumer.Handle(queue.UserCreatedQueue, queue.WelcomeHandler(welcome))
	consumer.Handle(queue.ApplicationCreatedQueue, queue.ApplicationLogHandler(afero.NewOsFs(), cfg.LogDir))
	consumed := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(consumed)
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Requests:  handler.NewRequestHandler(catalog, zl),
		Providers: handler.NewProviderHandler(catalog, engine, dashboard, vault, zl),
		Accounts:  handler.NewAccountHandler(accounts, zl),
		DB:        db,
	}, router.Options{
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
	}, zl)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
	<-consumed
}
