package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"academy-storefront/internal/checkout"
	"academy-storefront/internal/client"
	"academy-storefront/internal/config"
	"academy-storefront/internal/logger"
	"academy-storefront/internal/queue"
	"academy-storefront/internal/repository"
	"academy-storefront/internal/server"
	"academy-storefront/internal/service"
	"academy-storefront/internal/session"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	l := logger.New("api", cfg.Environment, cfg.Log, cfg.Rollbar)
	defer l.Close()

	db, err := client.InitDBClient(&cfg.Database)
	if err != nil {
		l.Fatalf("database: %v", err)
	}
	rdb, err := client.InitRedisClient(&cfg.Redis)
	if err != nil {
		l.Fatalf("redis: %v", err)
	}
	if rdb == nil {
		l.Warn("REDIS_ADDR not set: rate limiting and response cache are off")
	} else {
		defer rdb.Close()
	}

	backend := client.NewBackendClient(&cfg.Backend)
	cards := client.NewBraintreeClient(&cfg.BrainTree)

	orderRepo := repository.NewOrderRepository(backend)
	programRepo := repository.NewProgramRepository(backend)
	profileRepo := repository.NewProfileRepository(backend)
	blogRepo := repository.NewBlogRepository(backend)
	paymentRepo := repository.NewPaymentTransactionRepository(backend)
	planRepo := repository.NewSubscriptionPlanRepository(backend)
	settingRepo := repository.NewSettingRepository(backend)
	securityRepo := repository.NewSecurityEventRepository(backend)
	outboxRepo := repository.NewOutboxRepository(db)

	var store session.Store
	switch cfg.Session.Store {
	case "redis":
		if rdb == nil {
			l.Fatal("SESSION_STORE=redis needs REDIS_ADDR")
		}
		store = session.NewRedisStore(rdb, cfg.Session.Prefix, cfg.Session.TTL)
	default:
		store = session.NewDBStore(repository.NewBlobRepository(db))
	}
	sessions := session.NewManager(backend, profileRepo, securityRepo, store, l, cfg.Session.CheckTimeout, cfg.Backend.JWTSecret)

	pricing, err := checkout.NewPricing(&cfg.Checkout)
	if err != nil {
		l.Fatalf("checkout pricing: %v", err)
	}
	checkoutService := checkout.NewService(
		checkout.NewValidator(),
		pricing,
		programRepo,
		orderRepo,
		paymentRepo,
		cards,
		queue.NewOutbox(outboxRepo),
		l,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AMQP.URL != "" {
		publisher := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		defer publisher.Close()
		go queue.NewRelay(outboxRepo, publisher, l, cfg.AMQP.RelayInterval).Run(ctx)
	} else {
		l.Warn("AMQP_URL not set: order events stay in the outbox")
	}

	srv := server.NewServer(cfg, l, rdb, server.Services{
		Sessions:     sessions,
		Checkout:     checkoutService,
		Catalog:      service.NewCatalogService(programRepo, planRepo, settingRepo),
		Blog:         service.NewBlogService(blogRepo),
		Profile:      service.NewProfileService(profileRepo, orderRepo, sessions),
		AdminOrders:  service.NewAdminOrderService(orderRepo, paymentRepo, sessions, cfg.Admin.ShowOrderAmounts),
		AdminContent: service.NewAdminContentService(programRepo, blogRepo, sessions, cfg.Checkout.Currency),
	})

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	l.Infof("Starting HTTP server on %s", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			l.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	l.Info("Signal received, starting graceful shutdown...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown error: %v", err)
	}
}
