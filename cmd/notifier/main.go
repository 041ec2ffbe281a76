package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"academy-storefront/internal/config"
	"academy-storefront/internal/logger"
	"academy-storefront/internal/notify"
	"academy-storefront/internal/queue"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	l := logger.New("notifier", cfg.Environment, cfg.Log, cfg.Rollbar)
	defer l.Close()

	if cfg.AMQP.URL == "" {
		l.Fatal("AMQP_URL is required")
	}
	if cfg.Sendgrid.APIKey == "" {
		l.Warn("SENDGRID_API_KEY not set: confirmations are written to stdout")
	}

	mailer := notify.NewMailer(&cfg.Sendgrid, cfg.Sendgrid.FromName, os.Stdout)
	notifier := notify.NewOrderNotifier(mailer, cfg.BaseURL, cfg.Sendgrid.BackOffice)

	handle := func(ctx context.Context, ev queue.OrderCreatedEvent) error {
		if err := notifier.OrderCreated(ctx, ev); err != nil {
			l.Report(err, map[string]interface{}{"order_id": ev.OrderID, "event_id": ev.EventID})
			return err
		}
		l.Infof("confirmation sent for order %s", ev.OrderID)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	consumer := queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.ReconnectDelay, handle, l)
	l.Infof("Consuming %s", cfg.AMQP.Queue)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.Errorf("consumer stopped: %v", err)
	}
	l.Info("notifier stopped")
}
