// services/api-gateway/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/insurance-portal/internal/auth"
	"github.com/example/insurance-portal/internal/config"
	"github.com/example/insurance-portal/internal/payment"
	"github.com/example/insurance-portal/internal/queue"
	"github.com/example/insurance-portal/internal/store"
	"github.com/example/insurance-portal/pkg/logging"
	"github.com/example/insurance-portal/services/api-gateway/handlers"
)

func main() {
	cfg := config.Load()
	logger := logging.New(serviceName, cfg.LogLevel)

	st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("open store")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("migrate store")
	}

	jm, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.WithError(err).Fatal("init jwt")
	}

	var notifier payment.Notifier = payment.NewStoreNotifier(st)
	if cfg.NotifySink == "kafka" {
		bus := queue.New(cfg.KafkaBrokers, cfg.KafkaNotifyTopic)
		defer bus.Close()
		notifier = queue.NewKafkaNotifier(bus)
	}

	payCfg := payment.ConfigFrom(cfg)
	if err := payCfg.Validate(); err != nil {
		// keep serving; payment endpoints answer with a configuration error
		logger.WithError(err).Warn("payment gateway is not configured")
	}
	svc := payment.NewService(payCfg, st, notifier, logger)

	srv := NewAPIServer(Deps{
		JWT:           jm,
		Payments:      &handlers.Payments{Service: svc, FrontendURL: cfg.FrontendURL, Log: logger},
		Contracts:     &handlers.Contracts{Store: st, Log: logger},
		Notifications: &handlers.Notifications{Store: st, Log: logger},
		DB:            st,
		CORSOrigins:   cfg.CORSOrigins,
		Log:           logger,
	})

	if err := srv.Start(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("http server")
	}
}
