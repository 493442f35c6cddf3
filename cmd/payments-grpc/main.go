// cmd/payments-grpc/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	gp "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/example/insurance-portal/internal/auth"
	"github.com/example/insurance-portal/internal/config"
	"github.com/example/insurance-portal/internal/grpcserver"
	"github.com/example/insurance-portal/internal/payment"
	"github.com/example/insurance-portal/internal/queue"
	"github.com/example/insurance-portal/internal/store"
	"github.com/example/insurance-portal/pkg/logging"
)

const serviceName = "payments-grpc"

func main() {
	cfg := config.Load()
	logger := logging.New(serviceName, cfg.LogLevel)

	st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("open store")
	}
	defer st.Close()
	if err := st.Migrate(context.Background()); err != nil {
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
	svc := payment.NewService(payment.ConfigFrom(cfg), st, notifier, logger)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(gp.UnaryServerInterceptor, grpcserver.AuthInterceptor(jm)),
		grpc.StreamInterceptor(gp.StreamServerInterceptor),
	)
	grpcserver.RegisterPaymentGatewayServer(grpcServer, &grpcserver.PaymentsServer{Payments: svc})
	gp.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.WithError(err).Fatalf("listen %s", cfg.GRPCAddr)
	}
	go func() {
		logger.WithField("addr", cfg.GRPCAddr).Info("serving gRPC")
		if err := grpcServer.Serve(lis); err != nil {
			logger.WithError(err).Fatal("grpc serve")
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		logger.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("metrics serve")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	grpcServer.GracefulStop()
	_ = metricsSrv.Shutdown(context.Background())
	logger.Info("bye")
}
