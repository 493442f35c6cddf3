// cmd/notifications-worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/example/insurance-portal/internal/config"
	"github.com/example/insurance-portal/internal/queue"
	"github.com/example/insurance-portal/internal/store"
	"github.com/example/insurance-portal/pkg/logging"
)

const serviceName = "notifications-worker"

type notificationWriter interface {
	CreateNotification(ctx context.Context, n *store.Notification) error
}

// persist stores each event. Undecodable events are logged and skipped so
// they do not block the partition.
func persist(w notificationWriter, l log.FieldLogger) func(context.Context, kafka.Message) error {
	return func(ctx context.Context, m kafka.Message) error {
		n, err := queue.DecodeNotification(m)
		if err != nil {
			l.WithError(err).WithField("offset", m.Offset).Warn("skip bad event")
			return nil
		}
		if err := w.CreateNotification(ctx, n); err != nil {
			return err
		}
		l.WithFields(log.Fields{"notification_id": n.ID, "user_id": n.UserID}).Debug("notification stored")
		return nil
	}
}

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

	bus := queue.New(cfg.KafkaBrokers, cfg.KafkaNotifyTopic)
	defer bus.Close()

	logger.WithFields(log.Fields{"topic": cfg.KafkaNotifyTopic, "group": cfg.KafkaGroupID}).Info("started")
	if err := bus.Consume(ctx, cfg.KafkaGroupID, persist(st, logger)); err != nil {
		logger.WithError(err).Error("consume")
		return
	}
	logger.Info("bye")
}
