// Command notification-worker consumes booking notifications from Kafka and
// delivers them. Delivery is a log line until a mail gateway is wired in.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"ms-booking/internal/config"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Service: "notification-worker", MinLevel: logger.ParseLevel(cfg.Log.Level)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topic := cfg.Kafka.NotificationsTopic
	if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, []string{topic}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	var delivered atomic.Int64
	log.Info("APP", fmt.Sprintf("Notification worker consuming %s as %s", topic, cfg.Kafka.GroupID))
	err = consumer.Start(ctx, func(ctx context.Context, n models.Notification) error {
		if n.UserID == "" {
			return fmt.Errorf("notification %s has no recipient", n.ID)
		}
		log.Info("DELIVERY", fmt.Sprintf("%s to %s: %s (session %s)", n.Kind, n.UserID, n.Message, n.SessionID))
		delivered.Add(1)
		return nil
	})
	if err != nil {
		log.Error("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
	}
	log.Info("APP", fmt.Sprintf("Notification worker stopped after %d deliveries", delivered.Load()))
}
