package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zuhair246/kitab4u-sub000/internal/config"
	"github.com/Zuhair246/kitab4u-sub000/internal/email"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/kafka"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/store"
	"github.com/Zuhair246/kitab4u-sub000/internal/notification"
)

// consumerGroup is dedicated to email delivery so the notifier keeps its
// own offset independent of any other consumer.
const consumerGroup = "email-notifier"

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("[Notifier] ========================================")
	log.Println("[Notifier] Email Notification Service")
	log.Println("[Notifier] ========================================")
	log.Printf("[Notifier] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Notifier] Topic: %s", cfg.KafkaTopic)
	log.Printf("[Notifier] Group: %s", consumerGroup)
	log.Printf("[Notifier] SMTP: %s:%s", cfg.SMTPHost, cfg.SMTPPort)

	db, err := store.Connect(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[Notifier] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("[Notifier] Connected to PostgreSQL")

	pg := store.NewPostgres(db)
	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, pg)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup)
	defer consumer.Close()

	go func() {
		log.Println("[Notifier] Starting event consumer...")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil {
			if ctx.Err() == nil {
				log.Printf("[Notifier] Consumer error: %v", err)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Notifier] Shutting down...")
	cancel()
}
