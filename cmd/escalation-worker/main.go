package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/caremesh-ai/triage/pkg/common/config"
	"github.com/caremesh-ai/triage/pkg/common/database"
	"github.com/caremesh-ai/triage/pkg/common/kafka"
	"github.com/caremesh-ai/triage/pkg/common/logger"
	"github.com/caremesh-ai/triage/pkg/review"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}

	repo := review.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate review tables")
	}

	worker := review.NewWorker(repo)
	consumer := kafka.NewConsumer(cfg.EscalationTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down escalation worker...")
		cancel()
	}()

	logger.Log.WithField("topic", cfg.EscalationTopic).Info("Escalation worker started")

	if err := consumer.Consume(ctx, worker.HandleEvent); err != nil && err != context.Canceled {
		logger.Log.WithError(err).Error("Consumer stopped")
	}

	logger.Log.Info("Escalation worker stopped")
}
