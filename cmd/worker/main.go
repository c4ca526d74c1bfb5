package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/classifier"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/config"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/worker"
)

// Config is the environment configuration for the standalone worker.
type Config struct {
	DatabaseURL     string        `env:"DATABASE_URL" env-default:""`
	DBSchema        string        `env:"DB_SCHEMA" env-default:"moderation"`
	QueueURL        string        `env:"QUEUE_URL" env-default:"redis://localhost:6379/0"`
	QueueName       string        `env:"QUEUE_NAME" env-default:"moderation_queue"`
	ClassifierURL   string        `env:"CLASSIFIER_URL" env-default:"http://localhost:8000"`
	ClassifyTimeout time.Duration `env:"CLASSIFY_TIMEOUT" env-default:"10s"`
	ArchiveURL      string        `env:"ARCHIVE_URL" env-default:""`
	MaxDeliveries   int           `env:"MAX_DELIVERIES" env-default:"5"`
	RetryBaseDelay  time.Duration `env:"RETRY_BASE_DELAY" env-default:"500ms"`
	RetryMaxDelay   time.Duration `env:"RETRY_MAX_DELAY" env-default:"30s"`
	ModeratorName   string        `env:"MODERATOR_NAME" env-default:"system"`
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	serverConfig, err := config.Load(func(c *config.ServerConfig) error {
		c.DatabaseURL = cfg.DatabaseURL
		if cfg.DatabaseURL != "" {
			c.DatabaseType = "postgres"
		}
		c.DBSchema = cfg.DBSchema
		c.QueueURL = cfg.QueueURL
		c.QueueName = cfg.QueueName
		c.ArchiveURL = cfg.ArchiveURL
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	repo, err := serverConfig.BuildRepository()
	if err != nil {
		log.Fatalf("Failed to build repository: %v", err)
	}

	queue, err := serverConfig.BuildQueue()
	if err != nil {
		log.Fatalf("Failed to build queue: %v", err)
	}
	defer queue.Close()

	archiver, err := serverConfig.BuildArchiver()
	if err != nil {
		log.Fatalf("Failed to build archiver: %v", err)
	}

	options := []simplemoderation.Option{
		simplemoderation.WithRepository(repo),
		simplemoderation.WithQueue(queue),
		simplemoderation.WithClassifier(classifier.New(cfg.ClassifierURL)),
		simplemoderation.WithClassifyTimeout(cfg.ClassifyTimeout),
		simplemoderation.WithModeratorName(cfg.ModeratorName),
		simplemoderation.WithEventSink(simplemoderation.NewLoggingEventSink(slog.Default())),
	}
	if archiver != nil {
		options = append(options, simplemoderation.WithArchiver(archiver))
	}

	svc, err := simplemoderation.New(options...)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}

	w := worker.New(queue, svc,
		worker.WithBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		worker.WithMaxDeliveries(cfg.MaxDeliveries),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Moderation worker starting (queue: %s, classifier: %s)", cfg.QueueURL, cfg.ClassifierURL)
	if err := w.Run(ctx); err != nil {
		log.Printf("Worker stopped with error: %v", err)
		os.Exit(1)
	}
	log.Println("Worker exiting")
}
