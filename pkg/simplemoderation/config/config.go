package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
	archivefs "github.com/tendant/simple-moderation/pkg/simplemoderation/archive/fs"
	archivememory "github.com/tendant/simple-moderation/pkg/simplemoderation/archive/memory"
	archives3 "github.com/tendant/simple-moderation/pkg/simplemoderation/archive/s3"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/classifier"
	queuememory "github.com/tendant/simple-moderation/pkg/simplemoderation/queue/memory"
	queueredis "github.com/tendant/simple-moderation/pkg/simplemoderation/queue/redis"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/repo/memory"
	repopg "github.com/tendant/simple-moderation/pkg/simplemoderation/repo/postgres"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		DBSchema:           "moderation",
		QueueURL:           "memory://",
		QueueName:          "moderation_queue",
		MaxDeliveries:      5,
		RetryBaseDelay:     500 * time.Millisecond,
		RetryMaxDelay:      30 * time.Second,
		ClassifierURL:      "http://localhost:8000",
		ClassifyTimeout:    simplemoderation.DefaultClassifyTimeout,
		ArchiveURL:         "memory://",
		EnableEventLogging: true,
		EmbedWorker:        true,
	}
}

// ServerConfig represents server configuration for the simple-moderation service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: moderation)

	// Queue configuration
	QueueURL      string // "memory://" or "redis://host:port/db"
	QueueName     string
	MaxDeliveries int // 0 retries forever

	// Worker retry backoff
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Classifier configuration
	ClassifierURL   string
	ClassifyTimeout time.Duration

	// Decision archive configuration
	ArchiveURL string // "memory://", "file:///path", or "s3://bucket?region=..."

	// Server options
	EnableEventLogging bool
	EmbedWorker        bool // run the queue consumer inside the server process
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.QueueURL == "" {
		return errors.New("queue_url is required")
	}
	if !strings.HasPrefix(c.QueueURL, "memory://") && !strings.HasPrefix(c.QueueURL, "redis://") && !strings.HasPrefix(c.QueueURL, "rediss://") {
		return fmt.Errorf("unsupported queue_url: %s (use 'memory://' or 'redis://...')", c.QueueURL)
	}

	if c.ClassifierURL == "" {
		return errors.New("classifier_url is required")
	}

	if c.MaxDeliveries < 0 {
		return errors.New("max_deliveries cannot be negative")
	}

	return nil
}

// BuildService assembles a Service plus the queue it publishes to. The queue
// is returned so the caller can run a worker on it and close it on shutdown.
func (c *ServerConfig) BuildService() (simplemoderation.Service, simplemoderation.ModerationQueue, error) {
	repo, err := c.BuildRepository()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	queue, err := c.BuildQueue()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build queue: %w", err)
	}

	archiver, err := c.BuildArchiver()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build archiver: %w", err)
	}

	options := []simplemoderation.Option{
		simplemoderation.WithRepository(repo),
		simplemoderation.WithQueue(queue),
		simplemoderation.WithClassifier(classifier.New(c.ClassifierURL)),
		simplemoderation.WithClassifyTimeout(c.ClassifyTimeout),
	}
	if archiver != nil {
		options = append(options, simplemoderation.WithArchiver(archiver))
	}
	if c.EnableEventLogging {
		options = append(options, simplemoderation.WithEventSink(simplemoderation.NewLoggingEventSink(nil)))
	}

	svc, err := simplemoderation.New(options...)
	if err != nil {
		return nil, nil, err
	}
	return svc, queue, nil
}

// BuildRepository creates a Repository based on the configuration
func (c *ServerConfig) BuildRepository() (simplemoderation.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, errors.New("database_url is required for postgres")
		}
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			// set search_path for this session
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildQueue creates a ModerationQueue based on the configuration
func (c *ServerConfig) BuildQueue() (simplemoderation.ModerationQueue, error) {
	switch {
	case strings.HasPrefix(c.QueueURL, "memory://"):
		return queuememory.New(), nil
	case strings.HasPrefix(c.QueueURL, "redis://"), strings.HasPrefix(c.QueueURL, "rediss://"):
		return queueredis.NewWithURL(c.QueueURL, c.QueueName)
	default:
		return nil, fmt.Errorf("unsupported queue url: %s", c.QueueURL)
	}
}

// BuildArchiver creates an Archiver based on the configuration. An empty
// ArchiveURL disables decision archiving.
func (c *ServerConfig) BuildArchiver() (simplemoderation.Archiver, error) {
	switch {
	case c.ArchiveURL == "":
		return nil, nil
	case c.ArchiveURL == "memory://" || c.ArchiveURL == "memory":
		return archivememory.New(), nil
	case strings.HasPrefix(c.ArchiveURL, "file://"):
		path := strings.TrimPrefix(c.ArchiveURL, "file://")
		if path == "" {
			return nil, errors.New("filesystem path cannot be empty in archive url")
		}
		return archivefs.New(archivefs.Config{BaseDir: path})
	case strings.HasPrefix(c.ArchiveURL, "s3://"):
		u, err := url.Parse(c.ArchiveURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse archive url: %w", err)
		}
		q := u.Query()
		return archives3.New(archives3.Config{
			Bucket:          u.Host,
			Region:          q.Get("region"),
			AccessKeyID:     q.Get("access_key_id"),
			SecretAccessKey: q.Get("secret_access_key"),
			Endpoint:        q.Get("endpoint"),
			UsePathStyle:    q.Get("use_path_style") == "true",
		})
	default:
		return nil, fmt.Errorf("unsupported archive url: %s (use 'memory://', 'file://...', or 's3://...')", c.ArchiveURL)
	}
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
// It fails if the schema (when provided) does not exist.
func PingPostgres(databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
