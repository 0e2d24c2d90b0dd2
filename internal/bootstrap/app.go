package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/cache"
	"lobechat-go/internal/config"
	"lobechat-go/internal/logger"
	"lobechat-go/internal/model"
	minioClient "lobechat-go/internal/platform/minio"
	mysqlClient "lobechat-go/internal/platform/mysql"
	rabbitmqClient "lobechat-go/internal/platform/rabbitmq"
	redisClient "lobechat-go/internal/platform/redis"
	"lobechat-go/internal/repository"
	"lobechat-go/internal/storage"
	"lobechat-go/internal/worker"
)

type App struct {
	Config   *config.Config
	MySQL    *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection
	Storage  *storage.S3
	Registry *ai.Registry
	Services *Services

	MessageWorker *worker.MessagePersistWorker
	ChunkWorker   *worker.FileChunkWorker

	StartedAt time.Time
}

// New connects every backing service, migrates the schema and starts the
// queue workers.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.WithComponent("bootstrap")
	a := &App{Config: cfg, StartedAt: time.Now()}

	var err error
	if a.MySQL, err = mysqlClient.New(ctx, cfg); err != nil {
		return nil, err
	}
	if err := AutoMigrate(a.MySQL); err != nil {
		a.Close()
		return nil, err
	}
	log.Info("mysql ready")

	if a.Redis, err = redisClient.New(ctx, cfg.Redis); err != nil {
		a.Close()
		return nil, err
	}
	log.Info("redis ready")

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MessagePersistQueue, cfg.RabbitMQ.FileChunkQueue)
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("rabbitmq ready")

	s3Client, err := minioClient.New(ctx, minioClient.Options{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		Secure:    cfg.S3.Secure,
	}, cfg.S3.Bucket)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Storage = storage.NewS3(s3Client, cfg.S3.Bucket, cfg.S3.PublicDomain, time.Duration(cfg.S3.PresignExpireSeconds)*time.Second)
	log.WithField("bucket", cfg.S3.Bucket).Info("object storage ready")

	a.Registry = ai.NewRegistry(cfg)
	a.Services = NewServices(ServiceDeps{
		Config:       cfg,
		DB:           a.MySQL,
		HistoryCache: cache.NewHistoryCache(a.Redis, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second, time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second),
		Store:        a.Storage,
		Runtimes:     a.Registry,
		Messages:     rabbitmqClient.NewPublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue),
		ChunkJobs:    rabbitmqClient.NewPublisher(a.MQConn, cfg.RabbitMQ.FileChunkQueue),
	})

	a.MessageWorker = worker.NewMessagePersistWorker(a.MQConn, repository.NewMessageRepository(a.MySQL), cfg.RabbitMQ.MessagePersistQueue)
	if err := a.MessageWorker.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("start message worker failed: %w", err)
	}
	a.ChunkWorker = worker.NewFileChunkWorker(a.MQConn, a.Services.Knowledge, cfg.RabbitMQ.FileChunkQueue)
	if err := a.ChunkWorker.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("start chunk worker failed: %w", err)
	}
	log.WithField("providers", cfg.EnabledProviders()).Info("bootstrap complete")
	return a, nil
}

// Migrate only opens the database and migrates the schema.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := mysqlClient.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	return AutoMigrate(db)
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.Models()...); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.ChunkWorker != nil {
		a.ChunkWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		errs = append(errs, a.MQConn.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.MySQL != nil {
		if sqlDB, err := a.MySQL.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
