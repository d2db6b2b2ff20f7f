package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fruitfresh/internal/app"
	"fruitfresh/internal/cache"
	"fruitfresh/internal/config"
	"fruitfresh/internal/fruit"
	"fruitfresh/internal/logging"
	"fruitfresh/internal/nutrition"
	databaseClient "fruitfresh/internal/platform/database"
	rabbitmqClient "fruitfresh/internal/platform/rabbitmq"
	redisClient "fruitfresh/internal/platform/redis"
	"fruitfresh/internal/repository"
	"fruitfresh/internal/vision"
	"fruitfresh/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	Models         *vision.Loader
	Classification *app.ClassificationService
	History        *app.HistoryService

	DB           *gorm.DB
	Redis        *redis.Client
	MQConn       *amqp.Connection
	RecordWorker *worker.RecordPersistWorker

	StartedAt time.Time
}

// New builds the service from cfg. History infrastructure is only dialled
// when history.enabled is set.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.NewLogger(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	preprocessor, err := vision.NewPreprocessor(cfg.Model.ResizeFilter)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
		Models: vision.NewONNXLoader(cfg.Model.Path, fruit.NumLabels, vision.ModelOptions{
			SharedLibPath:  cfg.Model.ONNXSharedLibPath,
			IntraOpThreads: cfg.Model.IntraOpThreads,
		}, logger),
	}

	if cfg.Model.Preload {
		// A missing model must not stop the server; requests report it instead.
		if _, err := a.Models.Model(ctx); err != nil {
			logger.Warn("model preload failed", zap.String("path", cfg.Model.Path), zap.Error(err))
		}
	}

	info := nutrition.NewClient(cfg.Nutrition.BaseURL, cfg.NutritionTimeout(), logger)

	var publisher app.RecordPublisher
	if cfg.History.Enabled {
		if err := a.openHistory(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		publisher = rabbitmqClient.NewRecordPublisher(a.MQConn, cfg.History.Queue)
	} else {
		a.History = app.NewHistoryService(nil, nil, logger)
	}

	a.Classification = app.NewClassificationService(a.Models, preprocessor, info, publisher, logger)
	return a, nil
}

func (a *App) openHistory(ctx context.Context) error {
	cfg := a.Config

	db, err := databaseClient.New(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	a.DB = db

	repo := repository.NewPredictionRepository(db)
	if err := repo.AutoMigrate(ctx); err != nil {
		return err
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	a.Redis = redisCli
	recent := cache.NewRecentCache(redisCli, cfg.History.RecentSize, cfg.RecentTTL())

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.History.Queue)
	if err != nil {
		return err
	}
	a.MQConn = mqConn

	a.RecordWorker = worker.NewRecordPersistWorker(mqConn, repo, recent, cfg.History.Queue, a.Logger)
	if err := a.RecordWorker.Start(ctx); err != nil {
		return fmt.Errorf("start record worker failed: %w", err)
	}

	a.History = app.NewHistoryService(repo, recent, a.Logger)
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.RecordWorker != nil {
		a.RecordWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if a.Models != nil {
		if err := a.Models.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
