// Package app assembles the verification service from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"honestlens/config"
	"honestlens/corpus"
	"honestlens/deduplication"
	"honestlens/events"
	"honestlens/extraction"
	"honestlens/fusion"
	"honestlens/lifecycle"
	"honestlens/logging"
	"honestlens/orchestrator"
	"honestlens/persistence"
	"honestlens/signals"
	"honestlens/storage"
)

// App holds the wired service and everything that must be released on shutdown.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Manager   *lifecycle.Manager
	Images    *storage.Mux
	Publisher events.Publisher

	consumer *events.Consumer
	closers  []func() error
}

// New wires every collaborator. Optional backends (MySQL, Redis, S3, Kafka, Google,
// Cohere) are used when configured; Redis, Kafka and Google failures fall back to the
// in-process equivalents with a warning, while MySQL and S3 failures are fatal.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger}

	store, err := a.store(cfg)
	if err != nil {
		return nil, err
	}
	images, err := a.images(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Images = images
	a.Publisher = a.publisher(cfg)

	a.Manager = lifecycle.NewManager(lifecycle.Deps{
		Store:     store,
		Verifier:  a.controller(ctx, cfg),
		Extractor: extraction.NewReadabilityExtractor(nil),
		Images:    images,
		Cache:     a.cache(ctx, cfg),
		Publisher: a.Publisher,
		Logger:    logger,
	})

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   config.RequestsTopic,
			GroupID: config.ConsumerGroupID,
			Handler: events.NewSubmitHandler(a.Manager, logger),
		}, logger)
		if err != nil {
			logger.Warn("kafka consumer disabled", zap.Error(err))
		} else {
			a.consumer = consumer
		}
	}
	return a, nil
}

// Collectors builds the signal collectors from cfg in priority order. Google
// collaborators are added only when credentials are configured.
func Collectors(ctx context.Context, cfg config.Config, logger *zap.Logger) []signals.Collector {
	logger = logging.OrNop(logger)
	matcher, minSimilarity := corpus.NewFeedMatcher(cfg.CohereAPIKey)
	corpora := []corpus.Corpus{
		corpus.NewFeedCorpus(corpus.ResolveFeeds(cfg.FeedPresets), matcher, minSimilarity),
	}

	var ocr signals.OCR
	if cfg.FactCheckAPIKey != "" || cfg.GoogleADC {
		fc, err := corpus.NewGoogleFactCheck(ctx, corpus.GoogleConfig{APIKey: cfg.FactCheckAPIKey, UseADC: cfg.GoogleADC})
		if err != nil {
			logger.Warn("google fact check disabled", zap.Error(err))
		} else {
			corpora = append(corpora, fc)
		}
	}
	if cfg.VisionAPIKey != "" || cfg.GoogleADC {
		v, err := corpus.NewVisionOCR(ctx, corpus.GoogleConfig{APIKey: cfg.VisionAPIKey, UseADC: cfg.GoogleADC})
		if err != nil {
			logger.Warn("vision OCR disabled", zap.Error(err))
		} else {
			ocr = v
		}
	}

	return []signals.Collector{
		signals.NewContent(),
		signals.NewSource(),
		signals.NewCorroboration(logger, corpora...),
		signals.NewImageForensics(ocr, logger),
	}
}

func (a *App) controller(ctx context.Context, cfg config.Config) *orchestrator.Controller {
	o := orchestrator.New(cfg.CollectorTimeout, a.Logger, Collectors(ctx, cfg, a.Logger)...)
	return orchestrator.NewController(o, signals.NewBasic(), fusion.NewEngine(), a.Logger)
}

func (a *App) store(cfg config.Config) (persistence.Store, error) {
	if cfg.MySQLDSN == "" {
		a.Logger.Info("using in-memory request store")
		return persistence.NewMemoryStore(), nil
	}
	db, err := persistence.ConnectMySQL(cfg.MySQLDSN, a.Logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)
	a.Logger.Info("using mysql request store")
	return persistence.NewGormStore(db), nil
}

func (a *App) cache(ctx context.Context, cfg config.Config) deduplication.Cache {
	if cfg.RedisAddr != "" {
		rc, err := deduplication.NewRedisCache(ctx, deduplication.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   config.DedupKeyPrefix,
			TTL:      cfg.DedupTTL,
		})
		if err == nil {
			a.closers = append(a.closers, rc.Close)
			a.Logger.Info("using redis dedup cache", zap.String("addr", cfg.RedisAddr))
			return rc
		}
		a.Logger.Warn("redis unavailable, using in-memory dedup cache", zap.Error(err))
	}
	return deduplication.NewMemoryCache(cfg.DedupCapacity)
}

func (a *App) images(ctx context.Context, cfg config.Config) (*storage.Mux, error) {
	local, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	if cfg.S3Bucket == "" {
		return storage.NewMux(local, nil), nil
	}
	s3, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:       cfg.S3Bucket,
		Prefix:       cfg.S3Prefix,
		Region:       cfg.S3Region,
		Profile:      cfg.S3Profile,
		UsePathStyle: cfg.S3UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	a.Logger.Info("storing uploads in s3", zap.String("bucket", cfg.S3Bucket))
	return storage.NewMux(local, s3), nil
}

func (a *App) publisher(cfg config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	p, err := events.NewKafkaPublisher(events.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   config.ResultsTopic,
	}, a.Logger)
	if err != nil {
		a.Logger.Warn("kafka publisher disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	return p
}

// StartConsumer begins reading submissions from Kafka when a consumer is configured.
func (a *App) StartConsumer(ctx context.Context) error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Start(ctx)
}

// Close stops intake, then the manager, so in-flight work is marked failed before the
// backends it writes to go away.
func (a *App) Close() {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.Logger.Warn("close kafka consumer", zap.Error(err))
		}
	}
	if a.Manager != nil {
		a.Manager.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn("close publisher", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close backend", zap.Error(err))
		}
	}
}
