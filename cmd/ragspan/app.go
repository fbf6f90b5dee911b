package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"ragspan/internal/cache"
	"ragspan/internal/cache/memory"
	"ragspan/internal/cache/sqlite"
	"ragspan/internal/chunker"
	"ragspan/internal/config"
	"ragspan/internal/domain"
	"ragspan/internal/embedding/hashing"
	"ragspan/internal/embedding/openai"
	"ragspan/internal/extract"
	"ragspan/internal/index"
	"ragspan/internal/indexer"
	"ragspan/internal/locator"
	"ragspan/internal/logger"
	"ragspan/internal/metrics"
	"ragspan/internal/search"
	"ragspan/internal/service"
	"ragspan/internal/summarizer"
	"ragspan/internal/vectorstore/qdrant"
)

// app holds the assembled components of one process.
type app struct {
	cfg      *config.AppConfig
	log      zerolog.Logger
	metrics  *metrics.Metrics
	embedder domain.Embedder
	store    domain.CacheStore
	cache    *cache.Cache
	svc      *service.RAGService
}

func loadConfig() (*config.AppConfig, error) {
	if configPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(configPath)
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: cfg.Log.Pretty, WithCaller: verbose})
	m := metrics.New()

	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	store, err := newCacheStore(cfg)
	if err != nil {
		return nil, err
	}
	c := cache.New(store,
		cache.WithLogger(logger.Component(log, "cache")),
		cache.WithMetrics(m),
	)
	if cfg.Cache.PurgeStale {
		n, err := c.PurgeStale(ctx, emb.Model())
		if err != nil {
			log.Warn().Err(err).Msg("purging stale embeddings failed")
		} else if n > 0 {
			log.Info().Int("entries", n).Msg("purged stale embeddings")
		}
	}

	ch, err := chunker.New(cfg.Chunker.TargetSize, *cfg.Chunker.Overlap)
	if err != nil {
		store.Close()
		return nil, err
	}
	pdf := extract.New(extract.Config{
		Binary:  cfg.Extractor.Binary,
		BBox:    cfg.Extractor.BBox,
		Timeout: time.Duration(cfg.Extractor.TimeoutSecs) * time.Second,
	})
	if err := extract.CheckAvailable(cfg.Extractor.Binary); err != nil {
		log.Debug().Err(err).Msg(extract.InstallInstructions())
	}

	var (
		sum domain.Summarizer
		kw  domain.KeywordExtractor
	)
	switch cfg.Summarizer.Type {
	case "frequency", "":
		f := summarizer.NewFrequency()
		sum, kw = f, f
	case "none":
	default:
		store.Close()
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	ix, err := indexer.New(indexer.Config{
		Locator:          locator.New(pdf),
		Chunker:          ch,
		Cache:            c,
		Embedder:         emb,
		Summarizer:       sum,
		SummarySentences: cfg.Summarizer.MaxSentences,
		Keywords:         kw,
		MaxKeywords:      cfg.Summarizer.MaxKeywords,
		Workers:          cfg.Indexer.Workers,
		Logger:           logger.Component(log, "indexer"),
		Metrics:          m,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	metric, err := index.ParseMetric(cfg.Search.Metric)
	if err != nil {
		store.Close()
		return nil, err
	}
	svcCfg := service.Config{
		Indexer:  ix,
		Searcher: search.New(emb, metric, search.WithLogger(logger.Component(log, "search")), search.WithMetrics(m)),
		Metric:   metric,
		Logger:   logger.Component(log, "service"),
	}
	if cfg.VectorStore.Type == "qdrant" {
		q := cfg.VectorStore.Qdrant
		svcCfg.Mirror = qdrant.NewMirror(qdrant.Config{
			URL:        q.URL,
			APIKey:     os.Getenv(q.APIKeyEnv),
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
	}

	return &app{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		embedder: emb,
		store:    store,
		cache:    c,
		svc:      service.NewRAGService(svcCfg),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hashing", "":
		dim := 0
		if cfg.Embedder.Hashing != nil {
			dim = cfg.Embedder.Hashing.Dimension
		}
		return hashing.New(dim), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		if o == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			Model:             o.Model,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			RequestsPerSecond: o.RequestsPerSecond,
			Burst:             o.Burst,
			MaxRetries:        o.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
}

func newCacheStore(cfg *config.AppConfig) (domain.CacheStore, error) {
	switch cfg.Cache.Type {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite", "":
		s, err := sqlite.NewStore(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open embedding cache: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown cache: %s", cfg.Cache.Type)
}
