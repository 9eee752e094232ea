package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/ai"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/curriculum"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/docproc"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/platform/cache"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/platform/config"
	"github.com/sirfifer/voicelearn-ios-sub011/internal/platform/database"
)

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// deps holds everything run needs. close releases them in reverse order.
type deps struct {
	store     curriculum.Store
	events    curriculum.EventLogger
	embedder  curriculum.Embedder
	generator docproc.Generator
	closers   []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{events: curriculum.NopEventLogger{}}

	if err := d.openStore(ctx, cfg); err != nil {
		d.close()
		return nil, err
	}
	d.openAI(ctx, cfg)
	return d, nil
}

func (d *deps) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		d.store = curriculum.NewMemoryStore()
		d.events = curriculum.NewMemoryEventLogger()

	case config.StoreSQLite:
		s, err := curriculum.OpenSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		d.closers = append(d.closers, func() { _ = s.Close() })
		d.store = s

	case config.StorePostgres:
		db, err := database.New(ctx, database.Config{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		d.closers = append(d.closers, db.Close)
		if err := db.Migrate(ctx, curriculum.PostgresSchema); err != nil {
			return err
		}
		s, err := curriculum.NewPostgresStore(db.Pool)
		if err != nil {
			return err
		}
		d.store = s
		d.events = curriculum.NewPostgresEventLogger(db.Pool)

	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	slog.Info("store ready", "driver", cfg.Store.Driver)
	return nil
}

// openAI wires the optional language services. Missing providers leave the
// embedder or generator nil, which downstream code treats as disabled.
func (d *deps) openAI(ctx context.Context, cfg *config.Config) {
	router := ai.NewRouter(ai.WithGenerateModel(cfg.AI.SummaryModel))
	var embedder ai.Embedder
	var embedderName string

	if cfg.AI.OpenAI.APIKey != "" {
		p := ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey,
			ai.WithBaseURL(cfg.AI.OpenAI.BaseURL),
			ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		)
		router.Register("openai", p)
		embedder, embedderName = p, "openai"
	}
	if cfg.AI.Ollama.Enabled {
		p := ai.NewOllamaProvider(cfg.AI.Ollama.URL, ai.WithOllamaEmbeddingModel(cfg.AI.EmbeddingModel))
		router.Register("ollama", p)
		if embedder == nil {
			embedder, embedderName = p, "ollama"
		}
	}

	if router.HasProvider() {
		d.generator = router
	}
	if embedder == nil {
		slog.Info("no AI provider configured, documents are stored without embeddings or summaries")
		return
	}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL, time.Duration(cfg.Cache.TTLHours)*time.Hour)
		if err != nil {
			slog.Warn("embedding cache unavailable, continuing without it", "error", err)
		} else {
			d.closers = append(d.closers, func() { _ = c.Close() })
			model := cfg.AI.EmbeddingModel
			if model == "" {
				model = embedderName + "-default"
			}
			embedder = ai.NewCachedEmbedder(embedder, ai.NewRedisVectorCache(c.Client, c.TTL), model)
		}
	}
	d.embedder = embedder
}
