// Package app wires configuration, index, embedder, provider and the chat
// engine into one container the commands can run.
package app

import (
	"context"
	"fmt"

	"github.com/iddcare/carebot/internal/api"
	"github.com/iddcare/carebot/internal/bot"
	"github.com/iddcare/carebot/internal/config"
	"github.com/iddcare/carebot/internal/embed"
	"github.com/iddcare/carebot/internal/index"
	"github.com/iddcare/carebot/internal/llm"
	"github.com/iddcare/carebot/internal/log"
	"github.com/iddcare/carebot/internal/retrieval"
)

// App is the core application container.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Store    *index.Store
	Watcher  *index.Watcher
	Embedder embed.Embedder
	Provider llm.Provider
	Engine   *bot.Engine
	Server   *api.Server
}

// New builds the full pipeline from cfg. It fails fast on a missing or
// corrupt index and on an index built with a different embedding model than
// the configured one.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	embedder, err := embed.Select(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("selecting embedder: %w", err)
	}
	logger.Info("embedder selected", "model", embedder.Model())

	store, err := index.NewStore(cfg.IndexDir, embedder.Model(), logger)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	watcher, err := index.NewWatcher(store, logger)
	if err != nil {
		return nil, fmt.Errorf("watching index dir: %w", err)
	}

	provider, err := llm.Select(ctx, cfg, logger)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("selecting LLM provider: %w", err)
	}

	retriever := retrieval.New(embedder, store, cfg.TopK, logger)
	engine := bot.New(retriever, provider, logger)

	server, err := api.NewServer(api.ServerConfig{
		Logger: logger,
		Engine: engine,
		Ready: func() bool {
			ix := store.Get()
			return ix != nil && ix.Count() > 0
		},
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Watcher:  watcher,
		Embedder: embedder,
		Provider: provider,
		Engine:   engine,
		Server:   server,
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a.Watcher != nil {
		return a.Watcher.Close()
	}
	return nil
}
