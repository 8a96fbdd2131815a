// Command docsvaultd runs the documentation indexing and retrieval
// service: it wires the Document Store, the scraper registry, the
// Pipeline Manager, and a thin HTTP surface together, then serves
// requests until signalled to stop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/docsvault/config"
	"github.com/hazyhaar/docsvault/contentproc"
	"github.com/hazyhaar/docsvault/embedder"
	"github.com/hazyhaar/docsvault/fetch"
	"github.com/hazyhaar/docsvault/httpapi"
	"github.com/hazyhaar/docsvault/jobmanager"
	"github.com/hazyhaar/docsvault/pipeline"
	"github.com/hazyhaar/docsvault/scrape"
	"github.com/hazyhaar/docsvault/splitter"
	"github.com/hazyhaar/docsvault/store"
)

func main() {
	configPath := flag.String("config", "docsvaultd.yaml", "path to the YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfigFile(*configPath)
	if err != nil {
		logger.Warn("config: using built-in defaults", "path", *configPath, "error", err)
		cfg = config.Default()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	emb := embedder.New(embedder.Config{
		Endpoint:  cfg.Embedder.Endpoint,
		Model:     selectEmbedderModel(cfg),
		Dimension: cfg.Embedder.Dimension,
		BatchSize: cfg.Embedder.BatchSize,
		Timeout:   cfg.Embedder.Timeout,
		Logger:    logger,
	})

	st, err := store.Open(store.Config{Path: cfg.Store.Path, Embedder: emb, Logger: logger})
	if err != nil {
		logger.Error("store open", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	httpFetcher := fetch.NewHTTP(fetch.HTTPConfig{Logger: logger})
	processors := contentproc.NewRegistry()
	registry := scrape.NewRegistry(httpFetcher, processors, logger)

	worker := &pipeline.Worker{
		Store:    st,
		Registry: registry,
		Splitter: splitter.Default{},
		Logger:   logger,
	}

	manager, err := jobmanager.New(jobmanager.Config{
		Concurrency: cfg.Scrape.Concurrency,
		Runner:      worker.RunJob,
		Logger:      logger,
		OnProgress: func(jobID string, p jobmanager.Progress) {
			logger.Debug("job progress", "job_id", jobID, "pages_scraped", p.PagesScraped, "current_url", p.CurrentURL)
		},
	})
	if err != nil {
		logger.Error("jobmanager init", "error", err)
		os.Exit(1)
	}
	manager.Start()

	api := &httpapi.Server{Manager: manager, Store: st, Logger: logger}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("docsvaultd starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("docsvaultd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("jobmanager shutdown", "error", err)
	}
	logger.Info("docsvaultd stopped")
}

// selectEmbedderModel parses the "provider:model" selector string named
// in §6 and returns just the model name the embedder client's Config
// expects; provider is otherwise left to credential discovery, an
// external collaborator concern.
func selectEmbedderModel(cfg *config.Config) string {
	_, model := config.ParseEmbedderSelector(cfg.Embedder.Selector)
	return model
}
