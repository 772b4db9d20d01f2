// Command clipgraphd wires together configuration, the embedding and LLM
// clients, a persisted graph, the search facade, and the HTTP server into
// one long-running process, grounded on cmd/gliner2-api/main.go's
// config-load -> client-construct -> router-serve -> graceful-shutdown
// shape.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soundprediction/clipgraph/pkg/alert"
	"github.com/soundprediction/clipgraph/pkg/analysis"
	"github.com/soundprediction/clipgraph/pkg/config"
	"github.com/soundprediction/clipgraph/pkg/embedder"
	"github.com/soundprediction/clipgraph/pkg/graph"
	"github.com/soundprediction/clipgraph/pkg/llm"
	"github.com/soundprediction/clipgraph/pkg/logger"
	"github.com/soundprediction/clipgraph/pkg/search"
	"github.com/soundprediction/clipgraph/pkg/server"
	"github.com/soundprediction/clipgraph/pkg/snapshot"
	"github.com/soundprediction/clipgraph/pkg/synth"
)

func main() {
	if err := run(); err != nil {
		slog.Error("clipgraphd exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewDefaultLogger(parseLevel(cfg.Log.Level))
	slog.SetDefault(log)

	alerter := newAlerter(cfg)
	embed, err := buildEmbedder(cfg, alerter)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	llmClient, err := buildLLM(cfg, alerter)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	store, err := snapshot.Open(snapshot.BadgerOptions{DataDir: cfg.Snapshot.BadgerDir})
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer store.Close()

	g, err := loadOrInitGraph(store, log)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	synthesizer := synth.New(g, llmClient)
	ctx, cancel := signalContext()
	defer cancel()

	if err := synthesizer.RunSelectionHeuristic(ctx); err != nil {
		log.Warn("selection heuristic failed", "error", err)
	}
	log.Info("plot summary ready", "summary_length", len(analysis.PlotSummary(g)))

	if err := store.Save(g); err != nil {
		log.Warn("failed to persist graph snapshot", "error", err)
	}

	searcher := search.NewSearcher(g, embed)
	router := server.New(g, searcher, embed, cfg.Server.Mode)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	log.Info("starting clipgraphd", "addr", addr)
	if err := server.Run(ctx, addr, router); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	log.Info("saving graph snapshot before exit")
	return store.Save(g)
}

func loadOrInitGraph(store *snapshot.BadgerStore, log *slog.Logger) (*graph.Graph, error) {
	g, err := store.Load()
	if err != nil {
		return nil, err
	}
	if len(g.Characters()) > 1 {
		log.Info("loaded graph snapshot", "characters", len(g.Characters()), "edges", len(g.Edges()))
		return g, nil
	}
	log.Info("starting from an empty graph")
	return g, nil
}

func buildEmbedder(cfg *config.Config, alerter alert.Alerter) (embedder.Client, error) {
	var base embedder.Client
	var err error

	switch cfg.Embedding.Provider {
	case "embedeverything":
		base, err = embedder.NewEmbedEverythingClient(embedder.EmbedEverythingConfig{
			Model: cfg.Embedding.Model,
		})
	default:
		base, err = embedder.NewOpenAIClient(embedder.OpenAIConfig{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
	}
	if err != nil {
		return nil, err
	}

	cached := embedder.NewCachedClient(base)
	if !cfg.CircuitBreaker.Enabled {
		return cached, nil
	}
	return embedder.NewCircuitBreakerClient(cached, cfg.CircuitBreaker, alerter, "embedder"), nil
}

func buildLLM(cfg *config.Config, alerter alert.Alerter) (llm.Client, error) {
	base, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var wrapped llm.Client = base
	if cfg.CircuitBreaker.Enabled {
		wrapped = llm.NewCircuitBreakerClient(wrapped, cfg.CircuitBreaker, alerter, "llm")
	}
	return llm.NewRetryOnceClient(wrapped), nil
}

func newAlerter(cfg *config.Config) alert.Alerter {
	if !cfg.Alert.Enabled {
		return &alert.NoOpAlerter{}
	}
	return alert.NewEmailAlerter(cfg.Alert)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
