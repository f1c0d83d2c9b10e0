package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/semlink/semlink/internal/config"
	"github.com/semlink/semlink/internal/embeddings"
	"github.com/semlink/semlink/internal/history"
	"github.com/semlink/semlink/internal/index"
	"github.com/semlink/semlink/internal/notes"
	"github.com/semlink/semlink/internal/persistence"
	"github.com/semlink/semlink/internal/scheduler"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `semlink init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel)), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, 768, ""), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// eventFan multiplexes scheduler events to any number of observers that
// attach after the scheduler is built.
type eventFan struct {
	mu  sync.Mutex
	fns []func(scheduler.Event)
}

func (f *eventFan) add(fn func(scheduler.Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fns = append(f.fns, fn)
}

func (f *eventFan) publish(ev scheduler.Event) {
	f.mu.Lock()
	fns := make([]func(scheduler.Event), len(f.fns))
	copy(fns, f.fns)
	f.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// components bundles everything a command needs to work with the index.
type components struct {
	cfg     *config.Config
	vault   *notes.Vault
	store   *index.Store
	builder *index.Builder
	ranker  *index.Ranker
	sched   *scheduler.Scheduler
	fan     *eventFan
}

// buildComponents wires the vault, index, scheduler and embedder from
// config. The persisted index is loaded if present; a missing or broken
// snapshot degrades to an empty in-memory index.
func buildComponents() (*components, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	vault, err := notes.NewVault(cfg.VaultDir, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	store := index.NewStore(persistence.NewFileStore(resolvePath(cfg, cfg.IndexFile)))
	if err := store.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load persisted index, starting empty")
	}

	fan := &eventFan{}
	sched := scheduler.New(scheduler.Config{
		WindowCap:      cfg.RateLimit.WindowRequests,
		WindowDuration: time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BaseDelay:      time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
	}, scheduler.WithEventFunc(fan.publish))

	return &components{
		cfg:     cfg,
		vault:   vault,
		store:   store,
		builder: index.NewBuilder(store, vault, embedder, sched, cfg.BatchSize),
		ranker:  index.NewRanker(store),
		sched:   sched,
		fan:     fan,
	}, nil
}

func (c *components) close() {
	c.sched.Close()
}

// openHistory opens the run history database named in config.
func openHistory(cfg *config.Config) (*history.DB, error) {
	return history.Open(resolvePath(cfg, cfg.HistoryFile))
}

// resolvePath resolves a config-relative path against the vault root.
func resolvePath(cfg *config.Config, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cfg.VaultDir, path)
}

// recordRun waits for the queue to drain and writes one history row.
// Failures are logged, never fatal.
func recordRun(ctx context.Context, hist *history.DB, sched *scheduler.Scheduler, trigger history.Trigger, start time.Time, scheduled, beforeOK, beforeFail int) {
	if hist == nil || scheduled == 0 {
		return
	}
	if err := sched.OnIdle(ctx); err != nil {
		log.Warn().Err(err).Msg("run not recorded, queue never drained")
		return
	}

	afterOK, afterFail := sched.Stats()
	_, err := hist.Record(ctx, history.Run{
		StartedAt: start,
		Duration:  time.Since(start),
		Trigger:   trigger,
		Scheduled: scheduled,
		Succeeded: afterOK - beforeOK,
		Failed:    afterFail - beforeFail,
	})
	if err != nil {
		log.Warn().Err(err).Msg("recording run failed")
	}
}
