package graphfold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/graphfold/graphfold/pkg/alert"
	"github.com/graphfold/graphfold/pkg/config"
	"github.com/graphfold/graphfold/pkg/decision"
	"github.com/graphfold/graphfold/pkg/driver"
	"github.com/graphfold/graphfold/pkg/embedder"
	"github.com/graphfold/graphfold/pkg/importer"
	"github.com/graphfold/graphfold/pkg/logger"
	"github.com/graphfold/graphfold/pkg/match"
	"github.com/graphfold/graphfold/pkg/retrieve"
	"github.com/graphfold/graphfold/pkg/review"
	"github.com/graphfold/graphfold/pkg/taxonomy"
	"github.com/graphfold/graphfold/pkg/telemetry"
	"github.com/graphfold/graphfold/pkg/tiebreak"
	"github.com/graphfold/graphfold/pkg/types"
)

// Graphfold is the interface for resolving extracted entities into a graph.
type Graphfold interface {
	// ImportBatch resolves and imports one extraction payload. It returns
	// per-batch statistics; the error is non-nil only when the whole batch
	// could not run (unreachable store, cancelled context).
	ImportBatch(ctx context.Context, payload *types.ExtractionPayload) (*types.ImportStats, error)

	// ApplyReview resubmits a pending review record with a human decision,
	// importing the entity accordingly and marking the record complete.
	ApplyReview(ctx context.Context, id string, decision types.ReviewDecision, notes, reviewer string) (*types.ReviewRecord, error)

	// PendingReviews lists review records still awaiting a decision.
	PendingReviews() ([]*types.ReviewRecord, error)

	// Stats returns node and relationship counts from the store.
	Stats(ctx context.Context) (*driver.GraphStats, error)

	// Reset deletes all nodes and relationships from the store.
	Reset(ctx context.Context) (int, error)

	// Close releases the client's resources.
	Close(ctx context.Context) error
}

// Client is the standard Graphfold implementation. Construct it with
// NewClient when the caller owns the store and model clients, or with Open
// to build everything from configuration.
type Client struct {
	store     driver.GraphStore
	embedder  embedder.Client
	tiebreak  tiebreak.Client
	registry  *match.Registry
	retriever *retrieve.Retriever
	engine    *decision.Engine
	queue     *review.Queue
	imp       *importer.Importer
	decisions *telemetry.DecisionLog
	taxonomy  taxonomy.Provider
	config    *config.Config
	logger    *slog.Logger
}

var _ Graphfold = (*Client)(nil)

// NewClient creates a Graphfold client around an existing store. The
// embedding and tiebreak clients may be nil: without an embedder the
// retrieval ladder skips vector similarity, and without a tiebreak client
// ambiguous entities go straight to review. A nil config uses defaults, a
// nil logger uses slog.Default.
func NewClient(store driver.GraphStore, embedderClient embedder.Client, tiebreakClient tiebreak.Client, cfg *config.Config, log *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, errors.New("graph store is required")
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	if log == nil {
		log = slog.Default()
	}

	registry := match.NewRegistry()
	retriever := retrieve.NewRetriever(store, embedderClient, registry, retrieve.Config{
		Limit:           cfg.Retrieval.Limit,
		MinFuzzyNameLen: cfg.Retrieval.MinFuzzyNameLen,
	}, log)
	engine := decision.NewEngine(registry, tiebreakClient, decision.Config{
		HighThreshold: cfg.Decision.HighThreshold,
		LowThreshold:  cfg.Decision.LowThreshold,
	}, log)

	queue, err := review.Open(cfg.Review.Path, log)
	if err != nil {
		return nil, fmt.Errorf("open review queue: %w", err)
	}

	var provider taxonomy.Provider
	if cfg.Taxonomy.Path != "" {
		fp, err := taxonomy.LoadFile(cfg.Taxonomy.Path)
		if err != nil {
			log.Warn("taxonomy unavailable, importing without advisory validation", "path", cfg.Taxonomy.Path, "error", err)
		} else {
			provider = fp
		}
	}

	var decisions *telemetry.DecisionLog
	if cfg.Telemetry.Enabled {
		decisions, err = telemetry.NewDecisionLog(cfg.Telemetry.Dir, cfg.Telemetry.BatchSize, log)
		if err != nil {
			log.Warn("decision telemetry unavailable, importing without it", "dir", cfg.Telemetry.Dir, "error", err)
			decisions = nil
		}
	}

	return &Client{
		store:     store,
		embedder:  embedderClient,
		tiebreak:  tiebreakClient,
		registry:  registry,
		retriever: retriever,
		engine:    engine,
		queue:     queue,
		imp:       importer.New(store, log),
		decisions: decisions,
		taxonomy:  provider,
		config:    cfg,
		logger:    log,
	}, nil
}

// Open builds a client entirely from configuration: the store, the
// embedding provider with its cache, and the tiebreak client behind its
// circuit breaker. A nil cfg loads configuration from file and
// environment; a nil logger builds one from the configured level and
// format.
func Open(cfg *config.Config, log *slog.Logger) (*Client, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Format)
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	embedderClient, err := openEmbedder(cfg, log)
	if err != nil {
		return nil, err
	}
	tiebreakClient := openTiebreak(cfg, log)

	return NewClient(store, embedderClient, tiebreakClient, cfg, log)
}

func openStore(cfg *config.Config, log *slog.Logger) (driver.GraphStore, error) {
	switch strings.ToLower(cfg.Database.Provider) {
	case "memory":
		return driver.NewMemoryStore(), nil
	case "neo4j", "":
		return driver.NewNeo4jStore(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database, log)
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", cfg.Database.Provider)
	}
}

func openEmbedder(cfg *config.Config, log *slog.Logger) (embedder.Client, error) {
	ec := cfg.Embedding
	var inner embedder.Client
	switch strings.ToLower(ec.Provider) {
	case "", "none":
		return nil, nil
	case "openai":
		if ec.APIKey == "" {
			return nil, errors.New("embedding provider openai requires an api key")
		}
		inner = embedder.NewOpenAIEmbedder(ec.APIKey, embedder.Config{
			Model:      ec.Model,
			BaseURL:    ec.BaseURL,
			Dimensions: ec.Dimensions,
		})
	case "local":
		client, err := embedder.NewEmbedEverythingClient(embedder.Config{
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("local embedder: %w", err)
		}
		inner = client
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}

	if !ec.Cache.Enabled {
		return inner, nil
	}
	ttl := time.Duration(ec.Cache.TTLHours) * time.Hour
	cached, err := embedder.NewCachedClient(inner, ec.Cache.Dir, ec.Model, ttl, log)
	if err != nil {
		log.Warn("embedding cache unavailable, continuing without it", "dir", ec.Cache.Dir, "error", err)
		return inner, nil
	}
	return cached, nil
}

func openTiebreak(cfg *config.Config, log *slog.Logger) tiebreak.Client {
	tc := cfg.Tiebreak
	if !tc.Enabled {
		return nil
	}
	if tc.APIKey == "" {
		log.Warn("tiebreak enabled but no api key configured, ambiguous entities go to review")
		return nil
	}
	base := tiebreak.NewOpenAIClient(tc.APIKey, tiebreak.Config{
		Model:       tc.Model,
		BaseURL:     tc.BaseURL,
		MaxTokens:   tc.MaxTokens,
		CallTimeout: time.Duration(tc.CallTimeout) * time.Second,
	}, log)

	var alerter alert.Alerter = &alert.NoOpAlerter{}
	if cfg.Alert.Enabled {
		alerter = alert.NewEmailAlerter(cfg.Alert)
	}
	return tiebreak.NewCircuitBreakerClient(base, tiebreak.BreakerConfig{
		MaxRequests: cfg.Tiebreak.Breaker.MaxRequests,
		Interval:    time.Duration(cfg.Tiebreak.Breaker.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Tiebreak.Breaker.Timeout) * time.Second,
		TripRatio:   cfg.Tiebreak.Breaker.TripRatio,
	}, alerter, log)
}

// GetStore returns the underlying graph store.
func (c *Client) GetStore() driver.GraphStore {
	return c.store
}

// GetMatchers returns the matcher registry, for registering custom
// per-type matchers before importing.
func (c *Client) GetMatchers() *match.Registry {
	return c.registry
}

// GetTaxonomy returns the loaded taxonomy provider, or nil when none is
// configured.
func (c *Client) GetTaxonomy() taxonomy.Provider {
	return c.taxonomy
}

// GetQueue returns the review queue.
func (c *Client) GetQueue() *review.Queue {
	return c.queue
}

// PendingReviews lists review records still awaiting a decision.
func (c *Client) PendingReviews() ([]*types.ReviewRecord, error) {
	return c.queue.ListPending()
}

// Stats returns node and relationship counts from the store.
func (c *Client) Stats(ctx context.Context) (*driver.GraphStats, error) {
	return c.store.Stats(ctx)
}

// Reset deletes every node and relationship from the store in bounded
// chunks and returns how many nodes were removed. The review queue and
// the decision log are left untouched.
func (c *Client) Reset(ctx context.Context) (int, error) {
	return c.imp.Clear(ctx, c.config.Import.ClearChunkSize)
}

// Close flushes the decision log and closes the model clients and the
// store.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if c.decisions != nil {
		if err := c.decisions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("decision log: %w", err))
		}
	}
	if c.tiebreak != nil {
		if err := c.tiebreak.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tiebreak client: %w", err))
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("embedder: %w", err))
		}
	}
	if err := c.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}

var (
	// ErrNilPayload is returned when ImportBatch receives a nil payload.
	ErrNilPayload = errors.New("extraction payload is nil")
	// ErrReviewNotFound is returned when no review record has the given id.
	ErrReviewNotFound = errors.New("review record not found")
	// ErrReviewCompleted is returned when the review record already holds a
	// decision.
	ErrReviewCompleted = errors.New("review record already completed")
)
