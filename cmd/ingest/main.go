// Command ingest runs the subreddit ingestion pipeline: ensure the Qdrant
// collection, fetch hot posts with flattened comments, embed the combined
// text, and upsert the points. One-shot by default, or periodic with
// -interval. Serves /health and /metrics while running.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/subsift/subsift/engine/domain"
	"github.com/subsift/subsift/engine/ingest"
	"github.com/subsift/subsift/engine/reddit"
	"github.com/subsift/subsift/engine/semantic"
	"github.com/subsift/subsift/pkg/metrics"
	"github.com/subsift/subsift/pkg/mid"
	"github.com/subsift/subsift/pkg/natsutil"
	"github.com/subsift/subsift/pkg/ollama"
)

// vectorDims is the dimensionality of the reference embedding model
// (all-minilm). The collection is created with this size and every
// embedding is validated against it.
const vectorDims = 384

var met = metrics.New()

var (
	mRunsTotal    = met.Counter("subsift_runs_total", "Pipeline runs started")
	mRunFailures  = func(stage string) *metrics.Counter { return met.Counter(metrics.WithLabels("subsift_run_failures_total", "stage", stage), "Pipeline runs failed") }
	mEmptyRuns    = met.Counter("subsift_empty_runs_total", "Runs that fetched no posts")
	mPostsFetched = met.Counter("subsift_posts_fetched_total", "Normalized posts fetched")
	mNatsPublish  = met.Counter("subsift_nats_published_total", "Posts published to NATS")
	mRunDur       = met.Histogram("subsift_run_duration_seconds", "Wall time per pipeline run", nil)
	mLastRun      = met.Gauge("subsift_last_run_timestamp", "Epoch of last pipeline run")
)

// Config holds all environment-based configuration.
type Config struct {
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
	TargetSubreddit    string
	QdrantAddr         string
	QdrantAPIKey       string
	Collection         string
	OllamaURL          string
	EmbedModel         string
	FetchLimit         int
}

func loadConfig() (Config, error) {
	limit := 5
	if v := os.Getenv("FETCH_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("FETCH_LIMIT %q is not an integer", v)
		}
		limit = n
	}
	return Config{
		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUserAgent:    os.Getenv("REDDIT_USER_AGENT"),
		TargetSubreddit:    envOr("TARGET_SUBREDDIT", "learnpython"),
		QdrantAddr:         envOr("QDRANT_URL", "localhost:6334"),
		QdrantAPIKey:       os.Getenv("QDRANT_API_KEY"),
		Collection:         envOr("QDRANT_COLLECTION_NAME", "reddit_posts"),
		OllamaURL:          envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:         envOr("EMBEDDING_MODEL_NAME", "all-minilm"),
		FetchLimit:         limit,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c Config) validate() error {
	if c.TargetSubreddit == "" {
		return fmt.Errorf("TARGET_SUBREDDIT must not be empty")
	}
	if c.Collection == "" {
		return fmt.Errorf("QDRANT_COLLECTION_NAME must not be empty")
	}
	if c.FetchLimit <= 0 {
		return fmt.Errorf("FETCH_LIMIT must be positive, got %d", c.FetchLimit)
	}
	if (c.RedditClientID == "") != (c.RedditClientSecret == "") {
		return fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET must be set together")
	}
	return nil
}

func main() {
	var (
		interval = flag.Duration("interval", 0, "re-run interval (0 = one-shot)")
		port     = flag.Int("port", 8080, "health/metrics HTTP port")
		natsURL  = flag.String("nats", "", "NATS URL for optional post fan-out")
		subject  = flag.String("subject", "subsift.posts", "NATS subject for fan-out")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err == nil {
		err = cfg.validate()
	}
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, *interval, *port, *natsURL, *subject, logger); err != nil {
		logger.Error("pipeline exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, interval time.Duration, port int, natsURL, subject string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Vector store
	vs, err := semantic.New(cfg.QdrantAddr, cfg.QdrantAPIKey, cfg.Collection, logger)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vs.Close()
	logger.Info("connected to Qdrant", "addr", cfg.QdrantAddr, "collection", cfg.Collection)

	// Embedder, with a startup probe of the model's dimensionality.
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)
	dims, err := embedder.Dimensions(ctx)
	if err != nil {
		return fmt.Errorf("embedding model probe: %w", err)
	}
	if dims != vectorDims {
		return fmt.Errorf("embedding model %s produces %d-dim vectors, collection expects %d",
			cfg.EmbedModel, dims, vectorDims)
	}
	logger.Info("embedding model ready", "model", cfg.EmbedModel, "dims", dims)

	// Reddit client
	client := reddit.NewClient(reddit.Config{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.RedditUserAgent,
	})

	// Optional NATS fan-out
	var nc *nats.Conn
	if natsURL != "" {
		nc, err = nats.Connect(natsURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		logger.Info("publishing fetched posts to NATS", "subject", subject)
	}

	pipeline := &ingest.Pipeline{
		Store:      vs,
		Fetcher:    ingest.NewFetcher(client, logger),
		Engine:     ingest.NewEngine(embedder, vs, vectorDims, logger),
		Collection: semantic.DefaultCollectionParams(vectorDims),
		Subreddit:  cfg.TargetSubreddit,
		Limit:      cfg.FetchLimit,
		Publish: func(ctx context.Context, post domain.NormalizedPost) error {
			mPostsFetched.Inc()
			if nc == nil {
				return nil
			}
			if err := natsutil.Publish(ctx, nc, subject, post); err != nil {
				return err
			}
			mNatsPublish.Inc()
			return nil
		},
		Log: logger,
	}

	serveHTTP(port, logger)

	runOnce := func() error {
		mRunsTotal.Inc()
		mLastRun.Set(time.Now().Unix())
		start := time.Now()
		outcome, err := pipeline.Run(ctx)
		mRunDur.Since(start)
		if err != nil {
			mRunFailures(failureStage(err)).Inc()
			return err
		}
		if outcome == ingest.OutcomeEmpty {
			mEmptyRuns.Inc()
		}
		return nil
	}

	if err := runOnce(); err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			if err := runOnce(); err != nil {
				return err
			}
		}
	}
}

// failureStage maps a pipeline error to the stage label on the failure
// counter, using the wrapping prefixes Run applies.
func failureStage(err error) string {
	if strings.HasPrefix(err.Error(), "bootstrap:") {
		return "bootstrap"
	}
	return "upsert"
}

func serveHTTP(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("subsift"),
	)

	go func() {
		addr := fmt.Sprintf(":%d", port)
		if err := http.ListenAndServe(addr, handler); err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}()
}
