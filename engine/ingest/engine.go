// Package ingest provides the ingestion core: deterministic point id
// mapping, post fetching, the embedding & upsert engine, and the pipeline
// orchestrator.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/subsift/subsift/engine/domain"
	"github.com/subsift/subsift/engine/semantic"
	"github.com/subsift/subsift/pkg/fn"
)

// EmbedBatchSize is the max documents per embedder invocation.
const EmbedBatchSize = 100

// Embedder computes one fixed-length vector per input text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter is the slice of the vector store the engine writes through.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) (semantic.UpsertStatus, error)
}

// Engine embeds normalized posts and upserts them as points.
type Engine struct {
	embedder Embedder
	store    VectorWriter
	dims     int
	log      *slog.Logger
}

// NewEngine creates an Engine. dims is the collection's configured vector
// dimensionality; every embedding is checked against it before the write.
func NewEngine(embedder Embedder, store VectorWriter, dims int, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{embedder: embedder, store: store, dims: dims, log: log}
}

// embeddedBatch pairs posts with their vectors, index-aligned.
type embeddedBatch struct {
	posts   []domain.NormalizedPost
	vectors [][]float32
}

// validate checks every post and drops duplicate external ids, keeping the
// first occurrence so the batch maps to distinct point ids.
func (e *Engine) validate(_ context.Context, posts []domain.NormalizedPost) fn.Result[[]domain.NormalizedPost] {
	for _, p := range posts {
		if err := domain.ValidateNormalizedPost(p); err != nil {
			return fn.Err[[]domain.NormalizedPost](err)
		}
	}
	deduped := fn.UniqueBy(posts, func(p domain.NormalizedPost) string { return p.ID })
	if len(deduped) < len(posts) {
		e.log.Warn("dropped duplicate post ids", "dropped", len(posts)-len(deduped))
	}
	return fn.Ok(deduped)
}

// embed turns combined texts into vectors, batching the embedder calls and
// verifying each vector against the collection dimensionality.
func (e *Engine) embed(ctx context.Context, posts []domain.NormalizedPost) fn.Result[embeddedBatch] {
	texts := fn.Map(posts, func(p domain.NormalizedPost) string { return p.CombinedText })

	vectors := make([][]float32, 0, len(texts))
	for _, batch := range fn.Chunk(texts, EmbedBatchSize) {
		vecs, err := e.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return fn.Err[embeddedBatch](fmt.Errorf("embed batch: %w", err))
		}
		vectors = append(vectors, vecs...)
	}

	for i, vec := range vectors {
		if len(vec) != e.dims {
			return fn.Errf[embeddedBatch]("embedding dimension mismatch for %s: got %d, collection expects %d",
				posts[i].ID, len(vec), e.dims)
		}
	}
	return fn.Ok(embeddedBatch{posts: posts, vectors: vectors})
}

// store maps posts to deterministic point ids and writes them in one
// synchronous upsert. CombinedText is write-only embedder input and is not
// stored in the payload.
func (e *Engine) storeBatch(ctx context.Context, batch embeddedBatch) fn.Result[int] {
	records := make([]semantic.VectorRecord, len(batch.posts))
	for i, p := range batch.posts {
		records[i] = semantic.VectorRecord{
			ID:        PointID(p.ID),
			Embedding: batch.vectors[i],
			Payload: map[string]any{
				"reddit_id": p.ID,
				"title":     p.Title,
				"url":       p.URL,
				"content":   p.Content,
				"comments":  p.Comments,
			},
		}
	}

	status, err := e.store.Upsert(ctx, records)
	if err != nil {
		return fn.Err[int](fmt.Errorf("vector upsert: %w", err))
	}
	if status != semantic.UpsertCompleted {
		e.log.Warn("upsert not confirmed completed", "status", status.String(), "points", len(records))
	}
	return fn.Ok(len(records))
}

// Upsert embeds the posts and writes them as points. An empty batch is a
// no-op with a warning. Transport and dimension failures are returned, not
// swallowed, so the caller can tell "upserted" from "failed".
func (e *Engine) Upsert(ctx context.Context, posts []domain.NormalizedPost) error {
	if len(posts) == 0 {
		e.log.Warn("no posts provided to upsert")
		return nil
	}

	pipeline := fn.Then(
		fn.TracedStage("validate", fn.Stage[[]domain.NormalizedPost, []domain.NormalizedPost](e.validate)),
		fn.Then(
			fn.TracedStage("embed", fn.Stage[[]domain.NormalizedPost, embeddedBatch](e.embed)),
			fn.TracedStage("store", fn.Stage[embeddedBatch, int](e.storeBatch)),
		),
	)

	result := pipeline(ctx, posts)
	if result.IsErr() {
		_, err := result.Unwrap()
		return err
	}
	count, _ := result.Unwrap()
	e.log.Info("upserted points", "count", count)
	return nil
}
