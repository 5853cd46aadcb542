package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/subsift/subsift/engine/domain"
	"github.com/subsift/subsift/engine/semantic"
)

// RunState tracks orchestrator progress through one run.
type RunState int

const (
	StateInit RunState = iota
	StateBootstrapped
	StateFetched
	StateUpserted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateBootstrapped:
		return "bootstrapped"
	case StateFetched:
		return "fetched"
	case StateUpserted:
		return "upserted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome distinguishes the two successful terminal results of a run.
type Outcome int

const (
	// OutcomeUpserted means posts were fetched and written.
	OutcomeUpserted Outcome = iota
	// OutcomeEmpty means the fetch produced nothing to do.
	OutcomeEmpty
)

// Bootstrapper ensures the target collection before any write.
type Bootstrapper interface {
	EnsureCollection(ctx context.Context, params semantic.CollectionParams) error
}

// PostFetcher produces the run's normalized posts.
type PostFetcher interface {
	FetchPosts(ctx context.Context, subreddit string, limit int) []domain.NormalizedPost
}

// Upserter embeds and writes a batch of posts.
type Upserter interface {
	Upsert(ctx context.Context, posts []domain.NormalizedPost) error
}

// Pipeline sequences bootstrap, fetch, and upsert for one run. All
// collaborators are injected; the pipeline owns none of their lifetimes.
type Pipeline struct {
	Store      Bootstrapper
	Fetcher    PostFetcher
	Engine     Upserter
	Collection semantic.CollectionParams
	Subreddit  string
	Limit      int

	// Publish, when set, is invoked for each fetched post before upsert.
	// Publish errors are logged and do not affect the run.
	Publish func(ctx context.Context, post domain.NormalizedPost) error

	Log *slog.Logger
}

// Run executes one pass: Init → Bootstrapped → Fetched → Upserted, with
// Failed terminal from any state. A bootstrap or upsert error is returned;
// an empty fetch ends the run successfully with OutcomeEmpty. The
// orchestrator never retries.
func (p *Pipeline) Run(ctx context.Context) (Outcome, error) {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}

	state := StateInit
	log.Info("pipeline starting", "state", state.String(), "subreddit", p.Subreddit, "limit", p.Limit)

	if err := p.Store.EnsureCollection(ctx, p.Collection); err != nil {
		state = StateFailed
		log.Error("collection bootstrap failed", "state", state.String(), "error", err)
		return OutcomeEmpty, fmt.Errorf("bootstrap: %w", err)
	}
	state = StateBootstrapped
	log.Info("collection ready", "state", state.String())

	posts := p.Fetcher.FetchPosts(ctx, p.Subreddit, p.Limit)
	state = StateFetched
	log.Info("fetch complete", "state", state.String(), "posts", len(posts))

	if p.Publish != nil {
		for _, post := range posts {
			if err := p.Publish(ctx, post); err != nil {
				log.Warn("post publish failed", "post_id", post.ID, "error", err)
			}
		}
	}

	if len(posts) == 0 {
		log.Warn("no posts fetched, nothing to do")
		return OutcomeEmpty, nil
	}

	if err := p.Engine.Upsert(ctx, posts); err != nil {
		state = StateFailed
		log.Error("upsert failed", "state", state.String(), "error", err)
		return OutcomeEmpty, fmt.Errorf("upsert: %w", err)
	}
	state = StateUpserted
	log.Info("pipeline finished", "state", state.String(), "posts", len(posts))
	return OutcomeUpserted, nil
}
