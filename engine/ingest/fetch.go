package ingest

import (
	"context"
	"log/slog"

	"github.com/subsift/subsift/engine/domain"
	"github.com/subsift/subsift/engine/reddit"
)

// RedditSource is the slice of the Reddit client the fetcher needs.
type RedditSource interface {
	Hot(ctx context.Context, subreddit string, limit int) ([]reddit.Submission, error)
	Comments(ctx context.Context, sub reddit.Submission) ([]reddit.Comment, error)
}

// Fetcher retrieves hot posts and normalizes them for ingestion.
type Fetcher struct {
	src RedditSource
	log *slog.Logger
}

// NewFetcher creates a Fetcher over a Reddit source.
func NewFetcher(src RedditSource, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{src: src, log: log}
}

// FetchPosts returns up to limit normalized posts from the subreddit's hot
// listing, in ranking order. Stickied posts are skipped after the request,
// so the limit bounds the raw listing rather than the filtered output.
// Upstream failures are logged and never propagated: the fetcher returns
// whatever posts it had accumulated, possibly none.
func (f *Fetcher) FetchPosts(ctx context.Context, subreddit string, limit int) []domain.NormalizedPost {
	subs, err := f.src.Hot(ctx, subreddit, limit)
	if err != nil {
		f.log.Error("hot listing fetch failed", "subreddit", subreddit, "error", err)
		return nil
	}

	var posts []domain.NormalizedPost
	for _, sub := range subs {
		if sub.Stickied {
			continue
		}

		comments, err := f.src.Comments(ctx, sub)
		if err != nil {
			f.log.Error("comment fetch failed, returning accumulated posts",
				"post_id", sub.ID, "fetched", len(posts), "error", err)
			return posts
		}

		flat := reddit.Flatten(comments, reddit.DefaultMaxComments, reddit.DefaultMaxDepth)
		posts = append(posts, domain.NewNormalizedPost(sub.ID, sub.Title, sub.URL, sub.SelfText, flat))
	}

	f.log.Info("fetched posts", "subreddit", subreddit, "count", len(posts))
	return posts
}
