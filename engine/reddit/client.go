package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/subsift/subsift/pkg/fn"
	"github.com/subsift/subsift/pkg/resilience"
)

const (
	publicBaseURL   = "https://www.reddit.com"
	oauthBaseURL    = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// moreBatchSize is the max comment ids per /api/morechildren call.
	moreBatchSize = 100
)

// Client fetches listings and comment trees from Reddit.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker

	token    string
	tokenExp time.Time
}

// NewClient creates a Client with the given config.
func NewClient(cfg Config) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

func (c *Client) retryOpts(attempts int, initial, max time.Duration) fn.RetryOpts {
	if c.cfg.RetryWait > 0 {
		initial, max = c.cfg.RetryWait, c.cfg.RetryWait
	}
	return fn.RetryOpts{
		MaxAttempts: attempts,
		InitialWait: initial,
		MaxWait:     max,
		Jitter:      true,
	}
}

func (c *Client) authenticated() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

func (c *Client) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	if c.authenticated() {
		return oauthBaseURL
	}
	return publicBaseURL
}

// Hot fetches the top posts of the subreddit's hot listing.
func (c *Client) Hot(ctx context.Context, subreddit string, limit int) ([]Submission, error) {
	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", c.baseURL(), subreddit, limit)

	result := fn.Retry(ctx, c.retryOpts(3, 5*time.Second, 30*time.Second),
		func(ctx context.Context) fn.Result[*listingResponse] {
			return c.doGetListing(ctx, u)
		})

	resp, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("reddit: r/%s hot listing: %w", subreddit, err)
	}

	subs := make([]Submission, 0, len(resp.Data.Children))
	for _, child := range resp.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		d := child.Data
		subs = append(subs, Submission{
			ID:          d.ID,
			Subreddit:   d.Subreddit,
			Title:       d.Title,
			Author:      d.Author,
			SelfText:    d.SelfText,
			URL:         d.URL,
			Permalink:   d.Permalink,
			Score:       d.Score,
			NumComments: d.NumComments,
			Stickied:    d.Stickied,
			CreatedUTC:  time.Unix(int64(d.CreatedUTC), 0).UTC(),
		})
	}
	return subs, nil
}

// Comments fetches the full comment tree of a submission in traversal order
// with every "load more" placeholder expanded. Placeholders that cannot be
// resolved remain in the result with More set.
func (c *Client) Comments(ctx context.Context, sub Submission) ([]Comment, error) {
	u := fmt.Sprintf("%s%s.json?raw_json=1&sort=top", c.baseURL(), sub.Permalink)

	result := fn.Retry(ctx, c.retryOpts(2, 3*time.Second, 15*time.Second),
		func(ctx context.Context) fn.Result[[]Comment] {
			return c.doGetComments(ctx, u)
		})

	comments, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("reddit: comments for %s: %w", sub.ID, err)
	}
	return c.expandMore(ctx, sub.ID, comments), nil
}

// maxExpandRounds bounds placeholder expansion so a misbehaving API cannot
// loop us forever.
const maxExpandRounds = 500

// expandMore replaces "load more" placeholders with their fetched children,
// splicing at the placeholder position so traversal order is preserved.
func (c *Client) expandMore(ctx context.Context, linkID string, comments []Comment) []Comment {
	for rounds := 0; rounds < maxExpandRounds; rounds++ {
		idx := -1
		for i, cm := range comments {
			if cm.More && len(cm.MoreIDs) > 0 {
				idx = i
				break
			}
		}
		if idx < 0 {
			return comments
		}

		node := comments[idx]
		fetched, err := c.moreChildren(ctx, linkID, node.MoreIDs)
		if err != nil {
			// Leave the placeholder in place; Flatten skips it.
			node.MoreIDs = nil
			comments[idx] = node
			continue
		}

		expanded := make([]Comment, 0, len(comments)+len(fetched)-1)
		expanded = append(expanded, comments[:idx]...)
		expanded = append(expanded, fetched...)
		expanded = append(expanded, comments[idx+1:]...)
		comments = expanded
	}
	return comments
}

func (c *Client) moreChildren(ctx context.Context, linkID string, ids []string) ([]Comment, error) {
	var out []Comment
	for _, batch := range fn.Chunk(ids, moreBatchSize) {
		u := fmt.Sprintf("%s/api/morechildren.json?api_type=json&raw_json=1&link_id=t3_%s&children=%s",
			c.baseURL(), linkID, url.QueryEscape(strings.Join(batch, ",")))

		body, err := c.httpGet(ctx, u)
		if err != nil {
			return nil, err
		}

		var resp moreChildrenResponse
		err = json.NewDecoder(body).Decode(&resp)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode morechildren: %w", err)
		}

		for _, thing := range resp.JSON.Data.Things {
			switch thing.Kind {
			case "t1":
				d := thing.Data
				out = append(out, Comment{
					ID:       d.ID,
					Author:   d.Author,
					Body:     d.Body,
					ParentID: d.ParentID,
					Depth:    d.Depth,
				})
			case "more":
				out = append(out, Comment{
					ID:      thing.Data.ID,
					Depth:   thing.Data.Depth,
					More:    true,
					MoreIDs: thing.Data.ChildrenIDs,
				})
			}
		}
	}
	return out, nil
}

func (c *Client) doGetListing(ctx context.Context, u string) fn.Result[*listingResponse] {
	body, err := c.httpGet(ctx, u)
	if err != nil {
		return fn.Err[*listingResponse](err)
	}
	defer body.Close()

	var resp listingResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return fn.Err[*listingResponse](fmt.Errorf("decode listing: %w", err))
	}
	return fn.Ok(&resp)
}

func (c *Client) doGetComments(ctx context.Context, u string) fn.Result[[]Comment] {
	body, err := c.httpGet(ctx, u)
	if err != nil {
		return fn.Err[[]Comment](err)
	}
	defer body.Close()

	// Reddit returns [postListing, commentListing]
	var listings []listingResponse
	if err := json.NewDecoder(body).Decode(&listings); err != nil {
		return fn.Err[[]Comment](fmt.Errorf("decode comments: %w", err))
	}
	if len(listings) < 2 {
		return fn.Ok([]Comment(nil))
	}

	var comments []Comment
	walkComments(listings[1].Data.Children, 0, &comments)
	return fn.Ok(comments)
}

// walkComments flattens a nested comment listing depth-first, parents before
// replies, siblings in listing order.
func walkComments(children []listingChild, depth int, out *[]Comment) {
	for _, child := range children {
		d := child.Data
		switch child.Kind {
		case "t1":
			*out = append(*out, Comment{
				ID:       d.ID,
				Author:   d.Author,
				Body:     d.Body,
				ParentID: d.ParentID,
				Depth:    depth,
			})
			if len(d.Replies) > 2 { // empty replies arrive as ""
				var replies listingResponse
				if err := json.Unmarshal(d.Replies, &replies); err == nil {
					walkComments(replies.Data.Children, depth+1, out)
				}
			}
		case "more":
			*out = append(*out, Comment{
				ID:      d.ID,
				Depth:   depth,
				More:    true,
				MoreIDs: d.ChildrenIDs,
			})
		}
	}
}

func (c *Client) httpGet(ctx context.Context, u string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.ReadCloser
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent())

		if c.authenticated() {
			tok, err := c.accessToken(ctx)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+tok)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			return fmt.Errorf("http %d from %s", resp.StatusCode, u)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) userAgent() string {
	if c.cfg.UserAgent != "" {
		return c.cfg.UserAgent
	}
	return "subsift/1.0 (subreddit ingestion)"
}

// accessToken returns a cached OAuth2 client-credentials token, refreshing
// it when within a minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.token != "" && time.Until(c.tokenExp) > time.Minute {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reddit: token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reddit: token: status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("reddit: token decode: %w", err)
	}

	c.token = tok.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

// Reddit JSON API response types

type listingResponse struct {
	Data struct {
		Children []listingChild `json:"children"`
		After    string         `json:"after"`
	} `json:"data"`
}

type listingChild struct {
	Kind string      `json:"kind"`
	Data listingData `json:"data"`
}

type listingData struct {
	ID          string          `json:"id"`
	Subreddit   string          `json:"subreddit"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	SelfText    string          `json:"selftext"`
	Body        string          `json:"body"`
	URL         string          `json:"url"`
	Permalink   string          `json:"permalink"`
	Score       int             `json:"score"`
	NumComments int             `json:"num_comments"`
	Stickied    bool            `json:"stickied"`
	CreatedUTC  float64         `json:"created_utc"`
	ParentID    string          `json:"parent_id"`
	Depth       int             `json:"depth"`
	Replies     json.RawMessage `json:"replies,omitempty"`
	ChildrenIDs []string        `json:"children,omitempty"`
}

type moreChildrenResponse struct {
	JSON struct {
		Data struct {
			Things []listingChild `json:"things"`
		} `json:"data"`
	} `json:"json"`
}
