// Package reddit provides a client for Reddit's JSON API: hot listings,
// comment trees with "load more" expansion, and comment flattening.
package reddit

import "time"

// Submission is one post from a subreddit listing.
type Submission struct {
	ID          string    `json:"id"`
	Subreddit   string    `json:"subreddit"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	SelfText    string    `json:"self_text"`
	URL         string    `json:"url"`
	Permalink   string    `json:"permalink"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	Stickied    bool      `json:"stickied"`
	CreatedUTC  time.Time `json:"created_utc"`
}

// Comment is a single node of a comment tree, flattened into traversal
// order (parents before replies, siblings in Reddit's order). A node with
// More set is a collapsed "load more" placeholder rather than real content.
type Comment struct {
	ID       string   `json:"id"`
	Author   string   `json:"author"`
	Body     string   `json:"body"`
	ParentID string   `json:"parent_id"`
	Depth    int      `json:"depth"`
	More     bool     `json:"more,omitempty"`
	MoreIDs  []string `json:"more_ids,omitempty"`
}

// Config controls client behavior. ClientID/ClientSecret are optional; when
// both are set the client authenticates via OAuth2 client credentials and
// uses the oauth API host, otherwise it reads the public JSON API.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string

	// RequestsPerSecond paces outbound calls. Zero means the default
	// (one request per two seconds, within Reddit's unauthenticated limits).
	RequestsPerSecond float64

	// BaseURL and TokenURL override the API endpoints, and RetryWait the
	// retry backoff, for tests.
	BaseURL   string
	TokenURL  string
	RetryWait time.Duration
}
