// Package domain defines the core types, constants, and validation for the
// subsift ingestion pipeline. It acts as the validation gate at pipeline
// entry points.
package domain

import (
	"fmt"
	"strings"
)

// CommentSeparator joins flattened comment bodies.
const CommentSeparator = "\n---\n"

// Tombstone bodies Reddit substitutes for deleted or removed comments.
const (
	TombstoneDeleted = "[deleted]"
	TombstoneRemoved = "[removed]"
)

// NormalizedPost is one subreddit post after fetching and comment
// flattening, ready for embedding and upsert.
type NormalizedPost struct {
	ID           string `json:"id"` // Reddit's opaque post id
	Title        string `json:"title"`
	URL          string `json:"url"`
	Content      string `json:"content"`
	Comments     string `json:"comments"`
	CombinedText string `json:"combined_text"`
}

// BuildContent renders the post body text: title plus self text, trimmed.
func BuildContent(title, selfText string) string {
	return strings.TrimSpace(fmt.Sprintf("Title: %s\n\n%s", title, selfText))
}

// CombineText renders the exact string that gets embedded. CombinedText must
// always be this function of Content and Comments; it is never edited
// downstream.
func CombineText(content, comments string) string {
	return fmt.Sprintf("%s\n\nComments:\n%s", content, comments)
}

// NewNormalizedPost constructs a NormalizedPost with Content and
// CombinedText derived from the raw fields.
func NewNormalizedPost(id, title, url, selfText, comments string) NormalizedPost {
	content := BuildContent(title, selfText)
	return NormalizedPost{
		ID:           id,
		Title:        title,
		URL:          url,
		Content:      content,
		Comments:     comments,
		CombinedText: CombineText(content, comments),
	}
}

// IsTombstone reports whether a comment body is a deleted/removed marker.
func IsTombstone(body string) bool {
	return body == TombstoneDeleted || body == TombstoneRemoved
}
