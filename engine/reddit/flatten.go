package reddit

import (
	"strings"

	"github.com/subsift/subsift/engine/domain"
)

const (
	// DefaultMaxComments bounds how many comment bodies Flatten accepts.
	DefaultMaxComments = 20
	// DefaultMaxDepth is the first comment depth Flatten rejects (0-based).
	DefaultMaxDepth = 5
)

// Flatten reduces an expanded comment tree to a bounded text blob. Comments
// are taken in traversal order until maxComments bodies are accepted,
// skipping placeholders, nodes at depth >= maxDepth, and empty or
// tombstoned bodies. Accepted bodies are joined with the comment separator.
// Zero accepted comments yields an empty string.
func Flatten(comments []Comment, maxComments, maxDepth int) string {
	var accepted []string
	for _, cm := range comments {
		if len(accepted) >= maxComments {
			break
		}
		if cm.More {
			continue
		}
		if cm.Depth >= maxDepth {
			continue
		}
		if cm.Body == "" || domain.IsTombstone(cm.Body) {
			continue
		}
		accepted = append(accepted, cm.Body)
	}
	return strings.Join(accepted, domain.CommentSeparator)
}
