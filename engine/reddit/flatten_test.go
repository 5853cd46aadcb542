package reddit

import (
	"strings"
	"testing"
)

func TestFlatten_ScenarioMixedNodes(t *testing.T) {
	// 3 real comments, 2 tombstoned, 1 placeholder at depth 0.
	comments := []Comment{
		{ID: "c1", Body: "first", Depth: 0},
		{ID: "c2", Body: "[deleted]", Depth: 0},
		{ID: "c3", Body: "second", Depth: 1},
		{ID: "c4", Body: "[removed]", Depth: 1},
		{ID: "m1", More: true, Depth: 0},
		{ID: "c5", Body: "third", Depth: 2},
	}

	got := Flatten(comments, DefaultMaxComments, DefaultMaxDepth)
	if got != "first\n---\nsecond\n---\nthird" {
		t.Errorf("got %q", got)
	}
}

func TestFlatten_MaxComments(t *testing.T) {
	var comments []Comment
	for i := 0; i < 50; i++ {
		comments = append(comments, Comment{Body: "body", Depth: 0})
	}
	got := Flatten(comments, 20, 5)
	if n := strings.Count(got, "\n---\n"); n != 19 {
		t.Errorf("expected 20 accepted bodies (19 separators), got %d separators", n)
	}
}

func TestFlatten_MaxDepth(t *testing.T) {
	comments := []Comment{
		{Body: "shallow", Depth: 4},
		{Body: "too deep", Depth: 5},
		{Body: "way too deep", Depth: 9},
	}
	got := Flatten(comments, 20, 5)
	if got != "shallow" {
		t.Errorf("got %q", got)
	}
}

func TestFlatten_SkipsEmptyBodies(t *testing.T) {
	comments := []Comment{
		{Body: "", Depth: 0},
		{Body: "kept", Depth: 0},
	}
	if got := Flatten(comments, 20, 5); got != "kept" {
		t.Errorf("got %q", got)
	}
}

func TestFlatten_AllFiltered(t *testing.T) {
	comments := []Comment{
		{Body: "[deleted]", Depth: 0},
		{More: true, Depth: 0},
		{Body: "deep", Depth: 7},
	}
	if got := Flatten(comments, 20, 5); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestFlatten_Empty(t *testing.T) {
	if got := Flatten(nil, 20, 5); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestFlatten_PreservesOrder(t *testing.T) {
	comments := []Comment{
		{Body: "a", Depth: 0},
		{Body: "b", Depth: 1},
		{Body: "c", Depth: 0},
	}
	got := Flatten(comments, 2, 5)
	if got != "a\n---\nb" {
		t.Errorf("got %q", got)
	}
}
