package domain

import (
	"errors"
	"testing"
)

func validPost() NormalizedPost {
	return NewNormalizedPost(
		"abc123",
		"How do I learn generics?",
		"https://reddit.com/r/learnpython/abc123",
		"I keep getting confused by type parameters.",
		"Start with the tour.\n---\nRead the docs.",
	)
}

func TestNewNormalizedPost(t *testing.T) {
	p := validPost()
	if p.Content != "Title: How do I learn generics?\n\nI keep getting confused by type parameters." {
		t.Errorf("unexpected content: %q", p.Content)
	}
	want := p.Content + "\n\nComments:\nStart with the tour.\n---\nRead the docs."
	if p.CombinedText != want {
		t.Errorf("combined text mismatch:\ngot  %q\nwant %q", p.CombinedText, want)
	}
}

func TestBuildContent_TrimsOuterWhitespace(t *testing.T) {
	// Only the ends are trimmed; interior whitespace is content.
	got := BuildContent("Hello", "  body text \n")
	if got != "Title: Hello\n\n  body text" {
		t.Errorf("got %q", got)
	}
}

func TestBuildContent_EmptySelfText(t *testing.T) {
	got := BuildContent("Link post", "")
	if got != "Title: Link post" {
		t.Errorf("got %q", got)
	}
}

func TestCombineText_EmptyComments(t *testing.T) {
	got := CombineText("content", "")
	if got != "content\n\nComments:\n" {
		t.Errorf("got %q", got)
	}
}

func TestValidateNormalizedPost_Valid(t *testing.T) {
	if err := ValidateNormalizedPost(validPost()); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateNormalizedPost_MissingID(t *testing.T) {
	p := validPost()
	p.ID = ""
	err := ValidateNormalizedPost(p)
	if !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestValidateNormalizedPost_MissingTitle(t *testing.T) {
	p := validPost()
	p.Title = ""
	if err := ValidateNormalizedPost(p); !errors.Is(err, ErrMissingTitle) {
		t.Fatalf("expected ErrMissingTitle, got %v", err)
	}
}

func TestValidateNormalizedPost_TamperedCombinedText(t *testing.T) {
	p := validPost()
	p.CombinedText = "hand edited"
	err := ValidateNormalizedPost(p)
	if !errors.Is(err, ErrInconsistentText) {
		t.Fatalf("expected ErrInconsistentText, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected a *ValidationError")
	}
	if verr.Field != "combined_text" {
		t.Errorf("field = %q", verr.Field)
	}
}

func TestIsTombstone(t *testing.T) {
	for _, body := range []string{TombstoneDeleted, TombstoneRemoved} {
		if !IsTombstone(body) {
			t.Errorf("expected %q to be a tombstone", body)
		}
	}
	if IsTombstone("real comment") {
		t.Error("real comment flagged as tombstone")
	}
}
