package domain

// ValidateNormalizedPost checks a post before it enters the upsert path.
// The CombinedText consistency check guards the invariant that the embedded
// string is a pure function of Content and Comments.
func ValidateNormalizedPost(p NormalizedPost) error {
	if p.ID == "" {
		return NewValidationError("id", p.ID, ErrMissingID)
	}
	if p.Title == "" {
		return NewValidationError("title", p.Title, ErrMissingTitle)
	}
	if p.Content == "" {
		return NewValidationError("content", p.Content, ErrEmptyContent)
	}
	if p.CombinedText != CombineText(p.Content, p.Comments) {
		return NewValidationError("combined_text", p.ID, ErrInconsistentText)
	}
	return nil
}
