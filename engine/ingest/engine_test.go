package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/subsift/subsift/engine/domain"
	"github.com/subsift/subsift/engine/semantic"
)

type mockEmbedder struct {
	dims  int
	calls int
	err   error
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, m.dims)
	}
	return out, nil
}

type mockWriter struct {
	records [][]semantic.VectorRecord
	status  semantic.UpsertStatus
	err     error
}

func (m *mockWriter) Upsert(_ context.Context, records []semantic.VectorRecord) (semantic.UpsertStatus, error) {
	m.records = append(m.records, records)
	return m.status, m.err
}

func twoPosts() []domain.NormalizedPost {
	return []domain.NormalizedPost{
		domain.NewNormalizedPost("abc123", "first", "https://example.com/1", "body one", "c"),
		domain.NewNormalizedPost("def456", "second", "https://example.com/2", "body two", ""),
	}
}

func TestEngineUpsert_EmptyIsNoOp(t *testing.T) {
	emb := &mockEmbedder{dims: 4}
	w := &mockWriter{}
	e := NewEngine(emb, w, 4, nil)

	if err := e.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert errored: %v", err)
	}
	if emb.calls != 0 {
		t.Error("embedder invoked for empty batch")
	}
	if len(w.records) != 0 {
		t.Error("store invoked for empty batch")
	}
}

func TestEngineUpsert_WritesDerivedIDsAndPayloads(t *testing.T) {
	emb := &mockEmbedder{dims: 4}
	w := &mockWriter{}
	e := NewEngine(emb, w, 4, nil)

	if err := e.Upsert(context.Background(), twoPosts()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(w.records) != 1 {
		t.Fatalf("expected a single upsert call, got %d", len(w.records))
	}
	records := w.records[0]
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].ID != "616d42ca-cddb-57f6-a86d-ed5fbcd0ed3d" {
		t.Errorf("record 0 id = %s", records[0].ID)
	}
	if records[1].ID != "fa0dc1b3-58ba-5145-a5ff-3aa1b26035b3" {
		t.Errorf("record 1 id = %s", records[1].ID)
	}

	p := records[0].Payload
	for _, key := range []string{"reddit_id", "title", "url", "content", "comments"} {
		if _, ok := p[key]; !ok {
			t.Errorf("payload missing %q", key)
		}
	}
	if p["reddit_id"] != "abc123" || p["title"] != "first" {
		t.Errorf("unexpected payload: %+v", p)
	}
	if _, ok := p["combined_text"]; ok {
		t.Error("combined_text must not be stored in the payload")
	}
}

func TestEngineUpsert_Idempotent(t *testing.T) {
	emb := &mockEmbedder{dims: 4}
	w := &mockWriter{}
	e := NewEngine(emb, w, 4, nil)

	posts := twoPosts()
	if err := e.Upsert(context.Background(), posts); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := e.Upsert(context.Background(), posts); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if w.records[0][0].ID != w.records[1][0].ID {
		t.Error("re-upsert produced a different point id")
	}
}

func TestEngineUpsert_DropsDuplicateIDs(t *testing.T) {
	emb := &mockEmbedder{dims: 4}
	w := &mockWriter{}
	e := NewEngine(emb, w, 4, nil)

	posts := twoPosts()
	posts = append(posts, posts[0])
	if err := e.Upsert(context.Background(), posts); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(w.records[0]) != 2 {
		t.Fatalf("expected duplicates dropped, got %d records", len(w.records[0]))
	}
}

func TestEngineUpsert_DimensionMismatch(t *testing.T) {
	emb := &mockEmbedder{dims: 3}
	w := &mockWriter{}
	e := NewEngine(emb, w, 4, nil)

	err := e.Upsert(context.Background(), twoPosts())
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if len(w.records) != 0 {
		t.Error("store must not be written on dimension mismatch")
	}
}

func TestEngineUpsert_EmbedderError(t *testing.T) {
	emb := &mockEmbedder{dims: 4, err: errors.New("model not loaded")}
	w := &mockWriter{}
	e := NewEngine(emb, w, 4, nil)

	if err := e.Upsert(context.Background(), twoPosts()); err == nil {
		t.Fatal("expected embedder error to propagate")
	}
}

func TestEngineUpsert_StoreError(t *testing.T) {
	emb := &mockEmbedder{dims: 4}
	w := &mockWriter{err: errors.New("write rejected")}
	e := NewEngine(emb, w, 4, nil)

	if err := e.Upsert(context.Background(), twoPosts()); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestEngineUpsert_UncertainStatusIsNotError(t *testing.T) {
	emb := &mockEmbedder{dims: 4}
	w := &mockWriter{status: semantic.UpsertUncertain}
	e := NewEngine(emb, w, 4, nil)

	if err := e.Upsert(context.Background(), twoPosts()); err != nil {
		t.Fatalf("uncertain status must be a warning, not an error: %v", err)
	}
}

func TestEngineUpsert_InvalidPost(t *testing.T) {
	emb := &mockEmbedder{dims: 4}
	w := &mockWriter{}
	e := NewEngine(emb, w, 4, nil)

	bad := twoPosts()
	bad[1].ID = ""
	if err := e.Upsert(context.Background(), bad); err == nil {
		t.Fatal("expected validation error")
	}
	if emb.calls != 0 {
		t.Error("embedder invoked for invalid batch")
	}
}
