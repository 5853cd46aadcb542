package semantic

import pb "github.com/qdrant/go-client/qdrant"

// VectorRecord is a single point to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // title, url, content, comments, reddit_id
}

// CollectionParams describe the collection the bootstrapper ensures.
// Dimensionality and distance are immutable once the collection exists;
// EnsureCollection only verifies, never alters.
type CollectionParams struct {
	Dims        uint64
	Distance    pb.Distance
	M           uint64
	EfConstruct uint64
}

// DefaultCollectionParams returns cosine-distance params with standard HNSW
// tuning for the given dimensionality.
func DefaultCollectionParams(dims uint64) CollectionParams {
	return CollectionParams{
		Dims:        dims,
		Distance:    pb.Distance_Cosine,
		M:           16,
		EfConstruct: 100,
	}
}

// UpsertStatus classifies the store's acknowledgement of an upsert.
type UpsertStatus int

const (
	// UpsertCompleted means the store confirmed completion.
	UpsertCompleted UpsertStatus = iota
	// UpsertUncertain means the call returned without error but the store
	// did not report completion; callers needing strict guarantees must
	// re-verify by reading back.
	UpsertUncertain
)

func (s UpsertStatus) String() string {
	if s == UpsertCompleted {
		return "completed"
	}
	return "uncertain"
}
