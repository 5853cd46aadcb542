// Package semantic is the sole owner of all Qdrant operations: collection
// bootstrap and point upsert.
package semantic

import (
	"context"
	"fmt"
	"log/slog"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// pointsAPI is the slice of the generated points client the store calls.
// pb.PointsClient satisfies it; tests inject doubles.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
}

// collectionsAPI is the slice of the generated collections client the
// store calls.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
}

// VectorStore owns the Qdrant connection and the target collection name.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	log         *slog.Logger
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
// apiKey may be empty; when set it is attached to every call.
func New(addr, apiKey, collection string, log *slog.Logger) (*VectorStore, error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if apiKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(apiKey)))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	vs := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, log)
	vs.conn = conn
	return vs, nil
}

// NewWithClients creates a VectorStore over existing clients. Used by New
// and by tests injecting doubles.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string, log *slog.Logger) *VectorStore {
	if log == nil {
		log = slog.Default()
	}
	return &VectorStore{
		points:      points,
		collections: collections,
		collection:  collection,
		log:         log,
	}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection if absent, with the given
// dimensionality, distance metric, and HNSW index params. When the
// collection already exists no mutating call is made; its health status is
// checked and a non-green status logged as a warning, since the store may
// still accept writes while optimizing. Idempotent and safe to call on
// every run.
func (v *VectorStore) EnsureCollection(ctx context.Context, params CollectionParams) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}

	exists := false
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			exists = true
			break
		}
	}

	if !exists {
		m := params.M
		ef := params.EfConstruct
		_, err = v.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: v.collection,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     params.Dims,
						Distance: params.Distance,
					},
				},
			},
			HnswConfig: &pb.HnswConfigDiff{
				M:           &m,
				EfConstruct: &ef,
			},
		})
		if err != nil {
			return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
		}
		v.log.Info("collection created", "collection", v.collection, "dims", params.Dims)
	}

	info, err := v.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: v.collection})
	if err != nil {
		return fmt.Errorf("semantic: collection info %s: %w", v.collection, err)
	}
	if status := info.GetResult().GetStatus(); status != pb.CollectionStatus_Green {
		v.log.Warn("collection not green, may be optimizing",
			"collection", v.collection, "status", status.String())
	}
	return nil
}

// Upsert writes records in a single synchronous call, waiting for the
// store's acknowledgement. The returned status is UpsertCompleted only when
// the store confirmed completion; re-upserting the same ids overwrites the
// previous vectors and payloads.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) (UpsertStatus, error) {
	if len(records) == 0 {
		return UpsertCompleted, nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: toPayload(r.Payload),
		}
	}

	wait := true
	resp, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return UpsertUncertain, fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}

	if resp.GetResult().GetStatus() != pb.UpdateStatus_Completed {
		return UpsertUncertain, nil
	}
	return UpsertCompleted, nil
}

func toPayload(fields map[string]any) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(fields))
	for k, val := range fields {
		switch tv := val.(type) {
		case string:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return payload
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
