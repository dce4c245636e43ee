// Package semantic is the sole owner of all Qdrant operations: collection
// bootstrap and tuning, wait-acknowledged upserts, dedup sampling, counting,
// and filtered search.
package semantic

import (
	"context"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// shardNumber spreads the collection across segments so bulk loads
	// parallelize.
	shardNumber = 2
	// DefaultIndexingThreshold is the normal HNSW indexing threshold
	// restored after a bulk import.
	DefaultIndexingThreshold = 20000
)

// Store owns a Qdrant collection over gRPC.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dims        int
}

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureCollection creates the collection if absent and remembers dims for
// vector-size checks. New collections are tuned for bulk loading: vectors
// and payload on disk, indexing threshold 0 (no HNSW building mid-import),
// int8 scalar quantization kept resident for fast scoring, and secondary
// payload indexes for the filters the search and dedup paths use.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	s.dims = dims

	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	onDisk := true
	alwaysRAM := true
	shards := uint32(shardNumber)
	zeroThreshold := uint64(0)

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
					OnDisk:   &onDisk,
				},
			},
		},
		ShardNumber:   &shards,
		OnDiskPayload: &onDisk,
		OptimizersConfig: &pb.OptimizersConfigDiff{
			IndexingThreshold: &zeroThreshold,
		},
		QuantizationConfig: &pb.QuantizationConfig{
			Quantization: &pb.QuantizationConfig_Scalar{
				Scalar: &pb.ScalarQuantization{
					Type:      pb.QuantizationType_Int8,
					AlwaysRam: &alwaysRAM,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", s.collection, err)
	}

	for field, fieldType := range map[string]pb.FieldType{
		FieldUsername:   pb.FieldType_FieldTypeKeyword,
		FieldCreatedAt:  pb.FieldType_FieldTypeInteger,
		FieldOriginalID: pb.FieldType_FieldTypeKeyword,
	} {
		if err := s.createFieldIndex(ctx, field, fieldType); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createFieldIndex(ctx context.Context, field string, fieldType pb.FieldType) error {
	wait := true
	_, err := s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      field,
		FieldType:      &fieldType,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("semantic: index %s: %w", field, err)
	}
	return nil
}

// EnableIndexing restores a normal indexing threshold after a bulk load.
// threshold <= 0 selects DefaultIndexingThreshold.
func (s *Store) EnableIndexing(ctx context.Context, threshold uint64) error {
	if threshold == 0 {
		threshold = DefaultIndexingThreshold
	}
	_, err := s.collections.Update(ctx, &pb.UpdateCollection{
		CollectionName: s.collection,
		OptimizersConfig: &pb.OptimizersConfigDiff{
			IndexingThreshold: &threshold,
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: enable indexing on %s: %w", s.collection, err)
	}
	return nil
}

// Upsert stores thread records and waits for durability. Every vector must
// match the configured collection size.
func (s *Store) Upsert(ctx context.Context, records []ThreadRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		if s.dims > 0 && len(r.Vector) != s.dims {
			return fmt.Errorf("semantic: point %s: %d-dim vector in %d-dim collection", r.ID, len(r.Vector), s.dims)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				FieldText:       {Kind: &pb.Value_StringValue{StringValue: r.Text}},
				FieldUsername:   {Kind: &pb.Value_StringValue{StringValue: r.Username}},
				FieldCreatedAt:  {Kind: &pb.Value_IntegerValue{IntegerValue: r.CreatedAt.Unix()}},
				FieldOriginalID: {Kind: &pb.Value_StringValue{StringValue: r.OriginalID}},
			},
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Count returns the exact point count. Used for post-import verification
// logging, not as a correctness gate.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return resp.GetResult().GetCount(), nil
}

// MaxCreatedAt scrolls a bounded sample of the username's points and returns
// the newest created_at observed. ok is false when the sample is empty.
// This is the dedup fallback when the ledger has no entry.
func (s *Store) MaxCreatedAt(ctx context.Context, username string, sample uint32) (time.Time, bool, error) {
	limit := sample
	resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: s.collection,
		Filter: &pb.Filter{
			Must: []*pb.Condition{keywordMatch(FieldUsername, username)},
		},
		Limit:       &limit,
		WithPayload: payloadEnabled(),
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("semantic: scroll %s: %w", username, err)
	}

	var max int64
	for _, p := range resp.GetResult() {
		if v, ok := p.GetPayload()[FieldCreatedAt]; ok {
			if ts := v.GetIntegerValue(); ts > max {
				max = ts
			}
		}
	}
	if max == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(max, 0).UTC(), true, nil
}

// SearchThreads performs filtered k-NN search over thread points.
func (s *Store) SearchThreads(ctx context.Context, vector []float32, topK int, filter SearchFilter) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    payloadEnabled(),
	}
	if must := filterConditions(filter); len(must) > 0 {
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		payload := r.GetPayload()
		results[i] = SearchResult{
			ID:         r.GetId().GetUuid(),
			Score:      r.GetScore(),
			Text:       payload[FieldText].GetStringValue(),
			Username:   payload[FieldUsername].GetStringValue(),
			OriginalID: payload[FieldOriginalID].GetStringValue(),
		}
		if ts := payload[FieldCreatedAt].GetIntegerValue(); ts > 0 {
			results[i].CreatedAt = time.Unix(ts, 0).UTC()
		}
	}
	return results, nil
}

// filterConditions maps a SearchFilter to the conjunctive must clauses of
// the index's filter grammar.
func filterConditions(f SearchFilter) []*pb.Condition {
	var must []*pb.Condition
	if f.Username != "" {
		must = append(must, keywordMatch(FieldUsername, f.Username))
	}
	if !f.Since.IsZero() || !f.Until.IsZero() {
		rng := &pb.Range{}
		if !f.Since.IsZero() {
			gte := float64(f.Since.Unix())
			rng.Gte = &gte
		}
		if !f.Until.IsZero() {
			lte := float64(f.Until.Unix())
			rng.Lte = &lte
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{Key: FieldCreatedAt, Range: rng},
			},
		})
	}
	return must
}

func keywordMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func payloadEnabled() *pb.WithPayloadSelector {
	return &pb.WithPayloadSelector{
		SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
	}
}
