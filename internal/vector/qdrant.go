package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointNamespace is the UUIDv5 namespace under which logical document keys
// are mapped to Qdrant point ids. Fixed forever: changing it would orphan
// every previously written point.
var pointNamespace = uuid.MustParse("3c73cbc1-2d8b-4b90-a821-3d53f2c34e8a")

const payloadDocID = "doc_id"
const payloadContent = "content"

// QdrantStore implements Store using Qdrant over gRPC.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient

	mu      sync.Mutex
	ensured map[string]bool // collections known to exist
}

// NewQdrant creates a Qdrant-backed store.
func NewQdrant(host string, port int) (*QdrantStore, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		ensured:     make(map[string]bool),
	}, nil
}

// pointID maps a logical document key to a deterministic Qdrant point id.
func pointID(docID string) *pb.PointId {
	id := uuid.NewSHA1(pointNamespace, []byte(docID))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

func (s *QdrantStore) exists(ctx context.Context, collection string) (bool, error) {
	s.mu.Lock()
	known := s.ensured[collection]
	s.mu.Unlock()
	if known {
		return true, nil
	}

	resp, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: collection,
	})
	if err != nil {
		return false, fmt.Errorf("qdrant collection exists: %w", err)
	}
	exists := resp.GetResult().GetExists()
	if exists {
		s.mu.Lock()
		s.ensured[collection] = true
		s.mu.Unlock()
	}
	return exists, nil
}

// ensure creates the collection if needed. Dimensionality and distance
// metric are fixed at creation and immutable thereafter.
func (s *QdrantStore) ensure(ctx context.Context, collection string, dimension int) error {
	exists, err := s.exists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		// A concurrent writer may have created it first.
		if again, e2 := s.exists(ctx, collection); e2 == nil && again {
			return nil
		}
		return fmt.Errorf("qdrant create collection %q: %w", collection, err)
	}

	s.mu.Lock()
	s.ensured[collection] = true
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) Get(ctx context.Context, collection string, ids []string) ([]Document, error) {
	exists, err := s.exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists || len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}

	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant get: %w", err)
	}

	docs := make([]Document, 0, len(resp.Result))
	for _, pt := range resp.Result {
		doc := Document{Metadata: make(map[string]string)}
		for k, v := range pt.Payload {
			switch k {
			case payloadDocID:
				doc.ID = v.GetStringValue()
			case payloadContent:
				doc.Content = v.GetStringValue()
			default:
				doc.Metadata[k] = v.GetStringValue()
			}
		}
		if vec := pt.GetVectors().GetVector(); vec != nil {
			doc.Vector = vec.Data
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Upsert writes documents, creating the collection on first write. A Qdrant
// point upsert replaces vector and payload wholesale, which gives the
// per-id delete-then-insert contract directly.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensure(ctx, collection, len(docs[0].Vector)); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		payload := map[string]*pb.Value{
			payloadDocID:   {Kind: &pb.Value_StringValue{StringValue: d.ID}},
			payloadContent: {Kind: &pb.Value_StringValue{StringValue: d.Content}},
		}
		for k, v := range d.Metadata {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		points[i] = &pb.PointStruct{
			Id:      pointID(d.ID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: d.Vector}}},
			Payload: payload,
		}
	}

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	exists, err := s.exists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists || len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}

	_, err = s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, collection string, vec []float32, topK int) ([]SearchResult, error) {
	exists, err := s.exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists || topK <= 0 {
		return []SearchResult{}, nil
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]SearchResult, len(resp.Result))
	for i, pt := range resp.Result {
		r := SearchResult{Score: pt.Score, Metadata: make(map[string]string)}
		for k, v := range pt.Payload {
			switch k {
			case payloadDocID:
				r.ID = v.GetStringValue()
			case payloadContent:
				r.Content = v.GetStringValue()
			default:
				r.Metadata[k] = v.GetStringValue()
			}
		}
		results[i] = r
	}
	return results, nil
}

func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

var _ Store = (*QdrantStore)(nil)
