package vectorstore

import (
	"context"
	"fmt"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadNamespace = "namespace"
	payloadVectorID  = "vector_id"
	payloadChunk     = "chunk_index"
	payloadText      = "text"
)

// Qdrant 使用单个集合保存所有文档，通过 namespace payload 过滤实现隔离。
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
}

// NewQdrant 创建 Qdrant gRPC 客户端。
func NewQdrant(cfg config.QdrantConfig, dimensions int) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	return &Qdrant{client: client, collection: cfg.Collection, dimensions: uint64(dimensions)}, nil
}

// pointID 把 "<namespace>-<i>" 映射为确定性的 UUIDv5，Qdrant 只接受整数或 UUID 作为点 ID。
func pointID(vectorID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(vectorID)).String()
}

func namespaceFilter(namespace string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadNamespace, namespace),
		},
	}
}

func (q *Qdrant) EnsureIndex(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", q.collection, err)
	}
	if exists {
		log.Infof("[Qdrant] 集合 '%s' 已存在", q.collection)
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
	}

	wait := true
	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		Wait:           &wait,
		FieldName:      payloadNamespace,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace index: %w", err)
	}
	log.Infof("[Qdrant] 集合 '%s' 创建成功, 维度: %d", q.collection, q.dimensions)
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				payloadNamespace: namespace,
				payloadVectorID:  r.ID,
				payloadChunk:     r.Index,
				payloadText:      r.Text,
			}),
		}
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

func (q *Qdrant) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	limit := uint64(topK)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         namespaceFilter(namespace),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		payload := hit.GetPayload()
		matches = append(matches, Match{
			ID:    payload[payloadVectorID].GetStringValue(),
			Index: int(payload[payloadChunk].GetIntegerValue()),
			Text:  payload[payloadText].GetStringValue(),
			Score: hit.GetScore(),
		})
	}
	return matches, nil
}

func (q *Qdrant) DeleteNamespace(ctx context.Context, namespace string) error {
	wait := true
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: namespaceFilter(namespace),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}
	return nil
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}
