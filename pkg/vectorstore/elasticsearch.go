package vectorstore

import (
	"context"
	"fmt"

	"docqa-go/internal/config"
	"docqa-go/pkg/es"
)

// Elasticsearch 把分块写入带 dense_vector 字段的索引，使用 kNN + term 过滤检索。
type Elasticsearch struct {
	client     *es.Client
	dimensions int
}

// NewElasticsearch 创建 Elasticsearch 向量库。
func NewElasticsearch(cfg config.ElasticsearchConfig, dimensions int) (*Elasticsearch, error) {
	client, err := es.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化 Elasticsearch 客户端失败: %w", err)
	}
	return &Elasticsearch{client: client, dimensions: dimensions}, nil
}

func (e *Elasticsearch) EnsureIndex(ctx context.Context) error {
	return e.client.CreateIndexIfNotExists(ctx, e.dimensions)
}

func (e *Elasticsearch) Upsert(ctx context.Context, namespace string, records []Record) error {
	docs := make([]es.ChunkDocument, len(records))
	for i, r := range records {
		docs[i] = es.ChunkDocument{
			VectorID:   r.ID,
			Namespace:  namespace,
			ChunkIndex: r.Index,
			Text:       r.Text,
			Vector:     r.Vector,
		}
	}
	return e.client.BulkIndex(ctx, docs)
}

func (e *Elasticsearch) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	hits, err := e.client.KNNSearch(ctx, namespace, vector, topK)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, Match{
			ID:    h.Source.VectorID,
			Index: h.Source.ChunkIndex,
			Text:  h.Source.Text,
			Score: h.Score,
		})
	}
	return matches, nil
}

func (e *Elasticsearch) DeleteNamespace(ctx context.Context, namespace string) error {
	return e.client.DeleteByNamespace(ctx, namespace)
}

func (e *Elasticsearch) Close() error { return nil }
