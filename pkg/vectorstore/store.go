// Package vectorstore 定义了按命名空间隔离的向量存储接口及其多种实现。
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"docqa-go/internal/config"
)

// Record 是一条待写入的分块向量。
type Record struct {
	ID     string
	Index  int
	Text   string
	Vector []float32
}

// Match 是一次相似度检索的命中结果，按 Score 从高到低排列。
type Match struct {
	ID    string
	Index int
	Text  string
	Score float32
}

// Store 是向量库的抽象，所有写入与查询都限定在 namespace 内。
type Store interface {
	// EnsureIndex 在集合或索引不存在时创建它。
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, namespace string, records []Record) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	Close() error
}

// VectorID 返回分块在向量库中的标识。
func VectorID(namespace string, index int) string {
	return fmt.Sprintf("%s-%d", namespace, index)
}

// New 根据配置创建向量库实现。db 仅在 pgvector 模式下使用。
func New(cfg config.VectorStoreConfig, dimensions int, db *sql.DB) (Store, error) {
	switch cfg.Type {
	case "qdrant":
		return NewQdrant(cfg.Qdrant, dimensions)
	case "elasticsearch":
		return NewElasticsearch(cfg.Elasticsearch, dimensions)
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector 需要 postgres 数据库连接")
		}
		return NewPGVector(db, cfg.PGVector.Table, dimensions), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("不支持的向量库类型: %q", cfg.Type)
	}
}
