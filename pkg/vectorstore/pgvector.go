package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/pgvector/pgvector-go"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PGVector 把分块向量保存在 postgres 表中，依赖 pgvector 扩展。
type PGVector struct {
	db         *sql.DB
	table      string
	dimensions int
}

// NewPGVector 创建基于 pgvector 的向量库，db 需指向 postgres。
func NewPGVector(db *sql.DB, table string, dimensions int) *PGVector {
	if !tableNamePattern.MatchString(table) {
		table = "chunk_embeddings"
	}
	return &PGVector{db: db, table: table, dimensions: dimensions}
}

func (p *PGVector) EnsureIndex(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			namespace VARCHAR(64) NOT NULL,
			vector_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			UNIQUE (namespace, chunk_index)
		)`, p.table, p.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_namespace_idx ON %s (namespace)`, p.table, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("初始化 pgvector 表失败: %w", err)
		}
	}
	return nil
}

func (p *PGVector) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (namespace, vector_id, chunk_index, text, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (namespace, chunk_index)
		DO UPDATE SET vector_id = EXCLUDED.vector_id, text = EXCLUDED.text, embedding = EXCLUDED.embedding
	`, p.table)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, namespace, r.ID, r.Index, r.Text, pgvector.NewVector(r.Vector)); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (p *PGVector) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	query := fmt.Sprintf(`
		SELECT vector_id, chunk_index, text, 1 - (embedding <=> $2) AS score
		FROM %s
		WHERE namespace = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`, p.table)

	rows, err := p.db.QueryContext(ctx, query, namespace, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m     Match
			score float64
		)
		if err := rows.Scan(&m.ID, &m.Index, &m.Text, &score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating through matches: %w", err)
	}
	return matches, nil
}

func (p *PGVector) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, p.table), namespace)
	if err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}
	return nil
}

// Close 不关闭共享的数据库连接。
func (p *PGVector) Close() error { return nil }
