package repository

import (
	"context"
	"fmt"

	"docqa-go/internal/model"

	"gorm.io/gorm"
)

// QueryRepository 负责问答日志的读写。
type QueryRepository interface {
	Create(ctx context.Context, q *model.Query) error
	ListByDocument(ctx context.Context, documentID uint) ([]model.Query, error)
}

type queryRepository struct {
	db *gorm.DB
}

// NewQueryRepository 创建一个新的 QueryRepository 实例。
func NewQueryRepository(db *gorm.DB) QueryRepository {
	return &queryRepository{db: db}
}

func (r *queryRepository) Create(ctx context.Context, q *model.Query) error {
	if err := r.db.WithContext(ctx).Create(q).Error; err != nil {
		return fmt.Errorf("写入问答记录失败: %w", err)
	}
	return nil
}

func (r *queryRepository) ListByDocument(ctx context.Context, documentID uint) ([]model.Query, error) {
	var queries []model.Query
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("id ASC").
		Find(&queries).Error
	if err != nil {
		return nil, fmt.Errorf("查询问答记录失败: %w", err)
	}
	return queries, nil
}
