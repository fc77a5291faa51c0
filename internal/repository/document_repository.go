// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"
	"fmt"

	"docqa-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("record not found")

// DocumentRepository 接口定义了文档缓存记录的持久化操作。
type DocumentRepository interface {
	// FindByNamespace 查找已入库的文档，未命中时返回 (nil, nil)。
	FindByNamespace(ctx context.Context, namespace string) (*model.Document, error)
	// Create 插入文档记录；若同一 namespace 已存在，则返回已存在的记录。
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)
	FindByID(ctx context.Context, id uint) (*model.Document, error)
	List(ctx context.Context, limit, offset int) ([]model.Document, int64, error)
	// Delete 删除文档及其全部问答记录。
	Delete(ctx context.Context, id uint) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) FindByNamespace(ctx context.Context, namespace string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("namespace = ?", namespace).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询文档记录失败: %w", err)
	}
	return &doc, nil
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "namespace"}}, DoNothing: true}).
		Create(doc).Error
	if err != nil {
		return nil, fmt.Errorf("插入文档记录失败: %w", err)
	}
	// 冲突时 DoNothing 不会回填主键，重新读取已存在的那一行
	existing, err := r.FindByNamespace(ctx, doc.Namespace)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("插入文档记录后未能读取: namespace=%s", doc.Namespace)
	}
	return existing, nil
}

func (r *documentRepository) FindByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询文档记录失败: %w", err)
	}
	return &doc, nil
}

func (r *documentRepository) List(ctx context.Context, limit, offset int) ([]model.Document, int64, error) {
	var (
		docs  []model.Document
		total int64
	)
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.Document{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计文档数量失败: %w", err)
	}
	if err := db.Order("id DESC").Limit(limit).Offset(offset).Find(&docs).Error; err != nil {
		return nil, 0, fmt.Errorf("查询文档列表失败: %w", err)
	}
	return docs, total, nil
}

func (r *documentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Query{}).Error; err != nil {
			return fmt.Errorf("删除问答记录失败: %w", err)
		}
		res := tx.Delete(&model.Document{}, id)
		if res.Error != nil {
			return fmt.Errorf("删除文档记录失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AutoMigrate 在表不存在时创建 documents 与 queries 表。
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Document{}, &model.Query{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}
