package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docqa-go/internal/model"
	"docqa-go/internal/repository"
	"docqa-go/pkg/log"
	"docqa-go/pkg/vectorstore"
)

// ErrNoArchive 表示文档没有归档的原始文件。
var ErrNoArchive = errors.New("document has no archived source file")

// DocumentArchive 是原始文件归档存储的管理接口。
type DocumentArchive interface {
	DeleteNamespace(ctx context.Context, namespace string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// DownloadInfoDTO 封装了原始文件下载链接所需的信息。
type DownloadInfoDTO struct {
	FileName    string    `json:"fileName"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// DocumentPage 是分页的文档列表。
type DocumentPage struct {
	Items []model.Document
	Total int64
}

// DocumentService 接口定义了已入库文档的管理操作。
type DocumentService interface {
	List(ctx context.Context, limit, offset int) (*DocumentPage, error)
	Get(ctx context.Context, id uint) (*model.Document, error)
	ListQueries(ctx context.Context, id uint) ([]model.Query, error)
	Delete(ctx context.Context, id uint) error
	GenerateDownloadURL(ctx context.Context, id uint) (*DownloadInfoDTO, error)
}

type documentService struct {
	docs    repository.DocumentRepository
	queries repository.QueryRepository
	store   vectorstore.Store
	archive DocumentArchive
}

// NewDocumentService 创建一个新的 DocumentService 实例。archive 可以为 nil。
func NewDocumentService(docs repository.DocumentRepository, queries repository.QueryRepository, store vectorstore.Store, archive DocumentArchive) DocumentService {
	return &documentService{docs: docs, queries: queries, store: store, archive: archive}
}

func (s *documentService) List(ctx context.Context, limit, offset int) (*DocumentPage, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.docs.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &DocumentPage{Items: items, Total: total}, nil
}

func (s *documentService) Get(ctx context.Context, id uint) (*model.Document, error) {
	return s.docs.FindByID(ctx, id)
}

func (s *documentService) ListQueries(ctx context.Context, id uint) ([]model.Query, error) {
	if _, err := s.docs.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.queries.ListByDocument(ctx, id)
}

// Delete 删除文档的向量、归档文件和数据库记录。
// 向量删除失败时直接返回，保证数据库记录仍然指向残留的向量以便重试。
func (s *documentService) Delete(ctx context.Context, id uint) error {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteNamespace(ctx, doc.Namespace); err != nil {
		return fmt.Errorf("删除向量失败: %w", err)
	}
	log.Infof("[DocumentService] 已删除向量, namespace: %s", doc.Namespace)

	if s.archive != nil && doc.ArchiveKey != "" {
		if err := s.archive.DeleteNamespace(ctx, doc.Namespace); err != nil {
			log.Warnf("[DocumentService] 删除归档文件失败, namespace: %s, error: %v", doc.Namespace, err)
		}
	}

	return s.docs.Delete(ctx, id)
}

func (s *documentService) GenerateDownloadURL(ctx context.Context, id uint) (*DownloadInfoDTO, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.archive == nil || doc.ArchiveKey == "" {
		return nil, ErrNoArchive
	}

	expiry := time.Hour
	url, err := s.archive.PresignedURL(ctx, doc.ArchiveKey, expiry)
	if err != nil {
		return nil, fmt.Errorf("生成下载链接失败: %w", err)
	}

	fileName := doc.FileName
	if fileName == "" {
		fileName = doc.URL
	}
	return &DownloadInfoDTO{FileName: fileName, DownloadURL: url, ExpiresAt: time.Now().Add(expiry)}, nil
}
