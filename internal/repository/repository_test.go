package repository

import (
	"context"
	"path/filepath"
	"testing"

	"docqa-go/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "docqa.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestDocumentRepository_FindByNamespaceMiss(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))

	doc, err := repo.FindByNamespace(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestDocumentRepository_CreateAndFind(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Document{
		URL:        "https://example.com/policy.pdf",
		Namespace:  "ns-1",
		ChunkCount: 3,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	found, err := repo.FindByNamespace(ctx, "ns-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, 3, found.ChunkCount)
}

func TestDocumentRepository_CreateConflictReturnsExisting(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))
	ctx := context.Background()

	first, err := repo.Create(ctx, &model.Document{Checksum: "abc", FileName: "a.txt", Namespace: "abc", ChunkCount: 1})
	require.NoError(t, err)

	second, err := repo.Create(ctx, &model.Document{Checksum: "abc", FileName: "b.txt", Namespace: "abc", ChunkCount: 9})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "a.txt", second.FileName)

	_, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestDocumentRepository_ListPaged(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))
	ctx := context.Background()

	for _, ns := range []string{"a", "b", "c"} {
		_, err := repo.Create(ctx, &model.Document{Namespace: ns})
		require.NoError(t, err)
	}

	docs, total, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0].Namespace)

	docs, _, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].Namespace)
}

func TestDocumentRepository_DeleteRemovesQueries(t *testing.T) {
	db := newTestDB(t)
	docs := NewDocumentRepository(db)
	queries := NewQueryRepository(db)
	ctx := context.Background()

	doc, err := docs.Create(ctx, &model.Document{Namespace: "ns"})
	require.NoError(t, err)
	require.NoError(t, queries.Create(ctx, &model.Query{DocumentID: doc.ID, Question: "q", Answer: "a"}))

	require.NoError(t, docs.Delete(ctx, doc.ID))

	_, err = docs.FindByID(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	left, err := queries.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.ErrorIs(t, docs.Delete(ctx, doc.ID), ErrNotFound)
}

func TestQueryRepository_ListByDocumentInOrder(t *testing.T) {
	db := newTestDB(t)
	docs := NewDocumentRepository(db)
	queries := NewQueryRepository(db)
	ctx := context.Background()

	doc, err := docs.Create(ctx, &model.Document{Namespace: "ns"})
	require.NoError(t, err)
	for _, q := range []string{"first", "second"} {
		require.NoError(t, queries.Create(ctx, &model.Query{DocumentID: doc.ID, Question: q, Answer: "ans " + q}))
	}

	got, err := queries.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Question)
	assert.Equal(t, "ans second", got[1].Answer)
}
