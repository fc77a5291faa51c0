// Package bootstrap 按配置组装服务依赖，供 HTTP 服务与运维命令共用。
package bootstrap

import (
	"context"
	"fmt"

	"docqa-go/internal/config"
	"docqa-go/internal/pipeline"
	"docqa-go/internal/repository"
	"docqa-go/internal/service"
	"docqa-go/pkg/database"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/events"
	"docqa-go/pkg/extract"
	"docqa-go/pkg/kafka"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/loader"
	"docqa-go/pkg/lock"
	"docqa-go/pkg/log"
	"docqa-go/pkg/storage"
	"docqa-go/pkg/tika"
	"docqa-go/pkg/token"
	"docqa-go/pkg/tokenizer"
	"docqa-go/pkg/vectorstore"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// App 持有进程级的依赖，Close 按创建的逆序释放。
type App struct {
	Config          *config.Config
	DB              *gorm.DB
	QAService       service.QAService
	DocumentService service.DocumentService
	Verifier        *token.Verifier

	closers []func()
}

// Build 依次初始化数据库、Redis、MinIO、Kafka、向量库与各业务服务。
// Redis、MinIO、Kafka 未配置时分别退化为进程内锁、不归档、不发布事件。
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	// 1. 数据库
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	app.DB = db
	app.onClose(func() { database.Close(db) })
	if err := repository.AutoMigrate(db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取 sql.DB 失败: %w", err)
	}

	// 2. 入库锁
	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.onClose(func() { closeRedis(rdb) })
		locker = lock.NewRedis(rdb, cfg.Redis.LockPrefix, cfg.Redis.LockTTL, cfg.Redis.LockWait)
		log.Info("[Bootstrap] 使用 Redis 分布式入库锁")
	}

	// 3. 原始文件归档
	var (
		archiver   pipeline.Archiver
		docArchive service.DocumentArchive
	)
	if cfg.MinIO.Endpoint != "" {
		archive, err := storage.NewArchive(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		archiver, docArchive = archive, archive
	}

	// 4. 事件发布
	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Brokers != "" {
		publisher = events.NewPublisher(kafka.NewProducer(cfg.Kafka))
		app.onClose(func() {
			if err := publisher.Close(); err != nil {
				log.Error("[Bootstrap] 关闭 Kafka 生产者失败", err)
			}
		})
	}

	// 5. 向量库
	store, err := vectorstore.New(cfg.VectorStore, cfg.Embedding.Dimensions, sqlDB)
	if err != nil {
		return nil, err
	}
	app.onClose(func() { _ = store.Close() })
	if err := store.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("初始化向量索引失败: %w", err)
	}

	// 6. 模型客户端与入库流程
	counter, err := tokenizer.Default()
	if err != nil {
		// 只影响上下文裁剪
		log.Warnf("[Bootstrap] 加载 tokenizer 失败, 不裁剪上下文: %v", err)
		counter = nil
	}
	embedder := embedding.NewClient(cfg.Embedding)
	generator := service.NewGenerator(llm.NewClient(cfg.LLM), cfg.LLM, counter)
	processor := pipeline.NewProcessor(
		loader.New(cfg.Loader),
		extract.New(tika.NewClient(cfg.Tika)),
		pipeline.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		embedder,
		store,
		archiver,
		cfg.Embedding.BatchSize,
	)

	docRepo := repository.NewDocumentRepository(db)
	queryRepo := repository.NewQueryRepository(db)
	app.QAService = service.NewQAService(docRepo, queryRepo, processor, embedder, store, generator, locker, publisher, cfg.LLM.TopK)
	app.DocumentService = service.NewDocumentService(docRepo, queryRepo, store, docArchive)
	app.Verifier = token.NewVerifier(cfg.Auth.BearerToken, cfg.Auth.BearerTokenBcrypt, cfg.Auth.JWTSecret)

	ok = true
	return app, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close 释放所有资源，可重复调用。
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeRedis(rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		log.Error("[Bootstrap] 关闭 Redis 连接失败", err)
	}
}
