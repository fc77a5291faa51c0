package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docqa-go/internal/model"
	"docqa-go/internal/pipeline"
	"docqa-go/internal/repository"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/events"
	"docqa-go/pkg/extract"
	"docqa-go/pkg/loader"
	"docqa-go/pkg/lock"
	"docqa-go/pkg/log"
	"docqa-go/pkg/vectorstore"
)

// RunInput 是一次问答请求：DocumentURL 与 (FileName, Content) 二选一。
type RunInput struct {
	DocumentURL string
	FileName    string
	Content     []byte
	Questions   []string
}

// AnswerSink 接收流式问答的输出。
type AnswerSink interface {
	Chunk(index int, chunk string) error
	Answer(index int, answer string) error
}

// Ingestor 对文档执行入库流程。
type Ingestor interface {
	Process(ctx context.Context, src pipeline.Source) (*pipeline.Result, error)
}

// QAService 定义了文档问答的接口。
type QAService interface {
	Run(ctx context.Context, in RunInput) ([]string, error)
	Stream(ctx context.Context, in RunInput, sink AnswerSink) error
	// Ingest 只执行入库（命中缓存时跳过），不回答问题。
	Ingest(ctx context.Context, in RunInput) (*model.Document, error)
}

const publishTimeout = 5 * time.Second

type qaService struct {
	docs      repository.DocumentRepository
	queries   repository.QueryRepository
	ingestor  Ingestor
	embedder  embedding.Client
	store     vectorstore.Store
	generator *Generator
	locker    lock.Locker
	publisher events.Publisher
	topK      int
}

// NewQAService 创建一个新的 QAService 实例。
func NewQAService(
	docs repository.DocumentRepository,
	queries repository.QueryRepository,
	ingestor Ingestor,
	embedder embedding.Client,
	store vectorstore.Store,
	generator *Generator,
	locker lock.Locker,
	publisher events.Publisher,
	topK int,
) QAService {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &qaService{
		docs:      docs,
		queries:   queries,
		ingestor:  ingestor,
		embedder:  embedder,
		store:     store,
		generator: generator,
		locker:    locker,
		publisher: publisher,
		topK:      topK,
	}
}

func (s *qaService) Run(ctx context.Context, in RunInput) ([]string, error) {
	doc, err := s.resolveDocument(ctx, in)
	if err != nil {
		return nil, err
	}

	answers := make([]string, 0, len(in.Questions))
	for _, question := range in.Questions {
		clauses, err := s.retrieve(ctx, doc.Namespace, question)
		if err != nil {
			return nil, err
		}
		answer := s.generator.Answer(ctx, question, clauses)
		s.record(ctx, doc, question, answer)
		answers = append(answers, answer)
	}
	return answers, nil
}

func (s *qaService) Stream(ctx context.Context, in RunInput, sink AnswerSink) error {
	doc, err := s.resolveDocument(ctx, in)
	if err != nil {
		return err
	}

	for i, question := range in.Questions {
		clauses, err := s.retrieve(ctx, doc.Namespace, question)
		if err != nil {
			return err
		}
		answer := s.generator.StreamAnswer(ctx, question, clauses, &sinkWriter{sink: sink, index: i})
		s.record(ctx, doc, question, answer)
		if err := sink.Answer(i, answer); err != nil {
			return fmt.Errorf("写入回答失败: %w", err)
		}
	}
	return nil
}

func (s *qaService) Ingest(ctx context.Context, in RunInput) (*model.Document, error) {
	return s.resolveDocument(ctx, in)
}

// resolveDocument 返回已入库的文档记录，未命中缓存时加锁执行入库。
func (s *qaService) resolveDocument(ctx context.Context, in RunInput) (*model.Document, error) {
	src, checksum, err := sourceFor(in)
	if err != nil {
		return nil, err
	}

	doc, err := s.docs.FindByNamespace(ctx, src.Namespace)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		log.Infof("[QAService] 命中文档缓存, namespace: %s, documentId: %d", doc.Namespace, doc.ID)
		return doc, nil
	}

	unlock, err := s.locker.Lock(ctx, src.Namespace)
	if err != nil {
		return nil, fmt.Errorf("获取入库锁失败: %w", err)
	}
	defer unlock()

	// 等待锁期间其他请求可能已完成入库
	doc, err = s.docs.FindByNamespace(ctx, src.Namespace)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		log.Infof("[QAService] 加锁后命中文档缓存, namespace: %s", doc.Namespace)
		return doc, nil
	}

	result, err := s.ingestor.Process(ctx, src)
	if err != nil {
		return nil, err
	}

	doc, err = s.docs.Create(ctx, &model.Document{
		URL:        in.DocumentURL,
		Checksum:   checksum,
		FileName:   in.FileName,
		Namespace:  src.Namespace,
		ChunkCount: result.ChunkCount,
		ArchiveKey: result.ArchiveKey,
	})
	if err != nil {
		return nil, err
	}

	source := in.DocumentURL
	if source == "" {
		source = in.FileName
	}
	s.publish(ctx, events.TypeDocumentIngested, doc.Namespace, events.DocumentIngested{
		DocumentID: doc.ID,
		Namespace:  doc.Namespace,
		Source:     source,
		ChunkCount: doc.ChunkCount,
	})
	return doc, nil
}

func sourceFor(in RunInput) (pipeline.Source, string, error) {
	hasURL := strings.TrimSpace(in.DocumentURL) != ""
	hasFile := len(in.Content) > 0
	var (
		src      pipeline.Source
		checksum string
	)
	switch {
	case hasURL && hasFile:
		return pipeline.Source{}, "", fmt.Errorf("%w: provide either a document URL or a file, not both", ErrInvalidInput)
	case hasURL:
		src = pipeline.Source{Namespace: loader.URLNamespace(in.DocumentURL), URL: in.DocumentURL}
	case hasFile:
		checksum = loader.Checksum(in.Content)
		src = pipeline.Source{Namespace: checksum, FileName: in.FileName, Content: in.Content}
	default:
		return pipeline.Source{}, "", fmt.Errorf("%w: a document URL or a file is required", ErrInvalidInput)
	}

	// 格式在查缓存和下载之前校验，命中缓存的内容换了扩展名也要拒绝
	if extract.DetectFormat(src.Name()) == extract.FormatUnknown {
		return pipeline.Source{}, "", fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, src.Name())
	}
	return src, checksum, nil
}

func (s *qaService) retrieve(ctx context.Context, namespace, question string) ([]string, error) {
	vector, err := s.embedder.CreateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("问题向量化失败: %w", err)
	}
	matches, err := s.store.Query(ctx, namespace, vector, s.topK)
	if err != nil {
		return nil, fmt.Errorf("检索相关条款失败: %w", err)
	}
	clauses := make([]string, 0, len(matches))
	for _, m := range matches {
		clauses = append(clauses, m.Text)
	}
	return clauses, nil
}

// record 写入问答日志并发布事件，失败只记录日志。
func (s *qaService) record(ctx context.Context, doc *model.Document, question, answer string) {
	if err := s.queries.Create(ctx, &model.Query{DocumentID: doc.ID, Question: question, Answer: answer}); err != nil {
		log.Errorf("[QAService] 写入问答记录失败, documentId: %d, error: %v", doc.ID, err)
	}
	s.publish(ctx, events.TypeQueryAnswered, doc.Namespace, events.QueryAnswered{
		DocumentID: doc.ID,
		Namespace:  doc.Namespace,
		Question:   question,
		Answer:     answer,
	})
}

// publish 使用与请求解绑的 context，客户端断开不会丢弃已产生的事件。
func (s *qaService) publish(ctx context.Context, eventType events.Type, key string, payload interface{}) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, eventType, key, payload); err != nil {
		log.Errorf("[QAService] 发布事件失败, type: %s, error: %v", eventType, err)
	}
}

// sinkWriter 把 LLM 的流式增量转发给 AnswerSink。
type sinkWriter struct {
	sink  AnswerSink
	index int
}

func (w *sinkWriter) WriteMessage(_ int, data []byte) error {
	return w.sink.Chunk(w.index, string(data))
}
