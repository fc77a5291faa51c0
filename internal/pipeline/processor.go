// Package pipeline 定义了文档入库的核心流程：加载、提取、切块、向量化与索引。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"docqa-go/pkg/embedding"
	"docqa-go/pkg/log"
	"docqa-go/pkg/vectorstore"
)

// ErrNoChunks 表示文本切分后没有任何分块。
var ErrNoChunks = errors.New("no chunks produced from document text")

// Fetcher 下载远程文档。
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TextExtractor 把文档字节转换为纯文本。
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, name string) (string, error)
}

// Archiver 归档原始文档，返回对象名。
type Archiver interface {
	Put(ctx context.Context, namespace, fileName string, content []byte) (string, error)
}

// Source 描述一次入库的文档来源：URL 与 Content 二选一。
type Source struct {
	Namespace string
	URL       string
	FileName  string
	Content   []byte
}

// Name 返回用于格式识别的名称。
func (s Source) Name() string {
	if s.FileName != "" {
		return s.FileName
	}
	return s.URL
}

// Result 是一次入库的结果。
type Result struct {
	ChunkCount int
	ArchiveKey string
}

// Processor 封装了文件处理的所有依赖和逻辑。
type Processor struct {
	fetcher   Fetcher
	extractor TextExtractor
	chunker   *Chunker
	embedder  embedding.Client
	store     vectorstore.Store
	archiver  Archiver
	batchSize int
}

// NewProcessor 创建一个新的 Processor 实例。archiver 可以为 nil。
func NewProcessor(
	fetcher Fetcher,
	extractor TextExtractor,
	chunker *Chunker,
	embedder embedding.Client,
	store vectorstore.Store,
	archiver Archiver,
	batchSize int,
) *Processor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Processor{
		fetcher:   fetcher,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		archiver:  archiver,
		batchSize: batchSize,
	}
}

// Process 是文件处理的主函数。
func (p *Processor) Process(ctx context.Context, src Source) (*Result, error) {
	log.Infof("[Processor] 开始处理文档, namespace: %s, name: %s", src.Namespace, src.Name())

	// 1. 获取文档内容
	content := src.Content
	if content == nil {
		log.Infof("[Processor] 步骤1: 下载远程文档, url: %s", src.URL)
		var err error
		content, err = p.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			log.Errorf("[Processor] 下载文档失败, url: %s, error: %v", src.URL, err)
			return nil, err
		}
	}

	// 2. 提取文本
	text, err := p.extractor.Extract(ctx, content, src.Name())
	if err != nil {
		log.Errorf("[Processor] 提取文本失败, name: %s, error: %v", src.Name(), err)
		return nil, err
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(text))

	// 3. 文本切块
	chunks := p.chunker.Split(text)
	log.Infof("[Processor] 步骤3: 文本分块完成, 共生成 %d 个分块", len(chunks))
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	// 4. 分批向量化并写入向量库
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := p.embedder.CreateEmbeddings(ctx, batch)
		if err != nil {
			log.Errorf("[Processor] 分块 [%d,%d) 向量化失败, error: %v", start, end, err)
			return nil, fmt.Errorf("向量化分块 [%d,%d) 失败: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("向量数量 %d 与分块数量 %d 不一致", len(vectors), len(batch))
		}

		records := make([]vectorstore.Record, len(batch))
		for i, chunk := range batch {
			idx := start + i
			records[i] = vectorstore.Record{
				ID:     vectorstore.VectorID(src.Namespace, idx),
				Index:  idx,
				Text:   chunk,
				Vector: vectors[i],
			}
		}
		if err := p.store.Upsert(ctx, src.Namespace, records); err != nil {
			log.Errorf("[Processor] 分块 [%d,%d) 写入向量库失败, error: %v", start, end, err)
			return nil, fmt.Errorf("写入向量库失败: %w", err)
		}
		log.Infof("[Processor] 步骤4: 分块 [%d,%d) 向量化并索引成功", start, end)
	}

	result := &Result{ChunkCount: len(chunks)}

	// 5. 归档原始文档，失败不影响问答
	if p.archiver != nil {
		key, err := p.archiver.Put(ctx, src.Namespace, src.Name(), content)
		if err != nil {
			log.Warnf("[Processor] 归档原始文档失败, namespace: %s, error: %v", src.Namespace, err)
		} else {
			result.ArchiveKey = key
		}
	}

	log.Infof("[Processor] 文档处理成功完成, namespace: %s, chunks: %d", src.Namespace, len(chunks))
	return result, nil
}
