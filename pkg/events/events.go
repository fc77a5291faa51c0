// Package events 定义了文档入库与问答完成事件，以及事件发布器。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type 是事件类型。
type Type string

const (
	TypeDocumentIngested Type = "document.ingested"
	TypeQueryAnswered    Type = "query.answered"
)

// Envelope 是写入消息队列的事件外层结构。
type Envelope struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// DocumentIngested 在文档完成向量化并写入缓存记录后发布。
type DocumentIngested struct {
	DocumentID uint   `json:"documentId"`
	Namespace  string `json:"namespace"`
	Source     string `json:"source"`
	ChunkCount int    `json:"chunkCount"`
}

// QueryAnswered 在每个问题得到回答后发布。
type QueryAnswered struct {
	DocumentID uint   `json:"documentId"`
	Namespace  string `json:"namespace"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// Publisher 发布领域事件。
type Publisher interface {
	Publish(ctx context.Context, eventType Type, key string, payload interface{}) error
	Close() error
}

// Sender 是底层消息通道，例如 Kafka 生产者。
type Sender interface {
	Send(ctx context.Context, key string, value []byte) error
	Close() error
}

// Nop 丢弃所有事件，用于未配置消息队列的部署。
type Nop struct{}

func (Nop) Publish(context.Context, Type, string, interface{}) error { return nil }
func (Nop) Close() error                                           { return nil }

type senderPublisher struct {
	sender Sender
	now    func() time.Time
}

// NewPublisher 返回把事件编码为 Envelope 后交给 sender 的发布器。
func NewPublisher(sender Sender) Publisher {
	return &senderPublisher{sender: sender, now: time.Now}
}

func (p *senderPublisher) Publish(ctx context.Context, eventType Type, key string, payload interface{}) error {
	value, err := Encode(eventType, payload, p.now())
	if err != nil {
		return err
	}
	if err := p.sender.Send(ctx, key, value); err != nil {
		return fmt.Errorf("发布事件 %s 失败: %w", eventType, err)
	}
	return nil
}

func (p *senderPublisher) Close() error {
	return p.sender.Close()
}

// Encode 将事件负载包装为 Envelope 并序列化。
func Encode(eventType Type, payload interface{}, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化事件负载失败: %w", err)
	}
	return json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC(),
		Payload:    raw,
	})
}

// Decode 解析一条事件消息。
func Decode(value []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, fmt.Errorf("无法解析事件消息: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("事件消息缺少 type 字段")
	}
	return &env, nil
}
