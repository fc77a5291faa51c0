// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// Producer 把消息写入配置的主题。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
// 写入为异步模式，Send 不等待 broker 确认，失败在 Completion 回调中记录。
func NewProducer(cfg config.KafkaConfig) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		Completion:             logCompletion,
		AllowAutoTopicCreation: true,
	}
	log.Infof("[Kafka] 生产者初始化成功, topic: %s", cfg.Topic)
	return &Producer{writer: writer}
}

// Send 发送一条消息，相同 key 的消息落在同一分区。
func (p *Producer) Send(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

func logCompletion(messages []kafka.Message, err error) {
	if err != nil {
		log.Errorf("[Kafka] 异步写入 %d 条消息失败: %v", len(messages), err)
	}
}

// Close 会先刷出缓冲中的消息。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Handler 处理一条消息；返回错误时该消息的 offset 不会提交。
type Handler func(ctx context.Context, msg kafka.Message) error

// Consume 启动一个消费者循环，直到 ctx 结束。
func Consume(ctx context.Context, cfg config.KafkaConfig, handle Handler) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("[Kafka] 关闭消费者失败: %v", err)
		}
	}()

	log.Infof("[Kafka] 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("从 Kafka 读取消息失败: %w", err)
		}

		if err := handle(ctx, m); err != nil {
			log.Errorf("[Kafka] 处理消息失败: offset %d, error: %v", m.Offset, err)
			continue
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("[Kafka] 提交 offset 失败: %v", err)
		}
	}
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
