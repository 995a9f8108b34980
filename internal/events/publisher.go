package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/payledger/internal/config"
	"github.com/payledger/internal/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher 领域事件投递
type Publisher interface {
	Publish(ctx context.Context, event Envelope) error
	Close() error
}

// NewPublisher 按配置创建投递器，未启用 Kafka 时返回空实现
func NewPublisher(cfg *config.KafkaConfig) Publisher {
	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// KafkaPublisher 基于 kafka-go 的投递器
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher 创建 Kafka 投递器
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	return &KafkaPublisher{writer: writer}
}

// Publish 写入一条事件，同一订单的事件落在同一分区
func (p *KafkaPublisher) Publish(ctx context.Context, event Envelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: body,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	logger.Debugw("event_published", "event_type", event.EventType, "event_id", event.EventID, "key", event.Key)
	return nil
}

// Close 关闭写入器
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 丢弃事件
type NopPublisher struct{}

// Publish 仅记录调试日志
func (NopPublisher) Publish(_ context.Context, event Envelope) error {
	logger.Debugw("event_dropped", "event_type", event.EventType, "event_id", event.EventID)
	return nil
}

// Close 无操作
func (NopPublisher) Close() error { return nil }

// MemoryPublisher 内存投递器，测试与本地调试使用
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Envelope
}

// Publish 追加到内存
func (p *MemoryPublisher) Publish(_ context.Context, event Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Close 无操作
func (p *MemoryPublisher) Close() error { return nil }

// Events 已投递事件快照
func (p *MemoryPublisher) Events() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Envelope, len(p.events))
	copy(out, p.events)
	return out
}

// CountByType 指定类型的事件数量
func (p *MemoryPublisher) CountByType(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, event := range p.events {
		if event.EventType == eventType {
			count++
		}
	}
	return count
}
