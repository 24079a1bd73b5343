// Package kafka 提供了与 Kafka 消息队列交互的功能。
// 工单生命周期事件（创建/更新/解决）通过这里发布，由通知消费者处理。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"shop-assist-go/internal/config"
	"shop-assist-go/pkg/log"
)

// 工单事件类型。
const (
	EventCaseCreated  = "case.created"
	EventCaseUpdated  = "case.updated"
	EventCaseResolved = "case.resolved"
)

// CaseEvent 是发布到 Kafka 的工单生命周期事件。
type CaseEvent struct {
	Type         string    `json:"type"`
	CaseID       string    `json:"caseId"`
	UserID       uint      `json:"userId"`
	OrderID      string    `json:"orderId"`
	ProductIndex int       `json:"productIndex"`
	Priority     string    `json:"priority"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// EventHandler 定义了消费侧处理一条工单事件的接口。
// 它把消费循环与具体的通知实现解耦。
type EventHandler interface {
	Handle(ctx context.Context, event CaseEvent) error
}

// Producer 负责把工单事件写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建一个新的 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// PublishCaseEvent 发布一条工单事件，以工单 ID 作为分区键，
// 保证同一工单的事件有序。
func (p *Producer) PublishCaseEvent(ctx context.Context, event CaseEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CaseID),
		Value: data,
		Time:  time.Now(),
	})
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者处理工单事件，直到 ctx 被取消。
// 事件是通知性质的，处理失败只记录日志并提交 offset，不做重试。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, handler EventHandler) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "shop-assist-notifier",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		var event CaseEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		if err := handler.Handle(ctx, event); err != nil {
			log.Errorf("处理工单事件失败: caseId=%s, error: %v", event.CaseID, err)
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}
