// Package kafka mirrors chat events between service instances and
// sibling services over three topics: chat-messages, typing-indicators
// and connection-status.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/domain"
)

const (
	TopicChatMessages     = "chat-messages"
	TopicTypingIndicators = "typing-indicators"
	TopicConnectionStatus = "connection-status"
)

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
		// Low latency over throughput: chat events are small and rare.
		BatchSize:    1,
		BatchTimeout: 0,
		RequiredAcks: 1,
		Async:        false,
	}
	return &Producer{writer: writer, logger: logger}
}

// Publish routes the event to its topic by payload type and keys it by
// conversation id so per-conversation ordering survives partitioning.
func (p *Producer) Publish(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	topic, key := routeEvent(event)
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}

	// Bound the write so a stalled broker fails the mirror instead of
	// hanging the caller's event loop.
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("topic", topic), zap.Error(err))
		return err
	}
	return nil
}

func routeEvent(event interface{}) (topic, key string) {
	switch e := event.(type) {
	case domain.MessageEvent:
		return TopicChatMessages, e.Message.ConversationID
	case domain.TypingEvent:
		return TopicTypingIndicators, e.ConversationID
	case domain.ConnectionStatusEvent:
		return TopicConnectionStatus, e.ConversationID
	default:
		return TopicChatMessages, ""
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
