package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/domain"
)

// EventHandler receives events mirrored by other service instances or
// sibling services and fans them into the local rooms.
type EventHandler interface {
	HandleMessageEvent(event domain.MessageEvent)
	HandleTypingEvent(event domain.TypingEvent)
	HandleConnectionStatusEvent(event domain.ConnectionStatusEvent)
}

type Consumer struct {
	readers []*kafka.Reader
	handler EventHandler
	logger  *zap.Logger
}

// NewConsumer builds one reader per topic. GroupID must be unique per
// instance: every instance needs its own copy of each event to serve its
// own connections.
func NewConsumer(brokers []string, groupID string, topics []string, handler EventHandler, logger *zap.Logger) *Consumer {
	var readers []*kafka.Reader

	for _, topic := range topics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 100 * time.Millisecond,
			StartOffset:    kafka.LastOffset,
			MaxWait:        100 * time.Millisecond,
		})
		readers = append(readers, reader)
	}

	return &Consumer{readers: readers, handler: handler, logger: logger}
}

func (c *Consumer) Start(ctx context.Context) error {
	for i := range c.readers {
		go func(reader *kafka.Reader) {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("recovered from panic in consumer goroutine", zap.Any("panic", r))
				}
			}()
			defer reader.Close()

			for {
				select {
				case <-ctx.Done():
					return
				default:
					m, err := reader.ReadMessage(ctx)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						c.logger.Warn("error reading from kafka", zap.Error(err))
						continue
					}
					c.handleMessage(m.Topic, m.Value)
				}
			}
		}(c.readers[i])
	}

	return nil
}

func (c *Consumer) handleMessage(topic string, value []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered from panic handling event",
				zap.String("topic", topic), zap.Any("panic", r))
		}
	}()

	switch topic {
	case TopicChatMessages:
		var event domain.MessageEvent
		if err := json.Unmarshal(value, &event); err != nil {
			c.logger.Warn("failed to unmarshal message event", zap.Error(err))
			return
		}
		c.handler.HandleMessageEvent(event)

	case TopicTypingIndicators:
		var event domain.TypingEvent
		if err := json.Unmarshal(value, &event); err != nil {
			c.logger.Warn("failed to unmarshal typing event", zap.Error(err))
			return
		}
		c.handler.HandleTypingEvent(event)

	case TopicConnectionStatus:
		var event domain.ConnectionStatusEvent
		if err := json.Unmarshal(value, &event); err != nil {
			c.logger.Warn("failed to unmarshal connection status event", zap.Error(err))
			return
		}
		c.handler.HandleConnectionStatusEvent(event)

	default:
		c.logger.Warn("event from unknown topic", zap.String("topic", topic))
	}
}

func (c *Consumer) Close() error {
	for i := range c.readers {
		if err := c.readers[i].Close(); err != nil {
			c.logger.Warn("error closing kafka reader", zap.Error(err))
		}
	}
	return nil
}
