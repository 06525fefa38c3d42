package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// HandleFunc processes one message; an error leaves it unmarked.
type HandleFunc func(ctx context.Context, topic string, value []byte) error

type ConsumerGroupHandler struct {
	handle HandleFunc
	log    *slog.Logger
}

func (ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handle(session.Context(), msg.Topic, msg.Value); err != nil {
			h.log.Error("kafka_consume_failed", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// StartSaramaConsumer consumes topics with groupID until ctx is cancelled.
func StartSaramaConsumer(ctx context.Context, brokers []string, groupID string, topics []string, handle HandleFunc, log *slog.Logger) error {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() {
		if err := consumerGroup.Close(); err != nil {
			log.Error("kafka_consumer_close_failed", "error", err)
		}
	}()

	handler := ConsumerGroupHandler{handle: handle, log: log}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := consumerGroup.Consume(ctx, topics, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				log.Error("kafka_consume_error", "error", err)
			}
		}
	}
}
