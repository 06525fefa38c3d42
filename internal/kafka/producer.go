package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type SaramaProducer struct {
	producer sarama.SyncProducer
	log      *slog.Logger
}

func NewSaramaProducer(brokers []string, log *slog.Logger) (*SaramaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Timeout = 5 * time.Second
	prod, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewWithProducer(prod, log), nil
}

// NewWithProducer wraps an existing producer, e.g. a sarama mock.
func NewWithProducer(prod sarama.SyncProducer, log *slog.Logger) *SaramaProducer {
	return &SaramaProducer{producer: prod, log: log}
}

// Publish sends message keyed by key so all events of one record land on
// one partition in order.
func (p *SaramaProducer) Publish(_ context.Context, topic, key string, message []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(message),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send to kafka topic %s: %w", topic, err)
	}
	p.log.Debug("kafka_published", "topic", topic, "partition", partition, "offset", offset)
	return nil
}

func (p *SaramaProducer) Close() error {
	return p.producer.Close()
}
