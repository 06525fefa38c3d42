// Command eventlog consumes the event topics from Kafka and writes every
// event to the structured log.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fieldops/internal/config"
	"fieldops/internal/events"
	"fieldops/internal/kafka"
	"fieldops/internal/logger"
)

func main() {
	log := logger.New("eventlog")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle := func(_ context.Context, topic string, value []byte) error {
		ev, err := events.Decode(value)
		if err != nil {
			return err
		}
		log.Info("event",
			"topic", topic,
			"type", ev.Type,
			"entity_id", ev.EntityID,
			"actor", ev.Actor,
			"at", ev.At,
			"data", string(ev.Data),
		)
		return nil
	}

	log.Info("eventlog_started", "brokers", cfg.KafkaBrokers, "topics", cfg.KafkaTopics, "group", cfg.KafkaGroupID)
	if err := kafka.StartSaramaConsumer(ctx, cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopics, handle, log); err != nil {
		log.Error("consumer_stopped", "error", err)
		os.Exit(1)
	}
}
