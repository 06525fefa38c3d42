package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fieldops/internal/app"
	"fieldops/internal/audit"
	"fieldops/internal/config"
	"fieldops/internal/kafka"
	"fieldops/internal/logger"
	"fieldops/internal/metrics"
	"fieldops/internal/processor"
	"fieldops/internal/rabbitmq"
	"fieldops/internal/server"
	"fieldops/internal/ws"
)

func main() {
	log := logger.New("fieldops")
	if err := run(log); err != nil {
		log.Error("server_stopped", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error("store_close_failed", "error", err)
		}
	}()

	processors := []audit.AuditLogProcessor{&audit.LogProcessor{Log: log, Filter: cfg.AuditFilter}}
	if backend.DB != nil {
		processors = append(processors, audit.NewDBProcessor(backend.DB))
	}
	auditCtx, auditCancel := context.WithCancel(context.Background())
	auditPool := audit.NewAuditWorkerPool(audit.AuditPoolConfig{
		BatchSize:   cfg.AuditBatchSize,
		Timeout:     cfg.AuditTimeout,
		ChannelSize: cfg.AuditChannelSize,
	}, log, processors...)
	auditPool.Start(auditCtx, cfg.AuditWorkers)
	defer auditPool.Shutdown(auditCancel)

	m := metrics.New()
	svc := app.NewServices(cfg, backend.Store, auditPool, m, log)
	if err := svc.Bootstrap(ctx, cfg); err != nil {
		return err
	}
	go svc.Authz.StartAutoRefresh(ctx, cfg.PermissionRefresh)

	hub := ws.NewHub(svc.Authz, log)
	var publishers processor.MultiPublisher
	switch cfg.EventBroker {
	case "kafka":
		producer, err := kafka.NewSaramaProducer(cfg.KafkaBrokers, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		publishers = append(publishers, producer)
	case "rabbitmq":
		publisher, err := rabbitmq.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		publishers = append(publishers, publisher)
	}
	publishers = append(publishers, hub)
	outbox := processor.NewTaskProcessor(backend.Tasks, publishers, log, cfg.OutboxInterval, cfg.OutboxBatch).WithObserver(m)
	go outbox.Start(ctx)

	srv := server.NewServer(server.Deps{
		Orders:   svc.Orders,
		Requests: svc.Requests,
		Wallet:   svc.Wallet,
		Catalog:  svc.Catalog,
		Access:   svc.Access,
		Tokens:   svc.Tokens,
		Authz:    svc.Authz,
		Auditor:  auditPool,
		Metrics:  m,
		Events:   hub,
		Log:      log,
	}, cfg.Addr())
	return srv.Run(ctx)
}
