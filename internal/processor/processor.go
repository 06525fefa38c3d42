// Package processor drains the outbox: pending tasks are published and
// deleted, failed ones are retried until attempts run out.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fieldops/internal/events"
	"fieldops/internal/repository"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, message []byte) error
}

// MultiPublisher delivers to each publisher in order and stops at the first
// failure, so a retried task is not sent again to publishers after it.
// Put the broker first and local fan-out last.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, topic, key string, message []byte) error {
	for i, p := range m {
		if err := p.Publish(ctx, topic, key, message); err != nil {
			return fmt.Errorf("publisher %d: %w", i, err)
		}
	}
	return nil
}

type PublishObserver interface {
	Published(topic string, ok bool)
}

type nopObserver struct{}

func (nopObserver) Published(string, bool) {}

type TaskProcessor struct {
	repo         repository.TaskRepository
	publisher    Publisher
	observer     PublishObserver
	log          *slog.Logger
	pollInterval time.Duration
	limit        int
	maxAttempts  int
	retryDelay   time.Duration
	now          func() time.Time
}

func NewTaskProcessor(repo repository.TaskRepository, publisher Publisher, log *slog.Logger, pollInterval time.Duration, limit int) *TaskProcessor {
	return &TaskProcessor{
		repo:         repo,
		publisher:    publisher,
		observer:     nopObserver{},
		log:          log,
		pollInterval: pollInterval,
		limit:        limit,
		maxAttempts:  3,
		retryDelay:   2 * time.Second,
		now:          time.Now,
	}
}

func (p *TaskProcessor) WithObserver(o PublishObserver) *TaskProcessor {
	if o != nil {
		p.observer = o
	}
	return p
}

func (p *TaskProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processPendingTasks(ctx)
			ticker.Reset(p.pollInterval)
		}
	}
}

func (p *TaskProcessor) processPendingTasks(ctx context.Context) {
	tasks, err := p.repo.GetPendingTasks(ctx, p.limit, p.maxAttempts)
	if err != nil {
		p.log.Error("outbox_fetch_failed", "error", err)
		return
	}
	for _, task := range tasks {
		if err := p.repo.MarkTaskProcessing(ctx, task.ID); err != nil {
			p.log.Error("outbox_mark_failed", "task", task.ID, "error", err)
			continue
		}

		key := ""
		if ev, err := events.Decode(task.Payload); err == nil {
			key = ev.EntityID
		} else {
			p.log.Warn("outbox_payload_undecodable", "task", task.ID, "error", err)
		}

		if err := p.publisher.Publish(ctx, task.Topic, key, task.Payload); err != nil {
			p.observer.Published(task.Topic, false)
			p.fail(ctx, task, err)
			continue
		}
		p.observer.Published(task.Topic, true)
		p.log.Debug("outbox_task_published", "task", task.ID, "topic", task.Topic)
		if err := p.repo.DeleteTask(ctx, task.ID); err != nil {
			p.log.Error("outbox_delete_failed", "task", task.ID, "error", err)
		}
	}
}

func (p *TaskProcessor) fail(ctx context.Context, task *repository.Task, cause error) {
	attempt := task.AttemptCount + 1
	status := repository.TaskStatusFailed
	if attempt >= p.maxAttempts {
		status = repository.TaskStatusNoAttemptsLeft
	}
	if err := p.repo.UpdateTaskFailure(ctx, task.ID, attempt, status, p.now().Add(p.retryDelay)); err != nil {
		p.log.Error("outbox_update_failed", "task", task.ID, "error", err)
	}
	p.log.Warn("outbox_publish_failed", "task", task.ID, "attempt", attempt, "status", status, "error", cause)
}
