package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
	"fieldops/internal/audit"
	"fieldops/internal/events"
	"fieldops/internal/models"
	"fieldops/internal/repository"
	"fieldops/internal/units"
)

// Recorder receives business counters.
type Recorder interface {
	Transition(entity, event string)
	Accepted(amount decimal.Decimal)
}

type nopRecorder struct{}

func (nopRecorder) Transition(string, string)  {}
func (nopRecorder) Accepted(decimal.Decimal) {}

type Deps struct {
	Store   repository.Store
	Units   units.Registry
	Auditor audit.Auditor
	Metrics Recorder
	Now     func() time.Time
	NewID   func() string
}

// core is what every service shares.
type core struct {
	store   repository.Store
	units   units.Registry
	auditor audit.Auditor
	metrics Recorder
	now     func() time.Time
	newID   func() string
}

func newCore(d Deps) core {
	c := core{
		store:   d.Store,
		units:   d.Units,
		auditor: d.Auditor,
		metrics: d.Metrics,
		now:     d.Now,
		newID:   d.NewID,
	}
	if c.units == nil {
		c.units = units.NewRegistry()
	}
	if c.auditor == nil {
		c.auditor = audit.Nop{}
	}
	if c.metrics == nil {
		c.metrics = nopRecorder{}
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// emit writes an event to the outbox of the transaction r belongs to.
func (c core) emit(ctx context.Context, r repository.Repository, topic, eventType, entityID string, actor models.Actor, data any) error {
	ev, err := events.New(eventType, entityID, actor.UserID, c.now(), data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.CreateTask(ctx, topic, payload)
}

// applied records a committed transition.
func (c core) applied(entity, entityID, event, from, to string, actor models.Actor) {
	c.metrics.Transition(entity, event)
	c.auditor.Log(audit.AuditLog{
		Timestamp:  c.now(),
		EntityType: entity,
		EntityID:   entityID,
		OldState:   from,
		NewState:   to,
		Actor:      actor.UserID,
		Message:    fmt.Sprintf("%s %s", entity, event),
	})
}

func requireAdmin(actor models.Actor, action string) error {
	if !actor.IsAdmin() {
		return apperr.PermissionDenied("%s requires an admin, caller is %q", action, actor.Role)
	}
	return nil
}
