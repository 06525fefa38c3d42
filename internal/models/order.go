package models

import (
	"time"

	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
)

func (o *Order) Remaining() decimal.Decimal {
	return o.OrderedQuantity.Sub(o.DeliveredQuantity)
}

func (o *Order) DeliveryState() DeliveryState {
	switch {
	case o.DeliveredQuantity.IsZero():
		return NotDelivered
	case o.DeliveredQuantity.LessThan(o.OrderedQuantity):
		return PartiallyDelivered
	default:
		return FullyDelivered
	}
}

func (o *Order) touch(now time.Time) {
	o.UpdatedAt = now
}

// Assign hands the order to a delivery actor.
func (o *Order) Assign(actorID string, now time.Time) error {
	if o.Status != OrderPending {
		return apperr.InvalidTransition("order %s is %s", o.ID, o.Status)
	}
	next, err := o.AssignmentStatus.Next(EventAssign)
	if err != nil {
		return err
	}
	o.AssignmentStatus = next
	o.AssignedTo = actorID
	o.touch(now)
	return nil
}

func (o *Order) respond(actorID string, ev Event, now time.Time) error {
	next, err := o.AssignmentStatus.Next(ev)
	if err != nil {
		return err
	}
	if o.AssignedTo != actorID {
		return apperr.PermissionDenied("order %s is not assigned to %s", o.ID, actorID)
	}
	o.AssignmentStatus = next
	o.touch(now)
	return nil
}

func (o *Order) Accept(actorID string, now time.Time) error {
	return o.respond(actorID, EventAccept, now)
}

func (o *Order) Reject(actorID string, now time.Time) error {
	return o.respond(actorID, EventReject, now)
}

// Deliver records qty more units handed over by actorID. The caller validates
// qty against the product unit beforehand.
func (o *Order) Deliver(actorID string, qty decimal.Decimal, now time.Time) error {
	if !qty.IsPositive() {
		return apperr.Validation("delivery quantity must be positive")
	}
	if o.Status == OrderCancelled {
		return apperr.InvalidTransition("order %s is cancelled", o.ID)
	}
	if o.AssignmentStatus != AssignmentAccepted {
		return apperr.InvalidTransition("order %s is %s, not accepted", o.ID, o.AssignmentStatus)
	}
	if o.AssignedTo != actorID {
		return apperr.PermissionDenied("order %s is not assigned to %s", o.ID, actorID)
	}
	if remaining := o.Remaining(); qty.GreaterThan(remaining) {
		return apperr.QuantityExceeded("order %s has %s left to deliver, got %s", o.ID, remaining, qty)
	}
	o.DeliveredQuantity = o.DeliveredQuantity.Add(qty)
	if o.DeliveredQuantity.Equal(o.OrderedQuantity) {
		next, err := o.Status.Next(EventComplete)
		if err != nil {
			return err
		}
		o.Status = next
	}
	o.touch(now)
	return nil
}

// Cancel is only allowed on accepted orders nothing was delivered for yet.
func (o *Order) Cancel(now time.Time) error {
	if o.AssignmentStatus != AssignmentAccepted {
		return apperr.InvalidTransition("order %s is %s, not accepted", o.ID, o.AssignmentStatus)
	}
	if !o.DeliveredQuantity.IsZero() {
		return apperr.InvalidTransition("order %s already has %s delivered", o.ID, o.DeliveredQuantity)
	}
	next, err := o.Status.Next(EventCancel)
	if err != nil {
		return err
	}
	o.Status = next
	o.touch(now)
	return nil
}
