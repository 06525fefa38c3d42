package models

import "fieldops/internal/apperr"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending_assignment"
	AssignmentAssigned AssignmentStatus = "assigned"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentRejected AssignmentStatus = "rejected"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type BillStatus string

const (
	BillReceived    BillStatus = "received"
	BillPending     BillStatus = "pending"
	BillPaidToAdmin BillStatus = "paid_to_admin"
)

// DeliveryState is derived from delivered vs ordered quantity and never stored.
type DeliveryState string

const (
	NotDelivered       DeliveryState = "not_delivered"
	PartiallyDelivered DeliveryState = "partially_delivered"
	FullyDelivered     DeliveryState = "fully_delivered"
)

type Event string

const (
	EventAssign   Event = "assign"
	EventAccept   Event = "accept"
	EventReject   Event = "reject"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
	EventApprove  Event = "approve"
	EventForward  Event = "forward"
)

var orderTransitions = map[OrderStatus]map[Event]OrderStatus{
	OrderPending: {EventComplete: OrderDelivered, EventCancel: OrderCancelled},
}

// Rejected orders go back to the admin, who may assign them again.
var assignmentTransitions = map[AssignmentStatus]map[Event]AssignmentStatus{
	AssignmentPending:  {EventAssign: AssignmentAssigned},
	AssignmentRejected: {EventAssign: AssignmentAssigned},
	AssignmentAssigned: {EventAccept: AssignmentAccepted, EventReject: AssignmentRejected},
}

var requestTransitions = map[RequestStatus]map[Event]RequestStatus{
	RequestPending: {EventApprove: RequestApproved, EventReject: RequestRejected},
}

var billTransitions = map[BillStatus]map[Event]BillStatus{
	BillReceived: {EventForward: BillPending},
	BillPending:  {EventAccept: BillPaidToAdmin, EventReject: BillReceived},
}

func transition[S ~string](table map[S]map[Event]S, from S, ev Event) (S, error) {
	if next, ok := table[from][ev]; ok {
		return next, nil
	}
	return from, apperr.InvalidTransition("cannot %s from %q", ev, string(from))
}

func (s OrderStatus) Next(ev Event) (OrderStatus, error) {
	return transition(orderTransitions, s, ev)
}

func (s AssignmentStatus) Next(ev Event) (AssignmentStatus, error) {
	return transition(assignmentTransitions, s, ev)
}

func (s RequestStatus) Next(ev Event) (RequestStatus, error) {
	return transition(requestTransitions, s, ev)
}

func (s BillStatus) Next(ev Event) (BillStatus, error) {
	return transition(billTransitions, s, ev)
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentAssigned, AssignmentAccepted, AssignmentRejected:
		return true
	}
	return false
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

func (s BillStatus) Valid() bool {
	switch s {
	case BillReceived, BillPending, BillPaidToAdmin:
		return true
	}
	return false
}

// ParseOrderPayment accepts the methods an order can be placed with.
func ParseOrderPayment(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCredit, PaymentCash:
		return PaymentMethod(s), nil
	}
	return "", apperr.Validation("payment method must be credit or cash, got %q", s)
}

// ParseCollectionMethod accepts the methods money can be physically collected with.
func ParseCollectionMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCash, PaymentCheque:
		return PaymentMethod(s), nil
	}
	return "", apperr.Validation("collection method must be cash or cheque, got %q", s)
}

// ParseDeliveryPayment accepts how the customer settled a delivery.
func ParseDeliveryPayment(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCredit, PaymentCash, PaymentCheque:
		return PaymentMethod(s), nil
	}
	return "", apperr.Validation("delivery payment must be credit, cash or cheque, got %q", s)
}

func (c *ChequeDetails) Validate() error {
	if c == nil {
		return apperr.Validation("cheque details are required")
	}
	var missing []string
	if c.Number == "" {
		missing = append(missing, "number")
	}
	if c.Bank == "" {
		missing = append(missing, "bank")
	}
	if c.Date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return apperr.Validation("cheque details missing %v", missing)
	}
	return nil
}
