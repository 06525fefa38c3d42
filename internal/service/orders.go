package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
	"fieldops/internal/events"
	"fieldops/internal/models"
	"fieldops/internal/repository"
)

type CreateOrderInput struct {
	CustomerID    string          `json:"customer_id"`
	ProductID     string          `json:"product_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	PaymentMethod string          `json:"payment_method"`
	Remarks       string          `json:"remarks"`
}

type DeliverInput struct {
	Quantity      decimal.Decimal       `json:"quantity"`
	PaymentMethod string                `json:"payment_method"`
	Cheque        *models.ChequeDetails `json:"cheque,omitempty"`
	// Amount is what the customer paid; it defaults to quantity times unit price.
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	BillRef string           `json:"bill_ref,omitempty"`
}

type OrderService struct {
	core
}

func NewOrderService(d Deps) *OrderService {
	return &OrderService{core: newCore(d)}
}

func (s *OrderService) Create(ctx context.Context, actor models.Actor, in CreateOrderInput) (*models.Order, error) {
	if actor.Is(models.RoleCustomer) {
		if in.CustomerID == "" {
			in.CustomerID = actor.CustomerID
		}
		if in.CustomerID != actor.CustomerID {
			return nil, apperr.PermissionDenied("customers can only order for themselves")
		}
	}
	var order *models.Order
	err := s.store.InTx(ctx, func(r repository.Repository) error {
		var err error
		order, err = s.createOrder(ctx, r, actor, in, "")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.applied("order", order.ID, "create", "", string(order.AssignmentStatus), actor)
	return order, nil
}

// createOrder reserves stock and, for credit orders, credit, and stores the
// order. It runs inside the caller's transaction.
func (s *OrderService) createOrder(ctx context.Context, r repository.Repository, actor models.Actor, in CreateOrderInput, requestID string) (*models.Order, error) {
	payment, err := models.ParseOrderPayment(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if in.Quantity.LessThan(decimal.NewFromInt(1)) {
		return nil, apperr.Validation("order quantity must be at least 1, got %s", in.Quantity)
	}
	product, err := r.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if err := s.units.ValidateQuantity(product.Unit, in.Quantity); err != nil {
		return nil, err
	}
	if _, err := r.GetCustomer(ctx, in.CustomerID); err != nil {
		return nil, err
	}

	if err := r.AdjustStock(ctx, product.ID, in.Quantity.Neg()); err != nil {
		return nil, err
	}
	total := models.Money(in.Quantity.Mul(product.Price))
	if payment == models.PaymentCredit {
		if err := r.AdjustCredit(ctx, in.CustomerID, total.Neg()); err != nil {
			return nil, err
		}
	}

	now := s.now()
	o := &models.Order{
		ID:                s.newID(),
		CustomerID:        in.CustomerID,
		ProductID:         product.ID,
		Unit:              product.Unit,
		OrderedQuantity:   in.Quantity,
		DeliveredQuantity: decimal.Zero,
		UnitPrice:         product.Price,
		TotalAmount:       total,
		PaymentMethod:     payment,
		Remarks:           in.Remarks,
		Status:            models.OrderPending,
		AssignmentStatus:  models.AssignmentPending,
		CreatedBy:         actor.UserID,
		RequestID:         requestID,
		OrderDate:         now,
		UpdatedAt:         now,
	}
	if err := r.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, r, events.TopicOrders, "order.created", o.ID, actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

// mutate locks the order, applies fn and stores the result in one transaction.
func (s *OrderService) mutate(ctx context.Context, actor models.Actor, id, event string,
	fn func(r repository.Repository, o *models.Order) error) (*models.Order, error) {
	var (
		order *models.Order
		from  string
	)
	err := s.store.InTx(ctx, func(r repository.Repository) error {
		o, err := r.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		from = orderState(o)
		if err := fn(r, o); err != nil {
			return err
		}
		if err := r.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return s.emit(ctx, r, events.TopicOrders, "order."+event, o.ID, actor, o)
	})
	if err != nil {
		return nil, fmt.Errorf("%s order %s: %w", event, id, err)
	}
	s.applied("order", order.ID, event, from, orderState(order), actor)
	return order, nil
}

func orderState(o *models.Order) string {
	return string(o.Status) + "/" + string(o.AssignmentStatus)
}

// Assign hands a pending or rejected order to a delivery user.
func (s *OrderService) Assign(ctx context.Context, actor models.Actor, id, deliveryUserID string) (*models.Order, error) {
	if err := requireAdmin(actor, "assign"); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, id, "assign", func(r repository.Repository, o *models.Order) error {
		u, err := r.GetUser(ctx, deliveryUserID)
		if err != nil {
			return err
		}
		if !u.Actor().Is(models.RoleDelivery) {
			return apperr.Validation("user %s is %s, not a delivery user", u.ID, u.Role)
		}
		return o.Assign(u.ID, s.now())
	})
}

func (s *OrderService) Accept(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	return s.mutate(ctx, actor, id, "accept", func(_ repository.Repository, o *models.Order) error {
		return o.Accept(actor.UserID, s.now())
	})
}

func (s *OrderService) Reject(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	return s.mutate(ctx, actor, id, "reject", func(_ repository.Repository, o *models.Order) error {
		return o.Reject(actor.UserID, s.now())
	})
}

// Deliver records a partial or final hand-over. Money taken in cash or
// cheque lands in the deliverer's wallet as a received transaction.
func (s *OrderService) Deliver(ctx context.Context, actor models.Actor, id string, in DeliverInput) (*models.Order, *models.BillTransaction, error) {
	payment, err := models.ParseDeliveryPayment(in.PaymentMethod)
	if err != nil {
		return nil, nil, err
	}
	if !in.Quantity.IsPositive() {
		return nil, nil, apperr.Validation("delivery quantity must be positive, got %s", in.Quantity)
	}
	if payment == models.PaymentCheque {
		if err := in.Cheque.Validate(); err != nil {
			return nil, nil, err
		}
	}
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return nil, nil, apperr.Validation("paid amount must be positive, got %s", in.Amount)
		}
		if err := models.CheckMoney("paid amount", *in.Amount); err != nil {
			return nil, nil, err
		}
	}

	var bill *models.BillTransaction
	order, err := s.mutate(ctx, actor, id, "deliver", func(r repository.Repository, o *models.Order) error {
		if err := s.units.ValidateQuantity(o.Unit, in.Quantity); err != nil {
			return err
		}
		now := s.now()
		if err := o.Deliver(actor.UserID, in.Quantity, now); err != nil {
			return err
		}
		if payment == models.PaymentCredit {
			return nil
		}
		amount := models.Money(in.Quantity.Mul(o.UnitPrice))
		if in.Amount != nil {
			amount = *in.Amount
		}
		if !amount.IsPositive() {
			return apperr.Validation("%s %s at %s comes to less than a cent, pass the paid amount", in.Quantity, o.Unit, o.UnitPrice)
		}
		recipientType, ok := actor.RecipientType()
		if !ok {
			recipientType = models.RecipientDelivery
		}
		bill = &models.BillTransaction{
			ID:            s.newID(),
			CustomerID:    o.CustomerID,
			Amount:        amount,
			Method:        payment,
			RecipientID:   actor.UserID,
			RecipientType: recipientType,
			OrderID:       o.ID,
			BillRef:       in.BillRef,
			Status:        models.BillReceived,
			CollectedAt:   now,
		}
		if payment == models.PaymentCheque {
			cheque := *in.Cheque
			bill.Cheque = &cheque
		}
		if err := r.CreateBill(ctx, bill); err != nil {
			return err
		}
		return s.emit(ctx, r, events.TopicWallet, "wallet.received", bill.ID, actor, bill)
	})
	if err != nil {
		return nil, nil, err
	}
	if bill != nil {
		s.applied("bill", bill.ID, "collect", "", string(bill.Status), actor)
	}
	return order, bill, nil
}

// Cancel gives back the reserved stock and, for credit orders, the credit.
func (s *OrderService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	return s.mutate(ctx, actor, id, "cancel", func(r repository.Repository, o *models.Order) error {
		if !actor.IsAdmin() && o.AssignedTo != actor.UserID {
			return apperr.PermissionDenied("order %s is not assigned to %s", o.ID, actor.UserID)
		}
		if err := o.Cancel(s.now()); err != nil {
			return err
		}
		if err := r.AdjustStock(ctx, o.ProductID, o.OrderedQuantity); err != nil {
			return err
		}
		if o.PaymentMethod == models.PaymentCredit {
			return r.AdjustCredit(ctx, o.CustomerID, o.TotalAmount)
		}
		return nil
	})
}

func (s *OrderService) Get(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanSeeOrder(o) {
		return nil, apperr.PermissionDenied("order %s is not visible to %s", id, actor.UserID)
	}
	return o, nil
}

// List narrows f to what the caller may see.
func (s *OrderService) List(ctx context.Context, actor models.Actor, f repository.OrderFilter) ([]*models.Order, error) {
	switch {
	case actor.IsAdmin(), actor.Is(models.RoleSales):
	case actor.Is(models.RoleDelivery):
		f.AssignedTo = actor.UserID
	case actor.Is(models.RoleCustomer):
		f.CustomerID = actor.CustomerID
	default:
		return nil, apperr.PermissionDenied("role %q cannot list orders", actor.Role)
	}
	return s.store.ListOrders(ctx, f)
}
