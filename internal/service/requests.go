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

type RequestItemInput struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type SubmitRequestInput struct {
	CustomerID    string             `json:"customer_id"`
	Items         []RequestItemInput `json:"items"`
	PaymentMethod string             `json:"payment_method"`
	Remarks       string             `json:"remarks"`
}

// RequestService stages customer orders until an admin approves them.
type RequestService struct {
	core
	orders *OrderService
}

func NewRequestService(d Deps, orders *OrderService) *RequestService {
	return &RequestService{core: newCore(d), orders: orders}
}

func (s *RequestService) Submit(ctx context.Context, actor models.Actor, in SubmitRequestInput) (*models.OrderRequest, error) {
	if actor.Is(models.RoleCustomer) {
		if in.CustomerID == "" {
			in.CustomerID = actor.CustomerID
		}
		if in.CustomerID != actor.CustomerID {
			return nil, apperr.PermissionDenied("customers can only request for themselves")
		}
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation("order request needs at least one item")
	}
	payment, err := models.ParseOrderPayment(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetCustomer(ctx, in.CustomerID); err != nil {
		return nil, err
	}

	req := &models.OrderRequest{
		ID:            s.newID(),
		CustomerID:    in.CustomerID,
		RequestedBy:   actor.UserID,
		PaymentMethod: payment,
		Remarks:       in.Remarks,
		Status:        models.RequestPending,
		RequestedAt:   s.now(),
	}
	for i, it := range in.Items {
		product, err := s.store.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if err := s.units.ValidateQuantity(product.Unit, it.Quantity); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		req.Items = append(req.Items, models.RequestItem{
			ProductID: product.ID,
			Quantity:  it.Quantity,
			UnitPrice: product.Price,
		})
	}
	req.ComputeTotals()

	err = s.store.InTx(ctx, func(r repository.Repository) error {
		if err := r.CreateRequest(ctx, req); err != nil {
			return err
		}
		return s.emit(ctx, r, events.TopicRequests, "request.submitted", req.ID, actor, req)
	})
	if err != nil {
		return nil, fmt.Errorf("submit order request: %w", err)
	}
	s.applied("request", req.ID, "submit", "", string(req.Status), actor)
	return req, nil
}

// Approve turns every line into an order. Either all orders are created and
// the request is approved, or nothing changes.
func (s *RequestService) Approve(ctx context.Context, actor models.Actor, id string) (*models.OrderRequest, []*models.Order, error) {
	if err := requireAdmin(actor, "approve"); err != nil {
		return nil, nil, err
	}
	var (
		req    *models.OrderRequest
		orders []*models.Order
	)
	err := s.store.InTx(ctx, func(r repository.Repository) error {
		var err error
		req, err = r.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := req.Approve(actor.UserID, s.now()); err != nil {
			return err
		}
		owner := models.Actor{UserID: req.RequestedBy}
		for i, it := range req.Items {
			o, err := s.orders.createOrder(ctx, r, owner, CreateOrderInput{
				CustomerID:    req.CustomerID,
				ProductID:     it.ProductID,
				Quantity:      it.Quantity,
				PaymentMethod: string(req.PaymentMethod),
				Remarks:       req.Remarks,
			}, req.ID)
			if err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}
			orders = append(orders, o)
		}
		if err := r.UpdateRequest(ctx, req); err != nil {
			return err
		}
		return s.emit(ctx, r, events.TopicRequests, "request.approved", req.ID, actor, req)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("approve order request %s: %w", id, err)
	}
	s.applied("request", req.ID, "approve", string(models.RequestPending), string(req.Status), actor)
	for _, o := range orders {
		s.applied("order", o.ID, "create", "", string(o.AssignmentStatus), actor)
	}
	return req, orders, nil
}

func (s *RequestService) Reject(ctx context.Context, actor models.Actor, id, reason string) (*models.OrderRequest, error) {
	if err := requireAdmin(actor, "reject"); err != nil {
		return nil, err
	}
	var req *models.OrderRequest
	err := s.store.InTx(ctx, func(r repository.Repository) error {
		var err error
		req, err = r.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := req.Reject(actor.UserID, reason, s.now()); err != nil {
			return err
		}
		if err := r.UpdateRequest(ctx, req); err != nil {
			return err
		}
		return s.emit(ctx, r, events.TopicRequests, "request.rejected", req.ID, actor, req)
	})
	if err != nil {
		return nil, fmt.Errorf("reject order request %s: %w", id, err)
	}
	s.applied("request", req.ID, "reject", string(models.RequestPending), string(req.Status), actor)
	return req, nil
}

func (s *RequestService) Get(ctx context.Context, actor models.Actor, id string) (*models.OrderRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanSeeRequest(req) {
		return nil, apperr.PermissionDenied("order request %s is not visible to %s", id, actor.UserID)
	}
	return req, nil
}

func (s *RequestService) List(ctx context.Context, actor models.Actor, f repository.RequestFilter) ([]*models.OrderRequest, error) {
	if actor.Is(models.RoleCustomer) {
		f.CustomerID = actor.CustomerID
	}
	return s.store.ListRequests(ctx, f)
}
