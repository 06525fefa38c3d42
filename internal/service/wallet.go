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

type RecordCollectionInput struct {
	CustomerID string                `json:"customer_id"`
	Amount     decimal.Decimal       `json:"amount"`
	Method     string                `json:"method"`
	Cheque     *models.ChequeDetails `json:"cheque,omitempty"`
	OrderID    string                `json:"order_id,omitempty"`
	BillRef    string                `json:"bill_ref,omitempty"`
}

// WalletService tracks money from the field actor who collected it to the admin.
type WalletService struct {
	core
}

func NewWalletService(d Deps) *WalletService {
	return &WalletService{core: newCore(d)}
}

func (s *WalletService) Record(ctx context.Context, actor models.Actor, in RecordCollectionInput) (*models.BillTransaction, error) {
	recipientType, ok := actor.RecipientType()
	if !ok {
		return nil, apperr.PermissionDenied("only delivery and sales users collect payments")
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive, got %s", in.Amount)
	}
	if err := models.CheckMoney("amount", in.Amount); err != nil {
		return nil, err
	}
	method, err := models.ParseCollectionMethod(in.Method)
	if err != nil {
		return nil, err
	}
	b := &models.BillTransaction{
		ID:            s.newID(),
		CustomerID:    in.CustomerID,
		Amount:        in.Amount,
		Method:        method,
		RecipientID:   actor.UserID,
		RecipientType: recipientType,
		OrderID:       in.OrderID,
		BillRef:       in.BillRef,
		Status:        models.BillReceived,
		CollectedAt:   s.now(),
	}
	if method == models.PaymentCheque {
		if err := in.Cheque.Validate(); err != nil {
			return nil, err
		}
		cheque := *in.Cheque
		b.Cheque = &cheque
	}

	err = s.store.InTx(ctx, func(r repository.Repository) error {
		if _, err := r.GetCustomer(ctx, in.CustomerID); err != nil {
			return err
		}
		if in.OrderID != "" {
			o, err := r.GetOrder(ctx, in.OrderID)
			if err != nil {
				return err
			}
			if o.CustomerID != in.CustomerID {
				return apperr.Validation("order %s belongs to another customer", o.ID)
			}
		}
		if err := r.CreateBill(ctx, b); err != nil {
			return err
		}
		return s.emit(ctx, r, events.TopicWallet, "wallet.received", b.ID, actor, b)
	})
	if err != nil {
		return nil, fmt.Errorf("record collection: %w", err)
	}
	s.applied("bill", b.ID, "collect", "", string(b.Status), actor)
	return b, nil
}

func (s *WalletService) mutate(ctx context.Context, actor models.Actor, id, event string,
	fn func(b *models.BillTransaction) error) (*models.BillTransaction, error) {
	var (
		bill *models.BillTransaction
		from models.BillStatus
	)
	err := s.store.InTx(ctx, func(r repository.Repository) error {
		b, err := r.LockBill(ctx, id)
		if err != nil {
			return err
		}
		from = b.Status
		if err := fn(b); err != nil {
			return err
		}
		if err := r.UpdateBill(ctx, b); err != nil {
			return err
		}
		bill = b
		return s.emit(ctx, r, events.TopicWallet, "wallet."+event, b.ID, actor, b)
	})
	if err != nil {
		return nil, fmt.Errorf("%s bill transaction %s: %w", event, id, err)
	}
	s.applied("bill", bill.ID, event, string(from), string(bill.Status), actor)
	return bill, nil
}

// Forward asks the admin to take over money the caller holds.
func (s *WalletService) Forward(ctx context.Context, actor models.Actor, id string) (*models.BillTransaction, error) {
	return s.mutate(ctx, actor, id, "forward", func(b *models.BillTransaction) error {
		return b.Forward(actor.UserID, s.now())
	})
}

func (s *WalletService) Accept(ctx context.Context, actor models.Actor, id string) (*models.BillTransaction, error) {
	if err := requireAdmin(actor, "accept payment"); err != nil {
		return nil, err
	}
	b, err := s.mutate(ctx, actor, id, "accept", func(b *models.BillTransaction) error {
		return b.Accept(actor.UserID, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Accepted(b.Amount)
	return b, nil
}

func (s *WalletService) Reject(ctx context.Context, actor models.Actor, id string) (*models.BillTransaction, error) {
	if err := requireAdmin(actor, "reject payment"); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, id, "reject", func(b *models.BillTransaction) error {
		return b.Reject(actor.UserID, s.now())
	})
}

func (s *WalletService) Totals(ctx context.Context, actor models.Actor) (models.WalletTotals, error) {
	if err := requireAdmin(actor, "wallet totals"); err != nil {
		return models.WalletTotals{}, err
	}
	txs, err := s.store.ListBills(ctx, repository.BillFilter{})
	if err != nil {
		return models.WalletTotals{}, err
	}
	return models.SumWallet(txs), nil
}

// MyTotals sums the caller's own wallet.
func (s *WalletService) MyTotals(ctx context.Context, actor models.Actor) (models.RecipientTotals, error) {
	txs, err := s.store.ListBills(ctx, repository.BillFilter{RecipientID: actor.UserID})
	if err != nil {
		return models.RecipientTotals{}, err
	}
	return models.SumRecipient(actor.UserID, txs), nil
}

func (s *WalletService) List(ctx context.Context, actor models.Actor, f repository.BillFilter) ([]*models.BillTransaction, error) {
	switch {
	case actor.IsAdmin():
	case actor.Is(models.RoleCustomer):
		f.CustomerID = actor.CustomerID
	default:
		f.RecipientID = actor.UserID
	}
	return s.store.ListBills(ctx, f)
}

// Statement is everything billed to and collected from one customer.
type Statement struct {
	Customer     *models.Customer
	Orders       []*models.Order
	Transactions []*models.BillTransaction
}

func (s *WalletService) Statement(ctx context.Context, actor models.Actor, customerID string) (*Statement, error) {
	if actor.Is(models.RoleCustomer) && actor.CustomerID != customerID {
		return nil, apperr.PermissionDenied("statement of %s is not visible to %s", customerID, actor.UserID)
	}
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	st := &Statement{Customer: c}
	cursor := ""
	for {
		page, err := s.store.ListOrders(ctx, repository.OrderFilter{CustomerID: customerID, Cursor: cursor, Limit: 500})
		if err != nil {
			return nil, err
		}
		st.Orders = append(st.Orders, page...)
		if len(page) < 500 {
			break
		}
		cursor = page[len(page)-1].ID
	}
	if st.Transactions, err = s.store.ListBills(ctx, repository.BillFilter{CustomerID: customerID}); err != nil {
		return nil, err
	}
	return st, nil
}
