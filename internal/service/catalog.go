package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
	"fieldops/internal/repository"
)

type CustomerInput struct {
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

func (in CustomerInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("customer name is required")
	}
	if in.CreditLimit.IsNegative() {
		return apperr.Validation("credit limit cannot be negative")
	}
	return models.CheckMoney("credit limit", in.CreditLimit)
}

type ProductInput struct {
	Name  string          `json:"name"`
	Unit  string          `json:"unit"`
	Price decimal.Decimal `json:"price"`
	// Stock is the opening stock on create and a delta on restock.
	Stock decimal.Decimal `json:"stock"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Unit) == "" {
		return apperr.Validation("product name and unit are required")
	}
	if in.Price.IsNegative() {
		return apperr.Validation("price cannot be negative")
	}
	if err := models.CheckMoney("price", in.Price); err != nil {
		return err
	}
	return models.CheckQuantity("stock", in.Stock)
}

// CatalogService manages customers and products.
type CatalogService struct {
	core
}

func NewCatalogService(d Deps) *CatalogService {
	return &CatalogService{core: newCore(d)}
}

func (s *CatalogService) CreateCustomer(ctx context.Context, actor models.Actor, in CustomerInput) (*models.Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &models.Customer{
		ID:              s.newID(),
		Name:            in.Name,
		Phone:           in.Phone,
		Address:         in.Address,
		CreditLimit:     in.CreditLimit,
		AvailableCredit: in.CreditLimit,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	s.applied("customer", c.ID, "create", "", "", actor)
	return c, nil
}

// UpdateCustomer moves available credit by the change in the limit, so credit
// already consumed by open orders stays consumed.
func (s *CatalogService) UpdateCustomer(ctx context.Context, actor models.Actor, id string, in CustomerInput) (*models.Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var c *models.Customer
	err := s.store.InTx(ctx, func(r repository.Repository) error {
		old, err := r.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		delta := in.CreditLimit.Sub(old.CreditLimit)
		next := *old
		next.Name, next.Phone, next.Address, next.CreditLimit = in.Name, in.Phone, in.Address, in.CreditLimit
		if err := r.UpdateCustomer(ctx, &next); err != nil {
			return err
		}
		if !delta.IsZero() {
			if err := r.AdjustCredit(ctx, id, delta); err != nil {
				return err
			}
		}
		c, err = r.GetCustomer(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update customer %s: %w", id, err)
	}
	s.applied("customer", id, "update", "", "", actor)
	return c, nil
}

func (s *CatalogService) DeleteCustomer(ctx context.Context, actor models.Actor, id string) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.applied("customer", id, "delete", "", "", actor)
	return nil
}

func (s *CatalogService) GetCustomer(ctx context.Context, actor models.Actor, id string) (*models.Customer, error) {
	if actor.Is(models.RoleCustomer) && actor.CustomerID != id {
		return nil, apperr.PermissionDenied("customer %s is not visible to %s", id, actor.UserID)
	}
	return s.store.GetCustomer(ctx, id)
}

func (s *CatalogService) ListCustomers(ctx context.Context, actor models.Actor) ([]*models.Customer, error) {
	if actor.Is(models.RoleCustomer) {
		c, err := s.store.GetCustomer(ctx, actor.CustomerID)
		if err != nil {
			return nil, err
		}
		return []*models.Customer{c}, nil
	}
	return s.store.ListCustomers(ctx)
}

func (s *CatalogService) CreateProduct(ctx context.Context, actor models.Actor, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Stock.IsNegative() {
		return nil, apperr.Validation("stock cannot be negative")
	}
	p := &models.Product{
		ID:        s.newID(),
		Name:      in.Name,
		Unit:      strings.ToLower(strings.TrimSpace(in.Unit)),
		Price:     in.Price,
		Stock:     in.Stock,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.applied("product", p.ID, "create", "", "", actor)
	return p, nil
}

// UpdateProduct rewrites name, unit and price and adds in.Stock to the stock.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor models.Actor, id string, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var p *models.Product
	err := s.store.InTx(ctx, func(r repository.Repository) error {
		old, err := r.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		next := *old
		next.Name, next.Unit, next.Price = in.Name, strings.ToLower(strings.TrimSpace(in.Unit)), in.Price
		if err := r.UpdateProduct(ctx, &next); err != nil {
			return err
		}
		if !in.Stock.IsZero() {
			if err := r.AdjustStock(ctx, id, in.Stock); err != nil {
				return err
			}
		}
		p, err = r.GetProduct(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	s.applied("product", id, "update", "", "", actor)
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, actor models.Actor, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.applied("product", id, "delete", "", "", actor)
	return nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.store.ListProducts(ctx)
}
