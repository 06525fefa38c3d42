package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"fieldops/internal/models"
)

type OrderFilter struct {
	Status           models.OrderStatus
	AssignmentStatus models.AssignmentStatus
	AssignedTo       string
	CustomerID       string
	RequestID        string
	Cursor           string
	Limit            int64
}

type RequestFilter struct {
	Status     models.RequestStatus
	CustomerID string
}

type BillFilter struct {
	Status      models.BillStatus
	RecipientID string
	CustomerID  string
}

// Repository is the record store. Lookups of absent records fail with apperr.ErrNotFound.
type Repository interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
	// UpdateCustomer writes the profile and credit limit; available credit
	// only moves through AdjustCredit.
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id string) error
	// AdjustCredit adds delta to the available credit and fails with
	// apperr.ErrInsufficientCredit when the result would be negative.
	AdjustCredit(ctx context.Context, customerID string, delta decimal.Decimal) error

	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	// UpdateProduct leaves stock alone; see AdjustStock.
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// AdjustStock adds delta to the stock and fails with apperr.ErrValidation
	// when the result would be negative.
	AdjustStock(ctx context.Context, productID string, delta decimal.Decimal) error

	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// LockOrder reads the order and holds it until the surrounding transaction ends.
	LockOrder(ctx context.Context, id string) (*models.Order, error)
	// UpdateOrder writes o if nobody changed it since it was read and bumps its version.
	UpdateOrder(ctx context.Context, o *models.Order) error
	ListOrders(ctx context.Context, f OrderFilter) ([]*models.Order, error)

	CreateRequest(ctx context.Context, r *models.OrderRequest) error
	GetRequest(ctx context.Context, id string) (*models.OrderRequest, error)
	LockRequest(ctx context.Context, id string) (*models.OrderRequest, error)
	UpdateRequest(ctx context.Context, r *models.OrderRequest) error
	ListRequests(ctx context.Context, f RequestFilter) ([]*models.OrderRequest, error)

	CreateBill(ctx context.Context, b *models.BillTransaction) error
	GetBill(ctx context.Context, id string) (*models.BillTransaction, error)
	LockBill(ctx context.Context, id string) (*models.BillTransaction, error)
	UpdateBill(ctx context.Context, b *models.BillTransaction) error
	ListBills(ctx context.Context, f BillFilter) ([]*models.BillTransaction, error)

	ListRoles(ctx context.Context) ([]*models.Role, error)
	GetRole(ctx context.Context, name string) (*models.Role, error)
	PutRole(ctx context.Context, r *models.Role) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// CreateTask enqueues an outbox event in the current transaction.
	CreateTask(ctx context.Context, topic string, payload []byte) error
}

// Store runs fn inside one transaction: every write made through the
// Repository handed to fn commits together or not at all.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(r Repository) error) error
}
