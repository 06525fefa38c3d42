package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fieldops/internal/audit"
	"fieldops/internal/events"
	"fieldops/internal/models"
	"fieldops/internal/repository"
)

var (
	admin    = models.Actor{UserID: "admin", Role: models.RoleAdmin}
	driver   = models.Actor{UserID: "d1", Role: models.RoleDelivery}
	driver2  = models.Actor{UserID: "d2", Role: models.RoleDelivery}
	salesman = models.Actor{UserID: "s1", Role: models.RoleSales}
	buyer    = models.Actor{UserID: "cu1", Role: models.RoleCustomer, CustomerID: "c1"}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingAuditor struct {
	mu      sync.Mutex
	records []audit.AuditLog
}

func (a *recordingAuditor) Log(rec audit.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
}

type countingRecorder struct {
	mu          sync.Mutex
	transitions map[string]int
	accepted    decimal.Decimal
}

func (r *countingRecorder) Transition(entity, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[entity+"."+event]++
}

func (r *countingRecorder) Accepted(amount decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted = r.accepted.Add(amount)
}

type fixture struct {
	store    *repository.MemoryStore
	orders   *OrderService
	requests *RequestService
	wallet   *WalletService
	catalog  *CatalogService
	auditor  *recordingAuditor
	metrics  *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	var seq atomic.Int64
	d := Deps{
		Store:   store,
		Auditor: &recordingAuditor{},
		Metrics: &countingRecorder{transitions: map[string]int{}},
		Now:     func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) },
		NewID:   func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) },
	}
	orders := NewOrderService(d)
	f := &fixture{
		store:    store,
		orders:   orders,
		requests: NewRequestService(d, orders),
		wallet:   NewWalletService(d),
		catalog:  NewCatalogService(d),
		auditor:  d.Auditor.(*recordingAuditor),
		metrics:  d.Metrics.(*countingRecorder),
	}

	require.NoError(t, store.CreateCustomer(ctx, &models.Customer{
		ID: "c1", Name: "Corner Shop", CreditLimit: dec("1000"), AvailableCredit: dec("1000"),
	}))
	require.NoError(t, store.CreateCustomer(ctx, &models.Customer{
		ID: "c2", Name: "Kiosk", CreditLimit: dec("50"), AvailableCredit: dec("50"),
	}))
	require.NoError(t, store.CreateProduct(ctx, &models.Product{
		ID: "rice", Name: "Rice", Unit: "kg", Price: dec("2.50"), Stock: dec("100"),
	}))
	require.NoError(t, store.CreateProduct(ctx, &models.Product{
		ID: "soap", Name: "Soap", Unit: "box", Price: dec("10"), Stock: dec("5"),
	}))
	for _, u := range []models.User{
		{ID: "admin", Username: "admin", Role: models.RoleAdmin},
		{ID: "d1", Username: "d1", Role: models.RoleDelivery},
		{ID: "d2", Username: "d2", Role: models.RoleDelivery},
		{ID: "s1", Username: "s1", Role: models.RoleSales},
		{ID: "cu1", Username: "cu1", Role: models.RoleCustomer, CustomerID: "c1"},
	} {
		require.NoError(t, store.CreateUser(ctx, &u))
	}
	return f
}

// acceptedOrder creates an order and walks it to accepted by driver.
func (f *fixture) acceptedOrder(t *testing.T, product, qty, payment string) *models.Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.orders.Create(ctx, salesman, CreateOrderInput{
		CustomerID: "c1", ProductID: product, Quantity: dec(qty), PaymentMethod: payment,
	})
	require.NoError(t, err)
	_, err = f.orders.Assign(ctx, admin, o.ID, driver.UserID)
	require.NoError(t, err)
	o, err = f.orders.Accept(ctx, driver, o.ID)
	require.NoError(t, err)
	return o
}

func (f *fixture) customer(t *testing.T, id string) *models.Customer {
	t.Helper()
	c, err := f.store.GetCustomer(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) product(t *testing.T, id string) *models.Product {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) eventTypes(t *testing.T, topic string) []string {
	t.Helper()
	tasks, err := f.store.GetPendingTasks(context.Background(), 1000, 3)
	require.NoError(t, err)
	var types []string
	for _, task := range tasks {
		if task.Topic != topic {
			continue
		}
		var ev events.Event
		require.NoError(t, json.Unmarshal(task.Payload, &ev))
		types = append(types, ev.Type)
	}
	return types
}
