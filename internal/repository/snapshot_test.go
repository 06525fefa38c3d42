package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/models"
)

func TestSnapshot_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fieldops.json")

	s := NewMemoryStore()
	seedCustomer(t, s, "c1", "100")
	require.NoError(t, s.CreateProduct(ctx, &models.Product{ID: "rice", Name: "Rice", Unit: "kg", Price: decimal.NewFromInt(2), Stock: decimal.NewFromInt(10)}))
	require.NoError(t, s.CreateOrder(ctx, &models.Order{
		ID: "o1", CustomerID: "c1", ProductID: "rice", Unit: "kg",
		OrderedQuantity: decimal.NewFromInt(3), DeliveredQuantity: decimal.NewFromInt(1),
		Status: models.OrderPending, AssignmentStatus: models.AssignmentAccepted, AssignedTo: "d1",
		OrderDate: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.PutRole(ctx, &models.Role{Name: "delivery", Permissions: []string{"orders.deliver"}}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Username: "d1", PasswordHash: "$2a$hash", Role: "delivery"}))
	require.NoError(t, s.CreateTask(ctx, "orders", []byte(`{"type":"order.created"}`)))
	require.NoError(t, s.Save(path))

	loaded, err := LoadMemoryStore(path)
	require.NoError(t, err)

	o, err := loaded.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, o.DeliveredQuantity.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, models.PartiallyDelivered, o.DeliveryState())

	u, err := loaded.GetUserByUsername(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "$2a$hash", u.PasswordHash, "hashes survive the round trip")

	role, err := loaded.GetRole(ctx, "delivery")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders.deliver"}, role.Permissions)

	tasks, err := loaded.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, loaded.CreateTask(ctx, "orders", []byte(`{}`)))
	tasks, err = loaded.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, tasks[0].ID+1, tasks[1].ID, "task ids continue after restore")
}

func TestSnapshot_MissingFileIsEmpty(t *testing.T) {
	s, err := LoadMemoryStore(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	list, err := s.ListCustomers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSnapshot_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := LoadMemoryStore(path)
	assert.Error(t, err)
}
