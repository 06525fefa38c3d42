package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

func seedCustomer(t *testing.T, s *MemoryStore, id, credit string) {
	t.Helper()
	c := decimal.RequireFromString(credit)
	require.NoError(t, s.CreateCustomer(context.Background(), &models.Customer{
		ID: id, Name: id, CreditLimit: c, AvailableCredit: c,
	}))
}

func TestMemoryStore_InTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedCustomer(t, s, "c1", "100")

	boom := errors.New("boom")
	err := s.InTx(ctx, func(r Repository) error {
		require.NoError(t, r.AdjustCredit(ctx, "c1", decimal.NewFromInt(-40)))
		require.NoError(t, r.CreateTask(ctx, "orders", []byte(`{}`)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, err := s.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "100", c.AvailableCredit.String())

	tasks, err := s.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMemoryStore_InTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedCustomer(t, s, "c1", "100")

	require.NoError(t, s.InTx(ctx, func(r Repository) error {
		if err := r.AdjustCredit(ctx, "c1", decimal.NewFromInt(-40)); err != nil {
			return err
		}
		return r.CreateTask(ctx, "orders", []byte(`{"id":"o1"}`))
	}))

	c, err := s.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "60", c.AvailableCredit.String())

	tasks, err := s.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "orders", tasks[0].Topic)
}

func TestMemoryStore_AdjustGuards(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedCustomer(t, s, "c1", "10")
	require.NoError(t, s.CreateProduct(ctx, &models.Product{ID: "p1", Unit: "kg", Stock: decimal.NewFromInt(5)}))

	err := s.AdjustCredit(ctx, "c1", decimal.NewFromInt(-11))
	assert.ErrorIs(t, err, apperr.ErrInsufficientCredit)

	err = s.AdjustStock(ctx, "p1", decimal.RequireFromString("-5.5"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = s.AdjustStock(ctx, "missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryStore_UpdateOrderVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	o := &models.Order{ID: "o1", Status: models.OrderPending, AssignmentStatus: models.AssignmentPending}
	require.NoError(t, s.CreateOrder(ctx, o))

	first, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	stale, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)

	first.Remarks = "first"
	require.NoError(t, s.UpdateOrder(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	stale.Remarks = "stale"
	err = s.UpdateOrder(ctx, stale)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Remarks)
}

func TestMemoryStore_ListOrdersFilterAndCursor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"o1", "o2", "o3", "o4"} {
		assignee := "d1"
		if id == "o3" {
			assignee = "d2"
		}
		require.NoError(t, s.CreateOrder(ctx, &models.Order{ID: id, AssignedTo: assignee, Status: models.OrderPending}))
	}

	got, err := s.ListOrders(ctx, OrderFilter{AssignedTo: "d1", Cursor: "o1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o2", got[0].ID)

	got, err = s.ListOrders(ctx, OrderFilter{AssignedTo: "d1"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestMemoryStore_ReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutRole(ctx, &models.Role{Name: "sales", Permissions: []string{"orders.view"}}))

	role, err := s.GetRole(ctx, "sales")
	require.NoError(t, err)
	role.Permissions[0] = "roles.manage"

	again, err := s.GetRole(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders.view"}, again.Permissions)
}

func TestMemoryStore_UniqueUsername(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Username: "ann"}))
	err := s.CreateUser(ctx, &models.User{ID: "u2", Username: "ann"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	u, err := s.GetUserByUsername(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestMemoryStore_TaskRetries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, "wallet", []byte("x")))

	tasks, err := s.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	id := tasks[0].ID

	require.NoError(t, s.MarkTaskProcessing(ctx, id))
	tasks, err = s.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	require.NoError(t, s.UpdateTaskFailure(ctx, id, 1, TaskStatusFailed, time.Now().Add(time.Hour)))
	tasks, err = s.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, tasks, "backoff not yet elapsed")

	require.NoError(t, s.UpdateTaskFailure(ctx, id, 1, TaskStatusFailed, time.Now().Add(-time.Second)))
	tasks, err = s.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, s.DeleteTask(ctx, id))
	tasks, err = s.GetPendingTasks(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
