package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
	"fieldops/internal/repository"
)

func TestCreateOrder_ReservesStockAndCredit(t *testing.T) {
	f := newFixture(t)
	o, err := f.orders.Create(context.Background(), salesman, CreateOrderInput{
		CustomerID: "c1", ProductID: "rice", Quantity: dec("10"), PaymentMethod: "credit",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderPending, o.Status)
	assert.Equal(t, models.AssignmentPending, o.AssignmentStatus)
	assert.Equal(t, "25", o.TotalAmount.String())
	assert.Equal(t, "kg", o.Unit)
	assert.Equal(t, "90", f.product(t, "rice").Stock.String())
	assert.Equal(t, "975", f.customer(t, "c1").AvailableCredit.String())
	assert.Equal(t, []string{"order.created"}, f.eventTypes(t, "orders"))
}

func TestCreateOrder_CashLeavesCredit(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.Create(context.Background(), salesman, CreateOrderInput{
		CustomerID: "c1", ProductID: "soap", Quantity: dec("2"), PaymentMethod: "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", f.customer(t, "c1").AvailableCredit.String())
	assert.Equal(t, "3", f.product(t, "soap").Stock.String())
}

func TestCreateOrder_Failures(t *testing.T) {
	cases := []struct {
		name string
		in   CreateOrderInput
		want error
	}{
		{"zero quantity", CreateOrderInput{CustomerID: "c1", ProductID: "rice", Quantity: dec("0"), PaymentMethod: "cash"}, apperr.ErrValidation},
		{"bad payment", CreateOrderInput{CustomerID: "c1", ProductID: "rice", Quantity: dec("1"), PaymentMethod: "cheque"}, apperr.ErrValidation},
		{"fraction of a box", CreateOrderInput{CustomerID: "c1", ProductID: "soap", Quantity: dec("1.5"), PaymentMethod: "cash"}, apperr.ErrValidation},
		{"not enough stock", CreateOrderInput{CustomerID: "c1", ProductID: "soap", Quantity: dec("6"), PaymentMethod: "cash"}, apperr.ErrValidation},
		{"unknown product", CreateOrderInput{CustomerID: "c1", ProductID: "nope", Quantity: dec("1"), PaymentMethod: "cash"}, apperr.ErrNotFound},
		{"unknown customer", CreateOrderInput{CustomerID: "nope", ProductID: "rice", Quantity: dec("1"), PaymentMethod: "cash"}, apperr.ErrNotFound},
		{"over credit", CreateOrderInput{CustomerID: "c2", ProductID: "rice", Quantity: dec("21"), PaymentMethod: "credit"}, apperr.ErrInsufficientCredit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.orders.Create(context.Background(), salesman, tc.in)
			assert.ErrorIs(t, err, tc.want)

			assert.Equal(t, "100", f.product(t, "rice").Stock.String(), "stock untouched")
			assert.Equal(t, "5", f.product(t, "soap").Stock.String(), "stock untouched")
			assert.Equal(t, "50", f.customer(t, "c2").AvailableCredit.String(), "credit untouched")
			assert.Empty(t, f.eventTypes(t, "orders"))
		})
	}
}

func TestCreateOrder_CustomerOnlyForThemselves(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.Create(context.Background(), buyer, CreateOrderInput{
		CustomerID: "c2", ProductID: "rice", Quantity: dec("1"), PaymentMethod: "cash",
	})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	o, err := f.orders.Create(context.Background(), buyer, CreateOrderInput{
		ProductID: "rice", Quantity: dec("1"), PaymentMethod: "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", o.CustomerID)
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.orders.Create(ctx, salesman, CreateOrderInput{
		CustomerID: "c1", ProductID: "rice", Quantity: dec("1"), PaymentMethod: "cash",
	})
	require.NoError(t, err)

	_, err = f.orders.Assign(ctx, salesman, o.ID, driver.UserID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = f.orders.Assign(ctx, admin, o.ID, salesman.UserID)
	assert.ErrorIs(t, err, apperr.ErrValidation, "target must be a delivery user")

	got, err := f.orders.Assign(ctx, admin, o.ID, driver.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentAssigned, got.AssignmentStatus)
	assert.Equal(t, driver.UserID, got.AssignedTo)

	_, err = f.orders.Assign(ctx, admin, o.ID, driver2.UserID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "already assigned")
}

func TestRejectThenReassign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.orders.Create(ctx, salesman, CreateOrderInput{
		CustomerID: "c1", ProductID: "rice", Quantity: dec("1"), PaymentMethod: "cash",
	})
	require.NoError(t, err)
	_, err = f.orders.Assign(ctx, admin, o.ID, driver.UserID)
	require.NoError(t, err)

	_, err = f.orders.Accept(ctx, driver2, o.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied, "only the assignee responds")

	got, err := f.orders.Reject(ctx, driver, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentRejected, got.AssignmentStatus)

	got, err = f.orders.Assign(ctx, admin, o.ID, driver2.UserID)
	require.NoError(t, err)
	assert.Equal(t, driver2.UserID, got.AssignedTo)

	got, err = f.orders.Accept(ctx, driver2, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentAccepted, got.AssignmentStatus)
}

func TestDeliver_PartialThenFull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.acceptedOrder(t, "rice", "10", "credit")

	got, _, err := f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("4"), PaymentMethod: "credit"})
	require.NoError(t, err)
	assert.Equal(t, "4", got.DeliveredQuantity.String())
	assert.Equal(t, models.OrderPending, got.Status)
	assert.Equal(t, models.PartiallyDelivered, got.DeliveryState())
	assert.Equal(t, models.AssignmentAccepted, got.AssignmentStatus)

	got, _, err = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("6"), PaymentMethod: "credit"})
	require.NoError(t, err)
	assert.Equal(t, "10", got.DeliveredQuantity.String())
	assert.Equal(t, models.OrderDelivered, got.Status)
	assert.Equal(t, models.FullyDelivered, got.DeliveryState())

	_, _, err = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("0"), PaymentMethod: "credit"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, _, err = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("1"), PaymentMethod: "credit"})
	assert.ErrorIs(t, err, apperr.ErrQuantityExceeded)
}

func TestDeliver_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.acceptedOrder(t, "soap", "3", "cash")

	_, _, err := f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("1.5"), PaymentMethod: "cash"})
	assert.ErrorIs(t, err, apperr.ErrValidation, "boxes are whole")

	_, _, err = f.orders.Deliver(ctx, driver2, o.ID, DeliverInput{Quantity: dec("1"), PaymentMethod: "cash"})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, _, err = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("4"), PaymentMethod: "cash"})
	assert.ErrorIs(t, err, apperr.ErrQuantityExceeded)

	_, _, err = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("1"), PaymentMethod: "cheque"})
	assert.ErrorIs(t, err, apperr.ErrValidation, "cheque needs details")

	got, err := f.orders.Get(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.True(t, got.DeliveredQuantity.IsZero())

	pending, err := f.orders.Create(ctx, salesman, CreateOrderInput{
		CustomerID: "c1", ProductID: "rice", Quantity: dec("1"), PaymentMethod: "cash",
	})
	require.NoError(t, err)
	_, _, err = f.orders.Deliver(ctx, driver, pending.ID, DeliverInput{Quantity: dec("1"), PaymentMethod: "cash"})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "not accepted yet")
}

func TestDeliver_CashCreatesReceivedTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.acceptedOrder(t, "rice", "10", "cash")

	_, bill, err := f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("2.5"), PaymentMethod: "cash"})
	require.NoError(t, err)
	require.NotNil(t, bill)
	assert.Equal(t, models.BillReceived, bill.Status)
	assert.Equal(t, "6.25", bill.Amount.String())
	assert.Equal(t, driver.UserID, bill.RecipientID)
	assert.Equal(t, models.RecipientDelivery, bill.RecipientType)
	assert.Equal(t, o.ID, bill.OrderID)

	paid := dec("20")
	_, bill, err = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{
		Quantity: dec("1"), PaymentMethod: "cheque", Amount: &paid,
		Cheque: &models.ChequeDetails{Number: "0042", Bank: "First", Date: "2026-05-04"},
	})
	require.NoError(t, err)
	assert.Equal(t, "20", bill.Amount.String())
	assert.Equal(t, "0042", bill.Cheque.Number)

	_, bill, err = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("1"), PaymentMethod: "credit"})
	require.NoError(t, err)
	assert.Nil(t, bill)

	totals, err := f.wallet.MyTotals(ctx, driver)
	require.NoError(t, err)
	assert.Equal(t, "26.25", totals.ReadyToSend.String())
}

func TestDeliver_ConcurrentCallsSerialize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.acceptedOrder(t, "rice", "10", "credit")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("6"), PaymentMethod: "credit"})
		}()
	}
	wg.Wait()

	var ok, exceeded int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrQuantityExceeded):
			exceeded++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, exceeded)

	got, err := f.orders.Get(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "6", got.DeliveredQuantity.String())
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("restores stock and credit", func(t *testing.T) {
		o := f.acceptedOrder(t, "rice", "10", "credit")
		assert.Equal(t, "975", f.customer(t, "c1").AvailableCredit.String())

		got, err := f.orders.Cancel(ctx, driver, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderCancelled, got.Status)
		assert.Equal(t, "100", f.product(t, "rice").Stock.String())
		assert.Equal(t, "1000", f.customer(t, "c1").AvailableCredit.String())

		_, _, err = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("1"), PaymentMethod: "credit"})
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
		_, err = f.orders.Cancel(ctx, admin, o.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	})

	t.Run("not after a delivery", func(t *testing.T) {
		o := f.acceptedOrder(t, "rice", "10", "credit")
		_, _, err := f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("1"), PaymentMethod: "credit"})
		require.NoError(t, err)
		_, err = f.orders.Cancel(ctx, admin, o.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	})

	t.Run("not before acceptance", func(t *testing.T) {
		o, err := f.orders.Create(ctx, salesman, CreateOrderInput{
			CustomerID: "c1", ProductID: "rice", Quantity: dec("1"), PaymentMethod: "cash",
		})
		require.NoError(t, err)
		_, err = f.orders.Cancel(ctx, admin, o.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	})

	t.Run("only assignee or admin", func(t *testing.T) {
		o := f.acceptedOrder(t, "rice", "1", "cash")
		_, err := f.orders.Cancel(ctx, driver2, o.ID)
		assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	})
}

func TestAmountsStayAtStoredScale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.CreateProduct(ctx, &models.Product{
		ID: "flour", Name: "Flour", Unit: "kg", Price: dec("1.00"), Stock: dec("100"),
	}))

	t.Run("quantity past thousandths", func(t *testing.T) {
		_, err := f.orders.Create(ctx, salesman, CreateOrderInput{
			CustomerID: "c1", ProductID: "flour", Quantity: dec("1.2345"), PaymentMethod: "cash",
		})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Equal(t, "100", f.product(t, "flour").Stock.String())
	})

	t.Run("credit round trip", func(t *testing.T) {
		o := f.acceptedOrder(t, "flour", "0.335", "credit")
		assert.Equal(t, "0.34", o.TotalAmount.String())
		assert.Equal(t, "999.66", f.customer(t, "c1").AvailableCredit.String())

		_, err := f.orders.Cancel(ctx, driver, o.ID)
		require.NoError(t, err)
		assert.Equal(t, "1000", f.customer(t, "c1").AvailableCredit.String())
		assert.Equal(t, "100", f.product(t, "flour").Stock.String())
	})

	t.Run("delivery worth less than a cent", func(t *testing.T) {
		o := f.acceptedOrder(t, "rice", "1", "cash")
		_, _, err := f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("0.001"), PaymentMethod: "cash"})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, _, err = f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("0.001"), PaymentMethod: "cash", Amount: ptr(dec("0.005"))})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		got, bill, err := f.orders.Deliver(ctx, driver, o.ID, DeliverInput{Quantity: dec("0.001"), PaymentMethod: "cash", Amount: ptr(dec("0.01"))})
		require.NoError(t, err)
		assert.Equal(t, "0.001", got.DeliveredQuantity.String())
		assert.Equal(t, "0.01", bill.Amount.String())
	})

	t.Run("collected amount in cents", func(t *testing.T) {
		_, err := f.wallet.Record(ctx, driver, RecordCollectionInput{CustomerID: "c1", Amount: dec("1.005"), Method: "cash"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func ptr[T any](v T) *T { return &v }

func TestListAndGetVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mine := f.acceptedOrder(t, "rice", "1", "cash")
	other, err := f.orders.Create(ctx, salesman, CreateOrderInput{
		CustomerID: "c2", ProductID: "rice", Quantity: dec("1"), PaymentMethod: "cash",
	})
	require.NoError(t, err)

	list, err := f.orders.List(ctx, driver, repository.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	list, err = f.orders.List(ctx, buyer, repository.OrderFilter{CustomerID: "c2"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].CustomerID)

	list, err = f.orders.List(ctx, admin, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.orders.Get(ctx, driver, other.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	_, err = f.orders.Get(ctx, buyer, other.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestTransitionsAreRecorded(t *testing.T) {
	f := newFixture(t)
	f.acceptedOrder(t, "rice", "1", "cash")

	assert.Equal(t, 1, f.metrics.transitions["order.assign"])
	assert.Equal(t, 1, f.metrics.transitions["order.accept"])
	assert.Equal(t, []string{"order.created", "order.assign", "order.accept"}, f.eventTypes(t, "orders"))

	last := f.auditor.records[len(f.auditor.records)-1]
	assert.Equal(t, "pending/assigned", last.OldState)
	assert.Equal(t, "pending/accepted", last.NewState)
	assert.Equal(t, driver.UserID, last.Actor)
}
