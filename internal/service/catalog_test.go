package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/apperr"
)

func TestCustomerCreditLimitChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.catalog.CreateCustomer(ctx, admin, CustomerInput{Name: "Depot", CreditLimit: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, "100", c.AvailableCredit.String())

	_, err = f.orders.Create(ctx, salesman, CreateOrderInput{
		CustomerID: c.ID, ProductID: "rice", Quantity: dec("24"), PaymentMethod: "credit",
	})
	require.NoError(t, err)
	assert.Equal(t, "40", f.customer(t, c.ID).AvailableCredit.String())

	c, err = f.catalog.UpdateCustomer(ctx, admin, c.ID, CustomerInput{Name: "Depot", CreditLimit: dec("150")})
	require.NoError(t, err)
	assert.Equal(t, "90", c.AvailableCredit.String())

	_, err = f.catalog.UpdateCustomer(ctx, admin, c.ID, CustomerInput{Name: "Depot", CreditLimit: dec("50")})
	assert.ErrorIs(t, err, apperr.ErrInsufficientCredit, "open orders already use more than 50")
	assert.Equal(t, "150", f.customer(t, c.ID).CreditLimit.String())

	_, err = f.catalog.CreateCustomer(ctx, admin, CustomerInput{Name: " "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCustomerVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	list, err := f.catalog.ListCustomers(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)

	_, err = f.catalog.GetCustomer(ctx, buyer, "c2")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestProductRestockAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.catalog.CreateProduct(ctx, admin, ProductInput{Name: "Oil", Unit: " Liter ", Price: dec("3"), Stock: dec("10")})
	require.NoError(t, err)
	assert.Equal(t, "liter", p.Unit)

	p, err = f.catalog.UpdateProduct(ctx, admin, p.ID, ProductInput{Name: "Olive oil", Unit: "liter", Price: dec("4"), Stock: dec("2.5")})
	require.NoError(t, err)
	assert.Equal(t, "Olive oil", p.Name)
	assert.Equal(t, "12.5", p.Stock.String())

	_, err = f.catalog.UpdateProduct(ctx, admin, p.ID, ProductInput{Name: "Olive oil", Unit: "liter", Price: dec("4"), Stock: dec("-13")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.catalog.DeleteProduct(ctx, admin, p.ID))
	_, err = f.catalog.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	f.acceptedOrder(t, "soap", "1", "cash")
	assert.ErrorIs(t, f.catalog.DeleteProduct(ctx, admin, "soap"), apperr.ErrValidation, "referenced by an order")
}
