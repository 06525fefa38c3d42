package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

const customerColumns = `id, name, phone, address, credit_limit, available_credit, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	c := &models.Customer{}
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreditLimit, &c.AvailableCredit, &c.CreatedAt)
	return c, err
}

func (r *queries) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `INSERT INTO customers (` + customerColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.q.ExecContext(ctx, query,
		c.ID, c.Name, c.Phone, c.Address, c.CreditLimit, c.AvailableCredit, c.CreatedAt)
	if err != nil {
		return constraintError(err, "create customer")
	}
	return nil
}

func (r *queries) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id)
	c, err := scanCustomer(row)
	if isNoRows(err) {
		return nil, apperr.NotFound("customer", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (r *queries) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var res []*models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *queries) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	query := `UPDATE customers SET name=$1, phone=$2, address=$3, credit_limit=$4 WHERE id=$5`
	res, err := r.q.ExecContext(ctx, query, c.Name, c.Phone, c.Address, c.CreditLimit, c.ID)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return affected(res, apperr.NotFound("customer", c.ID))
}

func (r *queries) DeleteCustomer(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return constraintError(err, "delete customer")
	}
	return affected(res, apperr.NotFound("customer", id))
}

func (r *queries) AdjustCredit(ctx context.Context, customerID string, delta decimal.Decimal) error {
	query := `UPDATE customers SET available_credit = available_credit + $1
		WHERE id=$2 AND available_credit + $1 >= 0`
	res, err := r.q.ExecContext(ctx, query, delta, customerID)
	if err != nil {
		return fmt.Errorf("adjust credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust credit: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetCustomer(ctx, customerID); err != nil {
		return err
	}
	return apperr.InsufficientCredit("customer %s cannot cover %s", customerID, delta.Neg())
}
