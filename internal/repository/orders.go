package repository

import (
	"context"
	"fmt"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

const orderColumns = `id, customer_id, product_id, unit, ordered_quantity, delivered_quantity,
	unit_price, total_amount, payment_method, remarks, status, assignment_status,
	assigned_to, created_by, request_id, order_date, updated_at, version`

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.ProductID, &o.Unit, &o.OrderedQuantity, &o.DeliveredQuantity,
		&o.UnitPrice, &o.TotalAmount, &o.PaymentMethod, &o.Remarks, &o.Status, &o.AssignmentStatus,
		&o.AssignedTo, &o.CreatedBy, &o.RequestID, &o.OrderDate, &o.UpdatedAt, &o.Version,
	)
	return o, err
}

func (r *queries) CreateOrder(ctx context.Context, o *models.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err := r.q.ExecContext(ctx, query,
		o.ID, o.CustomerID, o.ProductID, o.Unit, o.OrderedQuantity, o.DeliveredQuantity,
		o.UnitPrice, o.TotalAmount, o.PaymentMethod, o.Remarks, o.Status, o.AssignmentStatus,
		o.AssignedTo, o.CreatedBy, o.RequestID, o.OrderDate, o.UpdatedAt, o.Version,
	)
	if err != nil {
		return constraintError(err, "create order")
	}
	return nil
}

func (r *queries) getOrder(ctx context.Context, id, suffix string) (*models.Order, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`+suffix, id)
	o, err := scanOrder(row)
	if isNoRows(err) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

func (r *queries) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return r.getOrder(ctx, id, "")
}

func (r *queries) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	return r.getOrder(ctx, id, " FOR UPDATE")
}

func (r *queries) UpdateOrder(ctx context.Context, o *models.Order) error {
	query := `UPDATE orders SET
			delivered_quantity=$1, status=$2, assignment_status=$3, assigned_to=$4,
			remarks=$5, updated_at=$6, version=version+1
		WHERE id=$7 AND version=$8`
	res, err := r.q.ExecContext(ctx, query,
		o.DeliveredQuantity, o.Status, o.AssignmentStatus, o.AssignedTo,
		o.Remarks, o.UpdatedAt, o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if err := affected(res, apperr.InvalidTransition("order %s was modified concurrently", o.ID)); err != nil {
		return err
	}
	o.Version++
	return nil
}

func (r *queries) ListOrders(ctx context.Context, f OrderFilter) ([]*models.Order, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	w := &where{}
	if f.Status != "" {
		w.add("status=$%d", f.Status)
	}
	if f.AssignmentStatus != "" {
		w.add("assignment_status=$%d", f.AssignmentStatus)
	}
	if f.AssignedTo != "" {
		w.add("assigned_to=$%d", f.AssignedTo)
	}
	if f.CustomerID != "" {
		w.add("customer_id=$%d", f.CustomerID)
	}
	if f.RequestID != "" {
		w.add("request_id=$%d", f.RequestID)
	}
	if f.Cursor != "" {
		w.add("id>$%d", f.Cursor)
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + w.String() +
		fmt.Sprintf(" ORDER BY id ASC LIMIT $%d", w.next())
	args := append(w.args, f.Limit)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var res []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}
	return res, rows.Err()
}
