package repository

import (
	"context"
	"database/sql"
	"fmt"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

const requestColumns = `id, customer_id, requested_by, payment_method, remarks, grand_total,
	status, rejection_reason, resolved_by, requested_at, resolved_at`

func scanRequest(row rowScanner) (*models.OrderRequest, error) {
	req := &models.OrderRequest{}
	var resolvedAt sql.NullTime
	err := row.Scan(&req.ID, &req.CustomerID, &req.RequestedBy, &req.PaymentMethod, &req.Remarks,
		&req.GrandTotal, &req.Status, &req.RejectionReason, &req.ResolvedBy, &req.RequestedAt, &resolvedAt)
	if resolvedAt.Valid {
		req.ResolvedAt = &resolvedAt.Time
	}
	return req, err
}

func (r *queries) CreateRequest(ctx context.Context, req *models.OrderRequest) error {
	query := `INSERT INTO order_requests (` + requestColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.q.ExecContext(ctx, query,
		req.ID, req.CustomerID, req.RequestedBy, req.PaymentMethod, req.Remarks, req.GrandTotal,
		req.Status, req.RejectionReason, req.ResolvedBy, req.RequestedAt, req.ResolvedAt)
	if err != nil {
		return fmt.Errorf("create order request: %w", err)
	}
	for i, item := range req.Items {
		_, err = r.q.ExecContext(ctx, `
			INSERT INTO order_request_items (request_id, position, product_id, quantity, unit_price, line_total)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			req.ID, i, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal)
		if err != nil {
			return fmt.Errorf("create order request item %d: %w", i, err)
		}
	}
	return nil
}

func (r *queries) loadItems(ctx context.Context, req *models.OrderRequest) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, line_total
		FROM order_request_items WHERE request_id=$1 ORDER BY position`, req.ID)
	if err != nil {
		return fmt.Errorf("load order request items: %w", err)
	}
	defer rows.Close()

	req.Items = req.Items[:0]
	for rows.Next() {
		var it models.RequestItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return fmt.Errorf("scan order request item: %w", err)
		}
		req.Items = append(req.Items, it)
	}
	return rows.Err()
}

func (r *queries) getRequest(ctx context.Context, id, suffix string) (*models.OrderRequest, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM order_requests WHERE id=$1`+suffix, id)
	req, err := scanRequest(row)
	if isNoRows(err) {
		return nil, apperr.NotFound("order request", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get order request: %w", err)
	}
	if err := r.loadItems(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *queries) GetRequest(ctx context.Context, id string) (*models.OrderRequest, error) {
	return r.getRequest(ctx, id, "")
}

func (r *queries) LockRequest(ctx context.Context, id string) (*models.OrderRequest, error) {
	return r.getRequest(ctx, id, " FOR UPDATE")
}

func (r *queries) UpdateRequest(ctx context.Context, req *models.OrderRequest) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE order_requests SET status=$1, rejection_reason=$2, resolved_by=$3, resolved_at=$4
		WHERE id=$5`,
		req.Status, req.RejectionReason, req.ResolvedBy, req.ResolvedAt, req.ID)
	if err != nil {
		return fmt.Errorf("update order request: %w", err)
	}
	return affected(res, apperr.NotFound("order request", req.ID))
}

func (r *queries) ListRequests(ctx context.Context, f RequestFilter) ([]*models.OrderRequest, error) {
	w := &where{}
	if f.Status != "" {
		w.add("status=$%d", f.Status)
	}
	if f.CustomerID != "" {
		w.add("customer_id=$%d", f.CustomerID)
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM order_requests`+w.String()+` ORDER BY requested_at DESC, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list order requests: %w", err)
	}
	var res []*models.OrderRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order request: %w", err)
		}
		res = append(res, req)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list order requests: %w", err)
	}
	// items are loaded after the cursor is closed: a transaction runs one query at a time
	for _, req := range res {
		if err := r.loadItems(ctx, req); err != nil {
			return nil, err
		}
	}
	return res, nil
}
