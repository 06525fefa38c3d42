package repository

import (
	"context"
	"database/sql"
	"fmt"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

const billColumns = `id, customer_id, amount, method, cheque_number, cheque_bank, cheque_date,
	recipient_id, recipient_type, order_id, bill_ref, status, reviewed_by, reject_count,
	collected_at, forwarded_at, reviewed_at`

func scanBill(row rowScanner) (*models.BillTransaction, error) {
	b := &models.BillTransaction{}
	var number, bank, date sql.NullString
	var forwardedAt, reviewedAt sql.NullTime
	err := row.Scan(&b.ID, &b.CustomerID, &b.Amount, &b.Method, &number, &bank, &date,
		&b.RecipientID, &b.RecipientType, &b.OrderID, &b.BillRef, &b.Status, &b.ReviewedBy, &b.RejectCount,
		&b.CollectedAt, &forwardedAt, &reviewedAt)
	if err != nil {
		return nil, err
	}
	if number.Valid || bank.Valid || date.Valid {
		b.Cheque = &models.ChequeDetails{Number: number.String, Bank: bank.String, Date: date.String}
	}
	if forwardedAt.Valid {
		b.ForwardedAt = &forwardedAt.Time
	}
	if reviewedAt.Valid {
		b.ReviewedAt = &reviewedAt.Time
	}
	return b, nil
}

func chequeArgs(c *models.ChequeDetails) (sql.NullString, sql.NullString, sql.NullString) {
	if c == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullString{}
	}
	return nullString(c.Number), nullString(c.Bank), nullString(c.Date)
}

func (r *queries) CreateBill(ctx context.Context, b *models.BillTransaction) error {
	number, bank, date := chequeArgs(b.Cheque)
	query := `INSERT INTO bill_transactions (` + billColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := r.q.ExecContext(ctx, query,
		b.ID, b.CustomerID, b.Amount, b.Method, number, bank, date,
		b.RecipientID, b.RecipientType, b.OrderID, b.BillRef, b.Status, b.ReviewedBy, b.RejectCount,
		b.CollectedAt, b.ForwardedAt, b.ReviewedAt)
	if err != nil {
		return fmt.Errorf("create bill transaction: %w", err)
	}
	return nil
}

func (r *queries) getBill(ctx context.Context, id, suffix string) (*models.BillTransaction, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bill_transactions WHERE id=$1`+suffix, id)
	b, err := scanBill(row)
	if isNoRows(err) {
		return nil, apperr.NotFound("bill transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get bill transaction: %w", err)
	}
	return b, nil
}

func (r *queries) GetBill(ctx context.Context, id string) (*models.BillTransaction, error) {
	return r.getBill(ctx, id, "")
}

func (r *queries) LockBill(ctx context.Context, id string) (*models.BillTransaction, error) {
	return r.getBill(ctx, id, " FOR UPDATE")
}

func (r *queries) UpdateBill(ctx context.Context, b *models.BillTransaction) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE bill_transactions SET status=$1, reviewed_by=$2, reject_count=$3, forwarded_at=$4, reviewed_at=$5
		WHERE id=$6`,
		b.Status, b.ReviewedBy, b.RejectCount, b.ForwardedAt, b.ReviewedAt, b.ID)
	if err != nil {
		return fmt.Errorf("update bill transaction: %w", err)
	}
	return affected(res, apperr.NotFound("bill transaction", b.ID))
}

func (r *queries) ListBills(ctx context.Context, f BillFilter) ([]*models.BillTransaction, error) {
	w := &where{}
	if f.Status != "" {
		w.add("status=$%d", f.Status)
	}
	if f.RecipientID != "" {
		w.add("recipient_id=$%d", f.RecipientID)
	}
	if f.CustomerID != "" {
		w.add("customer_id=$%d", f.CustomerID)
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+billColumns+` FROM bill_transactions`+w.String()+` ORDER BY collected_at DESC, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list bill transactions: %w", err)
	}
	defer rows.Close()

	var res []*models.BillTransaction
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill transaction: %w", err)
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
