package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

const productColumns = `id, name, unit, price, stock, created_at`

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Unit, &p.Price, &p.Stock, &p.CreatedAt)
	return p, err
}

func (r *queries) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `INSERT INTO products (` + productColumns + `) VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.q.ExecContext(ctx, query, p.ID, p.Name, p.Unit, p.Price, p.Stock, p.CreatedAt)
	if err != nil {
		return constraintError(err, "create product")
	}
	return nil
}

func (r *queries) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if isNoRows(err) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *queries) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var res []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r *queries) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := r.q.ExecContext(ctx, `UPDATE products SET name=$1, unit=$2, price=$3 WHERE id=$4`,
		p.Name, p.Unit, p.Price, p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return affected(res, apperr.NotFound("product", p.ID))
}

func (r *queries) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return constraintError(err, "delete product")
	}
	return affected(res, apperr.NotFound("product", id))
}

func (r *queries) AdjustStock(ctx context.Context, productID string, delta decimal.Decimal) error {
	query := `UPDATE products SET stock = stock + $1 WHERE id=$2 AND stock + $1 >= 0`
	res, err := r.q.ExecContext(ctx, query, delta, productID)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if n > 0 {
		return nil
	}
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	return apperr.Validation("insufficient stock for product %s: have %s, need %s", productID, p.Stock, delta.Neg())
}
