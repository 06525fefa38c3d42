package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

func (r *queries) ListRoles(ctx context.Context) ([]*models.Role, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT name, permissions FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var res []*models.Role
	for rows.Next() {
		role := &models.Role{}
		if err := rows.Scan(&role.Name, pq.Array(&role.Permissions)); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		res = append(res, role)
	}
	return res, rows.Err()
}

func (r *queries) GetRole(ctx context.Context, name string) (*models.Role, error) {
	role := &models.Role{}
	err := r.q.QueryRowContext(ctx, `SELECT name, permissions FROM roles WHERE name=$1`, name).
		Scan(&role.Name, pq.Array(&role.Permissions))
	if isNoRows(err) {
		return nil, apperr.NotFound("role", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

func (r *queries) PutRole(ctx context.Context, role *models.Role) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO roles (name, permissions) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET permissions = EXCLUDED.permissions`,
		role.Name, pq.Array(role.Permissions))
	if err != nil {
		return fmt.Errorf("put role: %w", err)
	}
	return nil
}
