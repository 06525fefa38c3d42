package repository

import (
	"context"
	"database/sql"
	"fmt"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

const userColumns = `id, username, password_hash, role, customer_id, name, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var customerID sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &customerID, &u.Name, &u.CreatedAt)
	u.CustomerID = customerID.String
	return u, err
}

func (r *queries) CreateUser(ctx context.Context, u *models.User) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.PasswordHash, u.Role, nullString(u.CustomerID), u.Name, u.CreatedAt)
	if err != nil {
		return constraintError(err, "create user")
	}
	return nil
}

func (r *queries) getUser(ctx context.Context, column, value string) (*models.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+`=$1`, value)
	u, err := scanUser(row)
	if isNoRows(err) {
		return nil, apperr.NotFound("user", value)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r *queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, "username", username)
}
