package postgres

import (
	"context"
	"database/sql"

	"vaultapi/internal/model"
	"vaultapi/internal/repository"
)

// AdminPostgres is a PostgreSQL implementation of repository.AdminRepository.
type AdminPostgres struct {
	db *sql.DB
}

// NewAdminPostgres creates a new AdminPostgres repository.
func NewAdminPostgres(db *sql.DB) *AdminPostgres {
	return &AdminPostgres{db: db}
}

var _ repository.AdminRepository = (*AdminPostgres)(nil)

// Create inserts a new operator credential and returns the stored row.
func (r *AdminPostgres) Create(ctx context.Context, u *model.AdminUser) (*model.AdminUser, error) {
	const q = `
		INSERT INTO admin_users (id, email, password, verified, created_at)
		VALUES ($1, lower($2), $3, $4, $5)
		RETURNING id, email, password, verified, created_at
	`
	row := r.db.QueryRowContext(ctx, q, u.ID, u.Email, u.Password, u.Verified, u.CreatedAt)
	var out model.AdminUser
	if err := row.Scan(&out.ID, &out.Email, &out.Password, &out.Verified, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByEmail fetches a credential by email (case-insensitive).
// Returns sql.ErrNoRows when absent.
func (r *AdminPostgres) FindByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	const q = `
		SELECT id, email, password, verified, created_at
		FROM admin_users
		WHERE email = lower($1)
	`
	row := r.db.QueryRowContext(ctx, q, email)
	var u model.AdminUser
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Verified, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword rewrites the stored password representation.
func (r *AdminPostgres) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `UPDATE admin_users SET password = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, passwordHash)
	return err
}

// MarkVerified flips the verified flag. Verification is idempotent.
func (r *AdminPostgres) MarkVerified(ctx context.Context, email string) error {
	const q = `UPDATE admin_users SET verified = TRUE WHERE email = lower($1)`
	res, err := r.db.ExecContext(ctx, q, email)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
