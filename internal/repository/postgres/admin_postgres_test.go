package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"vaultapi/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestAdminPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAdminPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	u := &model.AdminUser{
		ID:        "admin-1",
		Email:     "Admin@Z.com",
		Password:  "$2a$12$hash",
		Verified:  false,
		CreatedAt: now,
	}

	rows := sqlmock.NewRows([]string{"id", "email", "password", "verified", "created_at"}).
		AddRow(u.ID, "admin@z.com", u.Password, u.Verified, u.CreatedAt)

	mock.ExpectQuery("INSERT INTO admin_users").
		WithArgs(u.ID, u.Email, u.Password, u.Verified, u.CreatedAt).
		WillReturnRows(rows)

	stored, err := repo.Create(ctx, u)

	assert.NoError(t, err)
	assert.Equal(t, "admin@z.com", stored.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminPostgres_FindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAdminPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "email", "password", "verified", "created_at"}).
			AddRow("admin-1", "admin@z.com", "$2a$12$hash", true, time.Now())

		mock.ExpectQuery("SELECT (.+) FROM admin_users").
			WithArgs("admin@z.com").
			WillReturnRows(rows)

		u, err := repo.FindByEmail(ctx, "admin@z.com")

		assert.NoError(t, err)
		assert.True(t, u.Verified)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM admin_users").
			WithArgs("missing@z.com").
			WillReturnError(sql.ErrNoRows)

		u, err := repo.FindByEmail(ctx, "missing@z.com")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, u)
	})
}

func TestAdminPostgres_UpdatePassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAdminPostgres(db)

	mock.ExpectExec("UPDATE admin_users SET password").
		WithArgs("admin-1", "$2a$12$newhash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdatePassword(context.Background(), "admin-1", "$2a$12$newhash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminPostgres_MarkVerified(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAdminPostgres(db)
	ctx := context.Background()

	t.Run("existing user", func(t *testing.T) {
		mock.ExpectExec("UPDATE admin_users SET verified").
			WithArgs("admin@z.com").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkVerified(ctx, "admin@z.com"))
	})

	t.Run("unknown user", func(t *testing.T) {
		mock.ExpectExec("UPDATE admin_users SET verified").
			WithArgs("missing@z.com").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.MarkVerified(ctx, "missing@z.com"), sql.ErrNoRows)
	})
}
