package postgres

import (
	"context"
	"testing"
	"time"

	"vaultapi/internal/model"
	"vaultapi/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestAuditPostgres_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAuditPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	rec := &model.AuditRecord{
		ID:         "audit-1",
		Action:     model.ActionFileUpload,
		ActorEmail: "admin@z.com",
		IP:         "10.0.0.1",
		UserAgent:  "curl/8.0",
		TargetID:   "doc-1",
		TargetName: "a.pdf",
		Metadata:   map[string]string{"size": "10"},
		CreatedAt:  now,
	}

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(rec.ID, rec.Action, rec.ActorEmail, rec.IP, rec.UserAgent, rec.TargetID, rec.TargetName, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Insert(ctx, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAuditPostgres(db)
	ctx := context.Background()

	t.Run("filters and pagination", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "action", "actor_email", "ip", "user_agent", "target_id", "target_name", "metadata", "created_at"}).
			AddRow("audit-1", model.ActionFileDelete, "admin@z.com", "10.0.0.1", "curl/8.0", "doc-1", "a.pdf", []byte(`{"k":"v"}`), time.Now())

		mock.ExpectQuery("SELECT (.+) FROM audit_log").
			WithArgs(model.ActionFileDelete, "admin@z.com", 50, 0).
			WillReturnRows(rows)

		items, err := repo.List(ctx, repository.AuditQuery{
			Action: model.ActionFileDelete,
			Actor:  "admin@z.com",
			Limit:  50,
			Skip:   0,
		})

		assert.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, model.ActionFileDelete, items[0].Action)
		assert.Equal(t, "v", items[0].Metadata["k"])
	})

	t.Run("null metadata", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "action", "actor_email", "ip", "user_agent", "target_id", "target_name", "metadata", "created_at"}).
			AddRow("audit-2", model.ActionFileUpload, "", "", "", "", "", nil, time.Now())

		mock.ExpectQuery("SELECT (.+) FROM audit_log").
			WithArgs("", "", 50, 0).
			WillReturnRows(rows)

		items, err := repo.List(ctx, repository.AuditQuery{Limit: 50})

		assert.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Nil(t, items[0].Metadata)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
