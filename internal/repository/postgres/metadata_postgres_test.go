package postgres

import (
	"context"
	"testing"
	"time"

	"vaultapi/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestMetadataPostgres_RecordUpload(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewMetadataPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	meta := &model.DocumentMeta{
		DocumentID: "doc-1",
		Filename:   "a.pdf",
		Sender:     "x@y.com",
		Fields:     []model.FormField{{Name: "field1", Value: "v1"}},
		UploadedAt: now,
	}

	mock.ExpectExec("INSERT INTO document_meta").
		WithArgs(meta.DocumentID, meta.Filename, meta.Sender, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.RecordUpload(ctx, meta))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadataPostgres_RecordAccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewMetadataPostgres(db)
	ctx := context.Background()

	t.Run("first access seeds row and ack", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO document_meta").
			WithArgs("doc-1", "a.pdf", "x@y.com").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO viewer_acks").
			WithArgs("doc-1", "Admin@Z.com").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.RecordAccess(ctx, "doc-1", "a.pdf", "x@y.com", "Admin@Z.com"))
	})

	t.Run("repeat access is a conflict no-op", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO document_meta").
			WithArgs("doc-1", "a.pdf", "x@y.com").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO viewer_acks").
			WithArgs("doc-1", "admin@z.com").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, repo.RecordAccess(ctx, "doc-1", "a.pdf", "x@y.com", "admin@z.com"))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadataPostgres_ListWithAcks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewMetadataPostgres(db)
	ctx := context.Background()

	t.Run("mixed acknowledgment state", func(t *testing.T) {
		ackedAt := time.Now().UTC()
		rows := sqlmock.NewRows([]string{"document_id", "sender", "acked_at"}).
			AddRow("doc-1", "x@y.com", ackedAt).
			AddRow("doc-2", nil, nil)

		mock.ExpectQuery("SELECT (.+) FROM document_meta m").
			WithArgs("admin@z.com", "doc-1", "doc-2").
			WillReturnRows(rows)

		res, err := repo.ListWithAcks(ctx, []string{"doc-1", "doc-2"}, "admin@z.com")

		assert.NoError(t, err)
		assert.Len(t, res, 2)
		assert.True(t, res["doc-1"].Acknowledged)
		assert.Equal(t, "x@y.com", res["doc-1"].Sender)
		assert.NotNil(t, res["doc-1"].AcknowledgedAt)
		assert.False(t, res["doc-2"].Acknowledged)
		assert.Empty(t, res["doc-2"].Sender)
	})

	t.Run("empty id list skips the query", func(t *testing.T) {
		res, err := repo.ListWithAcks(ctx, nil, "admin@z.com")
		assert.NoError(t, err)
		assert.Empty(t, res)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadataPostgres_DeleteForDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewMetadataPostgres(db)
	ctx := context.Background()

	t.Run("existing row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM document_meta WHERE document_id = ?").
			WithArgs("doc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.DeleteForDocument(ctx, "doc-1"))
	})

	t.Run("absent row is not an error", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM document_meta WHERE document_id = ?").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, repo.DeleteForDocument(ctx, "missing"))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
