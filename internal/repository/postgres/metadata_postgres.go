package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"vaultapi/internal/model"
	"vaultapi/internal/repository"
)

// MetadataPostgres is a PostgreSQL implementation of repository.MetadataRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type MetadataPostgres struct {
	db *sql.DB
}

// NewMetadataPostgres creates a new MetadataPostgres repository.
func NewMetadataPostgres(db *sql.DB) *MetadataPostgres {
	return &MetadataPostgres{db: db}
}

var _ repository.MetadataRepository = (*MetadataPostgres)(nil)

// RecordUpload inserts the ledger row for a stored document. A pre-existing
// row (created lazily by an earlier access) is left untouched.
func (r *MetadataPostgres) RecordUpload(ctx context.Context, meta *model.DocumentMeta) error {
	fields, err := json.Marshal(meta.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	const q = `
		INSERT INTO document_meta (document_id, filename, sender, fields, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, q,
		meta.DocumentID,
		meta.Filename,
		meta.Sender,
		fields,
		meta.UploadedAt,
	)
	return err
}

// RecordAccess upserts the ledger row and appends the viewer acknowledgment
// if absent. Both statements are conditional inserts, so concurrent viewers
// of the same document cannot race into duplicate or lost entries.
func (r *MetadataPostgres) RecordAccess(ctx context.Context, docID, filename, sender, viewer string) error {
	const seedRow = `
		INSERT INTO document_meta (document_id, filename, sender, fields, uploaded_at)
		VALUES ($1, $2, $3, '[]'::jsonb, now())
		ON CONFLICT (document_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, seedRow, docID, filename, sender); err != nil {
		return err
	}

	const appendAck = `
		INSERT INTO viewer_acks (document_id, viewer, acked_at)
		VALUES ($1, lower($2), now())
		ON CONFLICT (document_id, viewer) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, appendAck, docID, viewer)
	return err
}

// ListWithAcks batch-fetches sender and per-viewer acknowledgment state.
func (r *MetadataPostgres) ListWithAcks(ctx context.Context, ids []string, viewer string) (map[string]repository.DocumentStatus, error) {
	out := make(map[string]repository.DocumentStatus, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, viewer)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	q := fmt.Sprintf(`
		SELECT m.document_id, m.sender, a.acked_at
		FROM document_meta m
		LEFT JOIN viewer_acks a
		  ON a.document_id = m.document_id AND a.viewer = lower($1)
		WHERE m.document_id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      string
			sender  sql.NullString
			ackedAt sql.NullTime
		)
		if err := rows.Scan(&id, &sender, &ackedAt); err != nil {
			return nil, err
		}
		st := repository.DocumentStatus{Sender: sender.String}
		if ackedAt.Valid {
			t := ackedAt.Time
			st.Acknowledged = true
			st.AcknowledgedAt = &t
		}
		out[id] = st
	}
	return out, rows.Err()
}

// DeleteForDocument removes the ledger row; viewer acks cascade.
func (r *MetadataPostgres) DeleteForDocument(ctx context.Context, docID string) error {
	const q = `DELETE FROM document_meta WHERE document_id = $1`
	res, err := r.db.ExecContext(ctx, q, docID)
	if err != nil {
		return err
	}
	// Absence is not an error.
	_, _ = res.RowsAffected()
	return nil
}
