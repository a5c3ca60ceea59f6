package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"vaultapi/internal/model"
	"vaultapi/internal/repository"
)

// AuditPostgres is a PostgreSQL implementation of repository.AuditRepository.
// The audit_log table is append-only; no update or delete statements exist.
type AuditPostgres struct {
	db *sql.DB
}

// NewAuditPostgres creates a new AuditPostgres repository.
func NewAuditPostgres(db *sql.DB) *AuditPostgres {
	return &AuditPostgres{db: db}
}

var _ repository.AuditRepository = (*AuditPostgres)(nil)

// Insert appends one audit record.
func (r *AuditPostgres) Insert(ctx context.Context, rec *model.AuditRecord) error {
	var meta []byte
	if rec.Metadata != nil {
		var err error
		if meta, err = json.Marshal(rec.Metadata); err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	const q = `
		INSERT INTO audit_log (id, action, actor_email, ip, user_agent, target_id, target_name, metadata, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
	`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.Action,
		rec.ActorEmail,
		rec.IP,
		rec.UserAgent,
		rec.TargetID,
		rec.TargetName,
		meta,
		rec.CreatedAt,
	)
	return err
}

// List returns audit records newest first, filtered by optional action and
// actor, using LIMIT/OFFSET pagination.
func (r *AuditPostgres) List(ctx context.Context, q repository.AuditQuery) ([]model.AuditRecord, error) {
	query := `
		SELECT id, action, COALESCE(actor_email, ''), COALESCE(ip, ''), COALESCE(user_agent, ''),
		       COALESCE(target_id, ''), COALESCE(target_name, ''), metadata, created_at
		FROM audit_log
		WHERE ($1 = '' OR action = $1)
		  AND ($2 = '' OR actor_email = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, query, q.Action, q.Actor, q.Limit, q.Skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.AuditRecord, 0)
	for rows.Next() {
		var (
			rec  model.AuditRecord
			meta []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Action,
			&rec.ActorEmail,
			&rec.IP,
			&rec.UserAgent,
			&rec.TargetID,
			&rec.TargetName,
			&meta,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
