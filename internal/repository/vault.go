package repository

import (
	"context"
	"time"

	"vaultapi/internal/model"
)

// MetadataRepository defines data access for the document metadata ledger.
// No business logic here — strictly persistence operations. The ledger row is
// best-effort enrichment; the blob store remains authoritative for content.
type MetadataRepository interface {
	// RecordUpload creates the metadata row for a freshly stored document.
	RecordUpload(ctx context.Context, meta *model.DocumentMeta) error

	// RecordAccess upserts the metadata row and appends a viewer
	// acknowledgment if one is not already present for this viewer
	// (case-insensitive). Safe under concurrent invocation for the same
	// document; re-acknowledgment by the same viewer is a no-op.
	RecordAccess(ctx context.Context, docID, filename, sender, viewer string) error

	// ListWithAcks returns, per document id, the sender and whether the given
	// viewer has acknowledged it. Ids without a ledger row are absent from
	// the result.
	ListWithAcks(ctx context.Context, ids []string, viewer string) (map[string]DocumentStatus, error)

	// DeleteForDocument removes the ledger rows for a document. Absence is
	// not an error.
	DeleteForDocument(ctx context.Context, docID string) error
}

// DocumentStatus is the per-viewer ledger view of one document.
type DocumentStatus struct {
	Sender         string
	Acknowledged   bool
	AcknowledgedAt *time.Time
}

// AuditRepository appends to and reads the write-once audit ledger.
type AuditRepository interface {
	Insert(ctx context.Context, rec *model.AuditRecord) error
	List(ctx context.Context, q AuditQuery) ([]model.AuditRecord, error)
}

// AuditQuery holds audit ledger filters and limit/skip pagination. Values are
// expected pre-clamped by the caller.
type AuditQuery struct {
	Action string
	Actor  string
	Limit  int
	Skip   int
}

// AdminRepository defines data access for operator credentials.
type AdminRepository interface {
	Create(ctx context.Context, u *model.AdminUser) (*model.AdminUser, error)
	FindByEmail(ctx context.Context, email string) (*model.AdminUser, error)
	// UpdatePassword rewrites the stored password representation, used by the
	// one-time legacy plaintext-to-hash upgrade.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkVerified(ctx context.Context, email string) error
}
