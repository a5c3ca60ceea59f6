package model

import "time"

// Audit action tags. The audit ledger is write-once; rows are never updated
// or deleted.
const (
	ActionFileUpload    = "file_upload"
	ActionFileDownload  = "file_download"
	ActionFileDelete    = "file_delete"
	ActionLoginSuccess  = "login_success"
	ActionLoginFailure  = "login_failure"
	ActionAdminSignup   = "admin_signup"
	ActionEmailVerified = "email_verified"
)

// AuditRecord is a single append-only audit ledger entry.
type AuditRecord struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	ActorEmail string            `json:"actor_email,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	TargetName string            `json:"target_name,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AdminUser is an operator credential. Password holds a bcrypt hash; a legacy
// plain-text value may exist transiently and is upgraded on first successful
// login.
type AdminUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}
