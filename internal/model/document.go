package model

import "time"

// Document represents a stored encrypted file as the blob store sees it.
// This is a pure domain model with no database-specific dependencies or tags.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploadDate"`
}

// FormField is one extracted form field carried alongside an upload.
// Extraction itself happens upstream; the vault stores the pairs opaquely.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ViewerAck records that a specific admin identity has retrieved a document.
// Viewer identities are compared case-insensitively and stored lowercased.
type ViewerAck struct {
	Viewer  string    `json:"viewer"`
	AckedAt time.Time `json:"ackedAt"`
}

// DocumentMeta is the ledger row keyed 1:1 with a Document. It may not exist
// until the first upload or access event forces its creation.
type DocumentMeta struct {
	DocumentID string      `json:"document_id"`
	Filename   string      `json:"filename"`
	Sender     string      `json:"sender,omitempty"`
	Fields     []FormField `json:"fields,omitempty"`
	UploadedAt time.Time   `json:"uploadDate"`
	Acks       []ViewerAck `json:"acks,omitempty"`
}
