package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"vaultapi/internal/crypto"
	"vaultapi/internal/model"
	"vaultapi/internal/notify"
	"vaultapi/internal/repository"
	"vaultapi/internal/storage"
)

var (
	ErrIDRequired      = errors.New("id is required")
	ErrNotFound        = errors.New("document not found")
	ErrReaderNil       = errors.New("reader is nil")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrUnsupportedType = errors.New("unsupported document type")
)

// objectPrefix namespaces vault objects inside the bucket.
const objectPrefix = "documents/"

// Object user-metadata keys carried alongside the ciphertext.
const (
	metaOriginalFilename = "original-filename"
	metaSender           = "sender"
)

// DocumentEntry is one row of the vault listing, merged with the metadata
// ledger for the requesting viewer.
type DocumentEntry struct {
	ID             string     `json:"id"`
	Filename       string     `json:"filename"`
	UploadedAt     time.Time  `json:"uploadDate"`
	Sender         string     `json:"sender"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
}

// DownloadResult carries the decrypted payload and its original filename.
type DownloadResult struct {
	Content     []byte
	Filename    string
	ContentType string
}

// VaultService defines the use cases of the encrypted document vault.
type VaultService interface {
	// Upload encrypts the payload and stores it. The ledger row, sender
	// notification, and any caller-side audit write are best-effort: a store
	// failure surfaces, everything after it does not.
	Upload(ctx context.Context, r io.Reader, originalFilename, contentType, sender string, fields []model.FormField) (*model.Document, error)

	// Download retrieves and decrypts a document, recording the viewer's
	// acknowledgment without blocking the response on it.
	Download(ctx context.Context, id, viewer string) (*DownloadResult, error)

	// List returns all stored documents newest first, with sender and
	// per-viewer acknowledgment state merged in.
	List(ctx context.Context, viewer string) ([]DocumentEntry, error)

	// Delete removes the ciphertext and, best-effort, the ledger rows.
	Delete(ctx context.Context, id string) error
}

// vaultService is a concrete implementation of VaultService.
type vaultService struct {
	store    storage.Storage
	meta     repository.MetadataRepository
	notifier notify.Notifier
	key      []byte
	maxBytes int64
	timeout  time.Duration

	// detach runs best-effort side work after the primary path has committed.
	// Swapped for a synchronous runner in tests.
	detach func(func())
}

// NewVaultService constructs a VaultService. key must be a parsed 32-byte
// encryption key (see crypto.ParseKey).
func NewVaultService(store storage.Storage, meta repository.MetadataRepository, notifier notify.Notifier, key []byte, maxBytes int64, timeout time.Duration) VaultService {
	return &vaultService{
		store:    store,
		meta:     meta,
		notifier: notifier,
		key:      key,
		maxBytes: maxBytes,
		timeout:  timeout,
		detach:   func(f func()) { go f() },
	}
}

func (s *vaultService) Upload(ctx context.Context, r io.Reader, originalFilename, contentType, sender string, fields []model.FormField) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if !isPDF(contentType) {
		return nil, ErrUnsupportedType
	}

	// Whole-payload transform: buffer up to the configured bound, fail fast
	// beyond it rather than truncating.
	plaintext, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if int64(len(plaintext)) > s.maxBytes {
		return nil, ErrPayloadTooLarge
	}

	ciphertext, err := crypto.Encrypt(s.key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	id := uuid.New().String()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objInfo, err := s.store.Put(opCtx, objectPrefix+id, bytes.NewReader(ciphertext), storage.PutObjectOptions{
		Size:        int64(len(ciphertext)),
		ContentType: contentType,
		Metadata: map[string]string{
			metaOriginalFilename: originalFilename,
			metaSender:           sender,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		ID:          id,
		Filename:    originalFilename,
		Size:        int64(len(plaintext)),
		ContentType: contentType,
		UploadedAt:  objInfo.LastModified.UTC(),
	}

	// The document itself is authoritative; ledger and notification are
	// enrichment and must never fail the upload.
	s.detach(func() {
		dCtx, dCancel := context.WithTimeout(context.Background(), s.timeout)
		defer dCancel()
		if err := s.meta.RecordUpload(dCtx, &model.DocumentMeta{
			DocumentID: id,
			Filename:   originalFilename,
			Sender:     sender,
			Fields:     fields,
			UploadedAt: doc.UploadedAt,
		}); err != nil {
			logSideEffectFailure("metadata_record_upload", id, err)
		}
	})
	if sender != "" {
		s.detach(func() {
			dCtx, dCancel := context.WithTimeout(context.Background(), s.timeout)
			defer dCancel()
			if err := s.notifier.DocumentReceived(dCtx, sender, originalFilename, id); err != nil {
				logSideEffectFailure("notify_document_received", id, err)
			}
		})
	}

	return doc, nil
}

func (s *vaultService) Download(ctx context.Context, id, viewer string) (*DownloadResult, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rc, info, err := s.store.Get(opCtx, objectPrefix+id)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read from storage: %w", err)
	}
	defer rc.Close()

	ciphertext, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read from storage: %w", err)
	}

	plaintext, err := crypto.Decrypt(s.key, ciphertext)
	if err != nil {
		return nil, err
	}

	filename := info.Metadata[metaOriginalFilename]
	if filename == "" {
		filename = id
	}
	sender := info.Metadata[metaSender]

	// Acknowledge the retrieval without blocking the response; a ledger
	// failure is logged and swallowed.
	s.detach(func() {
		dCtx, dCancel := context.WithTimeout(context.Background(), s.timeout)
		defer dCancel()
		if err := s.meta.RecordAccess(dCtx, id, filename, sender, viewer); err != nil {
			logSideEffectFailure("metadata_record_access", id, err)
		}
	})

	return &DownloadResult{
		Content:     plaintext,
		Filename:    filename,
		ContentType: info.ContentType,
	}, nil
}

func (s *vaultService) List(ctx context.Context, viewer string) ([]DocumentEntry, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objects, err := s.store.List(opCtx, objectPrefix)
	if err != nil {
		return nil, fmt.Errorf("list storage: %w", err)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	ids := make([]string, 0, len(objects))
	for _, obj := range objects {
		ids = append(ids, strings.TrimPrefix(obj.Key, objectPrefix))
	}

	statuses, err := s.meta.ListWithAcks(opCtx, ids, viewer)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}

	entries := make([]DocumentEntry, 0, len(objects))
	for i, obj := range objects {
		id := ids[i]
		st := statuses[id]

		sender := st.Sender
		if sender == "" {
			sender = obj.Metadata[metaSender]
		}
		if sender == "" {
			sender = "Unknown"
		}

		filename := obj.Metadata[metaOriginalFilename]
		if filename == "" {
			filename = id
		}

		entries = append(entries, DocumentEntry{
			ID:             id,
			Filename:       filename,
			UploadedAt:     obj.LastModified.UTC(),
			Sender:         sender,
			Acknowledged:   st.Acknowledged,
			AcknowledgedAt: st.AcknowledgedAt,
		})
	}
	return entries, nil
}

func (s *vaultService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Delete(opCtx, objectPrefix+id); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete storage: %w", err)
	}

	// Ledger cleanup is independent of the blob delete; its failure must not
	// fail the operation that already removed the ciphertext.
	s.detach(func() {
		dCtx, dCancel := context.WithTimeout(context.Background(), s.timeout)
		defer dCancel()
		if err := s.meta.DeleteForDocument(dCtx, id); err != nil {
			logSideEffectFailure("metadata_delete", id, err)
		}
	})

	return nil
}

func isPDF(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return ct == "application/pdf" || strings.HasPrefix(ct, "application/pdf;")
}

// logSideEffectFailure records a swallowed best-effort failure as one JSON
// line, matching the application log format.
func logSideEffectFailure(op, docID string, err error) {
	entry := map[string]any{
		"level":       "error",
		"component":   "vault",
		"event":       op + "_failed",
		"document_id": docID,
		"error":       err.Error(),
	}
	if b, mErr := json.Marshal(entry); mErr == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
