package handler

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"vaultapi/internal/http/middleware"
	"vaultapi/internal/model"
	"vaultapi/internal/repository"
	"vaultapi/internal/service"
)

// HealthCheck reports readiness by pinging the database.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListDocuments returns all stored documents with per-viewer acknowledgment
// state, newest first.
func ListDocuments(svc service.VaultService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries, err := svc.List(c.UserContext(), actorEmail(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(entries)
	}
}

// UploadDocument accepts a multipart upload (field name: file), encrypts it,
// and stores it. Extra multipart form values ride along as opaque form
// fields; "sender" identifies the uploading party.
func UploadDocument(svc service.VaultService, audit service.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		sender, fields := parseFormFields(c)

		doc, err := svc.Upload(c.UserContext(), f, fh.Filename, ct, sender, fields)
		if err != nil {
			return writeServiceError(c, err)
		}

		audit.WriteAsync(&model.AuditRecord{
			Action:     model.ActionFileUpload,
			ActorEmail: actorEmail(c),
			IP:         c.IP(),
			UserAgent:  c.Get(fiber.HeaderUserAgent),
			TargetID:   doc.ID,
			TargetName: doc.Filename,
		})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": doc.ID})
	}
}

// DownloadDocument streams the decrypted document back as an attachment and
// records the viewer's acknowledgment.
func DownloadDocument(svc service.VaultService, audit service.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		res, err := svc.Download(c.UserContext(), id, actorEmail(c))
		if err != nil {
			return writeServiceError(c, err)
		}

		audit.WriteAsync(&model.AuditRecord{
			Action:     model.ActionFileDownload,
			ActorEmail: actorEmail(c),
			IP:         c.IP(),
			UserAgent:  c.Get(fiber.HeaderUserAgent),
			TargetID:   id,
			TargetName: res.Filename,
		})

		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+sanitizeFilename(res.Filename)+`"`)
		if res.ContentType != "" {
			c.Set(fiber.HeaderContentType, res.ContentType)
		}
		return c.Send(res.Content)
	}
}

// DeleteDocument removes a document and its ledger rows.
func DeleteDocument(svc service.VaultService, audit service.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}

		audit.WriteAsync(&model.AuditRecord{
			Action:     model.ActionFileDelete,
			ActorEmail: actorEmail(c),
			IP:         c.IP(),
			UserAgent:  c.Get(fiber.HeaderUserAgent),
			TargetID:   id,
		})

		return c.Status(fiber.StatusOK).JSON(fiber.Map{"deleted": id})
	}
}

// ListAuditRecords returns filtered audit entries, newest first.
func ListAuditRecords(audit service.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := auditQueryFromRequest(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_QUERY", "limit and skip must be integers")
		}

		records, err := audit.List(c.UserContext(), q)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(records)
	}
}

// ExportAuditCSV returns the filtered audit ledger as a CSV attachment.
func ExportAuditCSV(audit service.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := auditQueryFromRequest(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_QUERY", "limit and skip must be integers")
		}

		csv, err := audit.ExportCSV(c.UserContext(), q)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="audit-log.csv"`)
		return c.Send(csv)
	}
}

// Signup registers a new admin account and sends a verification link.
func Signup(auth service.AuthService, audit service.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		if err := auth.Signup(c.UserContext(), req.Email, req.Password); err != nil {
			// Same response whether the email is taken or the write failed.
			return writeError(c, fiber.StatusBadRequest, "SIGNUP_FAILED", "unable to create account")
		}

		audit.WriteAsync(&model.AuditRecord{
			Action:     model.ActionAdminSignup,
			ActorEmail: strings.ToLower(strings.TrimSpace(req.Email)),
			IP:         c.IP(),
			UserAgent:  c.Get(fiber.HeaderUserAgent),
		})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "account created, check your email to verify",
		})
	}
}

// VerifyEmail confirms an account from the emailed verification token.
func VerifyEmail(auth service.AuthService, audit service.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return writeError(c, fiber.StatusBadRequest, "TOKEN_REQUIRED", "verification token is required")
		}

		email, err := auth.Verify(c.UserContext(), token)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_TOKEN", "invalid or expired verification token")
		}

		audit.WriteAsync(&model.AuditRecord{
			Action:     model.ActionEmailVerified,
			ActorEmail: email,
			IP:         c.IP(),
			UserAgent:  c.Get(fiber.HeaderUserAgent),
		})

		return c.JSON(fiber.Map{"verified": email})
	}
}

// Login checks credentials and returns a session token.
func Login(auth service.AuthService, audit service.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		token, user, err := auth.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			audit.WriteAsync(&model.AuditRecord{
				Action:     model.ActionLoginFailure,
				ActorEmail: strings.ToLower(strings.TrimSpace(req.Email)),
				IP:         c.IP(),
				UserAgent:  c.Get(fiber.HeaderUserAgent),
			})
			switch err {
			case service.ErrNotVerified:
				return writeError(c, fiber.StatusForbidden, "NOT_VERIFIED", "email not verified")
			case service.ErrInvalidCredentials:
				return writeError(c, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			default:
				return writeServiceError(c, err)
			}
		}

		audit.WriteAsync(&model.AuditRecord{
			Action:     model.ActionLoginSuccess,
			ActorEmail: user.Email,
			IP:         c.IP(),
			UserAgent:  c.Get(fiber.HeaderUserAgent),
		})

		return c.JSON(fiber.Map{"token": token, "email": user.Email})
	}
}

// authVerifier adapts the auth service to the middleware.TokenVerifier
// contract.
type authVerifier struct {
	auth service.AuthService
}

func (v authVerifier) VerifyBearer(token string) (string, string, bool, error) {
	claims, err := v.auth.ValidateToken(token)
	if err != nil {
		return "", "", false, err
	}
	return claims.UserID, claims.Email, claims.IsAdmin, nil
}

// RouteDeps bundles everything RegisterRoutes wires together.
type RouteDeps struct {
	DB                *sql.DB
	Vault             service.VaultService
	Audit             service.AuditService
	Auth              service.AuthService
	Limiter           *middleware.RateLimiter
	RequireUploadAuth bool
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. The general
// rate-limit class is expected to be installed app-wide by the caller; the
// per-route classes here stack on top of it.
func RegisterRoutes(app *fiber.App, deps RouteDeps) {
	requireAuth := middleware.RequireAuth(authVerifier{auth: deps.Auth}, true)

	app.Get("/health", HealthCheck(deps.DB))
	app.Get("/healthz", LivenessProbe())

	app.Post("/auth/signup", deps.Limiter.Middleware(middleware.ClassSignup), Signup(deps.Auth, deps.Audit))
	app.Get("/auth/verify", deps.Limiter.Middleware(middleware.ClassVerify), VerifyEmail(deps.Auth, deps.Audit))
	app.Post("/auth/login", deps.Limiter.Middleware(middleware.ClassLogin), Login(deps.Auth, deps.Audit))

	upload := []fiber.Handler{deps.Limiter.Middleware(middleware.ClassUpload)}
	if deps.RequireUploadAuth {
		upload = append(upload, requireAuth)
	}
	upload = append(upload, UploadDocument(deps.Vault, deps.Audit))
	app.Post("/documents", upload...)

	app.Get("/documents", requireAuth, ListDocuments(deps.Vault))
	app.Get("/documents/:id", deps.Limiter.Middleware(middleware.ClassDownload), requireAuth, DownloadDocument(deps.Vault, deps.Audit))
	app.Delete("/documents/:id", deps.Limiter.Middleware(middleware.ClassDelete), requireAuth, DeleteDocument(deps.Vault, deps.Audit))

	app.Get("/audit", requireAuth, ListAuditRecords(deps.Audit))
	app.Get("/audit/export", requireAuth, ExportAuditCSV(deps.Audit))
}

func actorEmail(c *fiber.Ctx) string {
	if v, ok := c.Locals(middleware.ActorEmailLocalKey).(string); ok {
		return v
	}
	return ""
}

// parseFormFields splits the multipart form values into the sender identity
// and the remaining opaque form fields, preserved in submission order per key.
func parseFormFields(c *fiber.Ctx) (string, []model.FormField) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return "", nil
	}

	sender := ""
	var fields []model.FormField
	for name, values := range form.Value {
		for _, v := range values {
			if name == "sender" {
				sender = v
				continue
			}
			fields = append(fields, model.FormField{Name: name, Value: v})
		}
	}
	return sender, fields
}

func auditQueryFromRequest(c *fiber.Ctx) (repository.AuditQuery, error) {
	q := repository.AuditQuery{
		Action: c.Query("action"),
		Actor:  c.Query("actor"),
	}

	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, err
		}
		q.Limit = n
	}
	if s := c.Query("skip"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, err
		}
		q.Skip = n
	}
	return q, nil
}

// sanitizeFilename keeps Content-Disposition header-safe by stripping quote
// and control characters from the stored filename.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return -1
		}
		return r
	}, name)
}
