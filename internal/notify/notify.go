package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"vaultapi/internal/config"
)

// Package notify sends outbound notification mail. All sends are best-effort
// from the caller's point of view: the vault never waits on or fails because
// of a notification.

// Notifier delivers operator-facing notification messages.
type Notifier interface {
	// DocumentReceived tells the sender their document was stored.
	DocumentReceived(ctx context.Context, recipient, filename, docID string) error
	// VerificationEmail delivers an account verification link.
	VerificationEmail(ctx context.Context, recipient, verifyURL string) error
}

// New returns an SMTP-backed notifier, or a log-only notifier when no SMTP
// host is configured.
func New(cfg config.SMTPConfig) Notifier {
	if cfg.Host == "" {
		return &logNotifier{}
	}
	return &smtpNotifier{cfg: cfg}
}

type smtpNotifier struct {
	cfg config.SMTPConfig
}

func (n *smtpNotifier) DocumentReceived(ctx context.Context, recipient, filename, docID string) error {
	subject := "Document received"
	body := fmt.Sprintf(
		"Your document %q has been received and stored securely.\r\n\r\nReference: %s\r\n",
		filename, docID,
	)
	return n.send(ctx, recipient, subject, body)
}

func (n *smtpNotifier) VerificationEmail(ctx context.Context, recipient, verifyURL string) error {
	subject := "Verify your admin account"
	body := fmt.Sprintf(
		"Please verify your admin email address to activate your account:\r\n\r\n%s\r\n\r\nThe link expires in 24 hours. If you did not request this account, ignore this message.\r\n",
		verifyURL,
	)
	return n.send(ctx, recipient, subject, body)
}

func (n *smtpNotifier) send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(n.cfg.From, recipient, subject, body)
	addr := n.cfg.Host + ":" + n.cfg.Port

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{recipient}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient, err)
	}
	return nil
}

// buildMessage assembles a minimal RFC 5322 plain-text message.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// logNotifier is used when SMTP is not configured; it records the intent so
// local development still shows what would have been sent.
type logNotifier struct{}

func (l *logNotifier) DocumentReceived(_ context.Context, recipient, filename, docID string) error {
	logEvent("notify_document_received", recipient, map[string]string{"filename": filename, "doc_id": docID})
	return nil
}

func (l *logNotifier) VerificationEmail(_ context.Context, recipient, verifyURL string) error {
	logEvent("notify_verification_email", recipient, map[string]string{"verify_url": verifyURL})
	return nil
}

func logEvent(event, recipient string, extra map[string]string) {
	entry := map[string]any{
		"level":     "info",
		"component": "notify",
		"event":     event,
		"recipient": recipient,
	}
	for k, v := range extra {
		entry[k] = v
	}
	if b, err := json.Marshal(entry); err == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
