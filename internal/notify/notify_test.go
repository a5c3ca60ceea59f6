package notify

import (
	"context"
	"strings"
	"testing"

	"vaultapi/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestNew_FallsBackToLogNotifier(t *testing.T) {
	n := New(config.SMTPConfig{})
	_, ok := n.(*logNotifier)
	assert.True(t, ok)

	// Log-only sends never fail.
	assert.NoError(t, n.DocumentReceived(context.Background(), "x@y.com", "a.pdf", "doc-1"))
	assert.NoError(t, n.VerificationEmail(context.Background(), "x@y.com", "http://localhost/verify"))
}

func TestNew_SMTPConfigured(t *testing.T) {
	n := New(config.SMTPConfig{Host: "smtp.example.com", Port: "587", From: "noreply@example.com"})
	_, ok := n.(*smtpNotifier)
	assert.True(t, ok)
}

func TestSMTPNotifier_CancelledContext(t *testing.T) {
	n := &smtpNotifier{cfg: config.SMTPConfig{Host: "smtp.example.com", Port: "587"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, n.DocumentReceived(ctx, "x@y.com", "a.pdf", "doc-1"))
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("from@example.com", "to@example.com", "Subject line", "body text\r\n"))

	assert.True(t, strings.HasPrefix(msg, "From: from@example.com\r\n"))
	assert.Contains(t, msg, "To: to@example.com\r\n")
	assert.Contains(t, msg, "Subject: Subject line\r\n")
	assert.Contains(t, msg, "\r\n\r\nbody text")
}
