package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"hris-portal/internal/auth"
	"hris-portal/internal/observability"
)

type captureSender struct {
	msgs []*mail.Msg
	err  error
}

func (s *captureSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	s.msgs = append(s.msgs, messages...)
	return s.err
}

func TestRenderPasswordReset(t *testing.T) {
	text, html, err := renderPasswordReset(resetEmailData{
		Tenant:    "Bangkok General <Hospital>",
		Link:      "https://portal.example.com/reset-password?token=abc123",
		ExpiresIn: "15 minutes",
	})
	require.NoError(t, err)

	assert.Contains(t, text, "https://portal.example.com/reset-password?token=abc123")
	assert.Contains(t, text, "15 minutes")
	assert.Contains(t, html, "token=abc123")
	assert.Contains(t, html, "Bangkok General &lt;Hospital&gt;")
	assert.NotContains(t, html, "mailto:")
}

func TestSMTPNotifierBuildsMessage(t *testing.T) {
	sender := &captureSender{}
	n := NewSMTPNotifierWithSender(sender, "noreply@example.com", "help@example.com", time.Hour)

	err := n.SendPasswordReset(context.Background(), auth.PasswordResetNotice{
		To:     "nurse@example.com",
		Tenant: "Siriraj",
		Link:   "https://portal.example.com/reset-password?token=abc",
	})
	require.NoError(t, err)
	require.Len(t, sender.msgs, 1)

	msg := sender.msgs[0]
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"nurse@example.com"}, rcpts)
	assert.Equal(t, []string{resetSubject}, msg.GetGenHeader(mail.HeaderSubject))
}

func TestSMTPNotifierSendFailure(t *testing.T) {
	sender := &captureSender{err: errors.New("connection refused")}
	n := NewSMTPNotifierWithSender(sender, "noreply@example.com", "", 15*time.Minute)

	err := n.SendPasswordReset(context.Background(), auth.PasswordResetNotice{
		To:   "nurse@example.com",
		Link: "https://portal.example.com/reset-password?token=abc",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSMTPNotifierRejectsBadRecipient(t *testing.T) {
	n := NewSMTPNotifierWithSender(&captureSender{}, "noreply@example.com", "", 15*time.Minute)

	err := n.SendPasswordReset(context.Background(), auth.PasswordResetNotice{To: "not an address"})
	require.Error(t, err)
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(observability.NopLogger())
	require.NoError(t, n.SendPasswordReset(context.Background(), auth.PasswordResetNotice{To: "a@b.c", Link: "secret"}))
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "15 minutes", humanDuration(15*time.Minute))
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "2 hours", humanDuration(2*time.Hour))
	assert.Equal(t, "1 minute", humanDuration(time.Minute))
}
