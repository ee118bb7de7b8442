package auth

import "context"

//go:generate mockgen -source=notifier.go -destination=mock_notifier_test.go -package=auth

// PasswordResetNotice is everything an outbound channel needs to deliver a
// reset link. Link embeds the raw reset token and must never be logged.
type PasswordResetNotice struct {
	To     string
	Tenant string
	Link   string
}

type Notifier interface {
	SendPasswordReset(ctx context.Context, notice PasswordResetNotice) error
}
