// Package notify hands password-reset requests to the external mailer.
package notify

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
)

// PasswordResetRequested is the payload consumed by the mailer.
type PasswordResetRequested struct {
	Email     string `json:"email"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type Notifier interface {
	PasswordResetRequested(ctx context.Context, evt PasswordResetRequested) error
	Close() error
}

// LogNotifier is used when no broker is configured. The token is only
// written at debug level.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) PasswordResetRequested(ctx context.Context, evt PasswordResetRequested) error {
	n.logger.Info(ctx, "password reset requested", "email", evt.Email, "expires_in", evt.ExpiresIn)
	n.logger.Debug(ctx, "password reset token", "email", evt.Email, "token", evt.Token)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
