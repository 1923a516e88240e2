package notification

import (
	"context"
	"log/slog"
)

// Kinds of session notifications surfaced to the user as toasts.
const (
	KindRegistered           = "registered"
	KindVerificationRequired = "verification_required"
	KindEmailVerified        = "email_verified"
	KindVerificationResent   = "verification_resent"
	KindLoggedIn             = "logged_in"
	KindPinSet               = "pin_set"
	KindPinConfirmed         = "pin_confirmed"
	KindLoggedOut            = "logged_out"
	KindFailure              = "failure"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to whatever renders them.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Nop discards every notification.
type Nop struct{}

// Send does nothing.
func (Nop) Send(context.Context, Message) error { return nil }
