package notifier

import (
	"context"
	"log/slog"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
)

// LogNotifier implements domain.Notifier by writing notifications to the log.
// The real notification gateway lives outside this service; this adapter keeps
// the engine's fire-and-forget contract observable in development.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new LogNotifier instance.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyAboutTransfer logs the notification for the account holder.
func (n *LogNotifier) NotifyAboutTransfer(_ context.Context, accountID, description string) error {
	n.logger.Info("transfer notification", "account_id", accountID, "message", description)
	return nil
}

var _ domain.Notifier = (*LogNotifier)(nil)
