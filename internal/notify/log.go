package notify

import (
	"context"

	"github.com/sameermankotia/AptosAI/pkg/logger"
)

// LogNotifier writes events to the audit log. It is always registered so
// every loop event leaves a trace even with no external backend configured.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (*LogNotifier) Name() string { return "log" }

// Notify writes one audit entry.
func (*LogNotifier) Notify(_ context.Context, event Event) error {
	attrs := []any{
		"event_id", event.ID,
		"kind", event.Kind,
		"message", event.Message,
	}
	if event.TxHash != "" {
		attrs = append(attrs, "tx_hash", event.TxHash)
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, k, v)
	}
	switch event.Kind {
	case KindLoopError:
		logger.Audit().Error("trading event", attrs...)
	default:
		logger.Audit().Info("trading event", attrs...)
	}
	return nil
}

func (*LogNotifier) Close() error { return nil }
