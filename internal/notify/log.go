package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
)

// LogNotifier writes alerts to the logger. Used when no channel is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Send(ctx context.Context, channel string, severity domain.Severity, message string, attachments []ports.Attachment) error {
	ev := n.log.Warn()
	if severity == domain.SeverityCritical {
		ev = n.log.Error()
	}
	if key, ok := ports.DedupKey(ctx); ok {
		ev = ev.Str("dedup_key", key)
	}
	ev.Str("channel", channel).
		Str("severity", string(severity)).
		Int("attachments", len(attachments)).
		Msg(message)
	return nil
}
