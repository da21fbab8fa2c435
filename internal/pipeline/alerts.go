package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pipeline/replenishment"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
)

var alertSeverities = []domain.Severity{domain.SeverityCritical, domain.SeverityWarning}

// dispatchAlerts sends one grouped message per severity. A failed severity
// is recorded and does not stop the other one.
func (c *Coordinator) dispatchAlerts(ctx context.Context, rc *runContext, items []domain.AtRiskItem) {
	if c.deps.Notifier == nil {
		return
	}
	grouped := make(map[domain.Severity][]domain.AtRiskItem, 2)
	for _, it := range items {
		if it.Alerting() {
			grouped[it.Severity] = append(grouped[it.Severity], it)
		}
	}
	for _, severity := range alertSeverities {
		group := grouped[severity]
		if len(group) == 0 {
			continue
		}
		if err := c.sendAlert(ctx, rc, severity, group); err != nil {
			rc.recordError("notify", "notification", err)
		}
	}
}

// sendAlert delivers a grouped alert at least once, retrying with linear
// backoff. Once delivered for (runID, severity) it is never sent again.
func (c *Coordinator) sendAlert(ctx context.Context, rc *runContext, severity domain.Severity, items []domain.AtRiskItem) error {
	key := alertKey{runID: rc.record.RunID, severity: severity}
	if rc.sent[key] {
		rc.log.Debug().Str("severity", string(severity)).Msg("alert already sent, skipping")
		return nil
	}

	message := alertMessage(rc.record.RunID, severity, items, c.settings.Thresholds)
	attachments := alertAttachments(items)
	sendCtx := ports.WithDedupKey(ctx, rc.record.RunID+":"+string(severity))

	var err error
	for attempt := 1; attempt <= c.settings.AlertMaxAttempts; attempt++ {
		err = c.deps.Notifier.Send(sendCtx, c.settings.AlertChannel, severity, message, attachments)
		if err == nil {
			rc.sent[key] = true
			c.deps.Metrics.alertSent(severity)
			rc.log.Info().Str("severity", string(severity)).Int("items", len(items)).Int("attempt", attempt).Msg("alert sent")
			return nil
		}
		rc.log.Warn().Err(err).Str("severity", string(severity)).Int("attempt", attempt).Msg("alert send failed")
		if attempt < c.settings.AlertMaxAttempts {
			if werr := sleepCtx(ctx, time.Duration(attempt)*c.settings.AlertBackoff); werr != nil {
				break
			}
		}
	}
	return unavailable("notification", err)
}

func alertMessage(runID string, severity domain.Severity, items []domain.AtRiskItem, t replenishment.RiskThresholds) string {
	window := t.WarningDays
	if severity == domain.SeverityCritical {
		window = t.CriticalDays
	}
	return fmt.Sprintf("[%s] %d SKU(s) projected to stock out within %s days (run %s)",
		severity, len(items), strconv.FormatFloat(window, 'f', -1, 64), runID)
}

func alertAttachments(items []domain.AtRiskItem) []ports.Attachment {
	out := make([]ports.Attachment, 0, len(items))
	for _, it := range items {
		days := "n/a"
		if it.DaysUntilRupture != nil {
			days = strconv.FormatFloat(*it.DaysUntilRupture, 'f', 1, 64)
		}
		out = append(out, ports.Attachment{
			Title: string(it.SKU),
			Fields: map[string]string{
				"quantity_on_hand":   strconv.FormatFloat(it.QuantityOnHand, 'f', -1, 64),
				"safety_stock":       strconv.FormatFloat(it.SafetyStock, 'f', 2, 64),
				"days_until_rupture": days,
			},
		})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
