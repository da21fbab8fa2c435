// Package notify delivers rupture alerts to chat webhooks, a Redis channel
// or the log.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
)

const idempotencyHeader = "Idempotency-Key"

var severityColor = map[domain.Severity]string{
	domain.SeverityCritical: "#d32f2f",
	domain.SeverityWarning:  "#f9a825",
}

// Webhook posts Slack-compatible payloads to an incoming webhook URL.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, timeout time.Duration) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url must be provided")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}}, nil
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Title  string       `json:"title"`
	Color  string       `json:"color,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

func (w *Webhook) Send(ctx context.Context, channel string, severity domain.Severity, message string, attachments []ports.Attachment) error {
	payload, err := json.Marshal(buildSlackMessage(channel, severity, message, attachments))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key, ok := ports.DedupKey(ctx); ok {
		req.Header.Set(idempotencyHeader, key)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return &domain.PortUnavailableError{Port: "notify", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &domain.PortUnavailableError{
			Port: "notify",
			Err:  fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	return nil
}

func buildSlackMessage(channel string, severity domain.Severity, message string, attachments []ports.Attachment) slackMessage {
	msg := slackMessage{Channel: channel, Text: message}
	for _, a := range attachments {
		keys := make([]string, 0, len(a.Fields))
		for k := range a.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sa := slackAttachment{Title: a.Title, Color: severityColor[severity]}
		for _, k := range keys {
			sa.Fields = append(sa.Fields, slackField{Title: k, Value: a.Fields[k], Short: true})
		}
		msg.Attachments = append(msg.Attachments, sa)
	}
	return msg
}
