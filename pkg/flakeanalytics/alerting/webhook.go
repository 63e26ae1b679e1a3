package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type webhookPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// WebhookNotifier posts alerts as JSON to an arbitrary endpoint, retrying on
// connection errors and server side failures.
type WebhookNotifier struct {
	url    string
	client *retryablehttp.Client
}

func NewWebhookNotifier(url string, retryMax int) *WebhookNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.Logger = leveledLogger{}
	return &WebhookNotifier{url: url, client: client}
}

func (n *WebhookNotifier) Send(ctx context.Context, subject, body string) error {
	raw, err := json.Marshal(webhookPayload{Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("could not marshal webhook payload: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var responseBody string
		if data, err := io.ReadAll(resp.Body); err != nil {
			logrus.WithError(err).Warn("Failed to read response body from webhook.")
		} else {
			responseBody = string(data)
		}
		return fmt.Errorf("got unexpected http %d status code from webhook: %s", resp.StatusCode, responseBody)
	}
	return nil
}

type leveledLogger struct{}

func (leveledLogger) format(s string, i ...interface{}) string {
	builder := strings.Builder{}
	builder.WriteString(s)
	for _, x := range i {
		builder.WriteString(" ")
		builder.WriteString(fmt.Sprintf("%v", x))
	}
	return builder.String()
}

func (l leveledLogger) Error(s string, i ...interface{}) {
	logrus.Error(l.format(s, i...))
}

func (l leveledLogger) Info(s string, i ...interface{}) {
	logrus.Debug(l.format(s, i...))
}

func (l leveledLogger) Debug(s string, i ...interface{}) {
	logrus.Debug(l.format(s, i...))
}

func (l leveledLogger) Warn(s string, i ...interface{}) {
	logrus.Warn(l.format(s, i...))
}

var _ retryablehttp.LeveledLogger = leveledLogger{}
