package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PagerDuty/go-pagerduty"
	"github.com/google/go-cmp/cmp"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
)

func TestSlackWebhookNotifier(t *testing.T) {
	var received slack.WebhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode webhook payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := &SlackWebhookNotifier{WebhookURL: server.URL, Channel: "#flakes"}
	if err := notifier.Send(context.Background(), "High flake rate", "rate is 20.00%"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, "#flakes", received.Channel)
	assert.Equal(t, "flake-monitor", received.Username)
	assert.Equal(t, "*High flake rate*\nrate is 20.00%", received.Text)
}

func TestSlackWebhookNotifierFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	notifier := &SlackWebhookNotifier{WebhookURL: server.URL}
	if err := notifier.Send(context.Background(), "s", "b"); err == nil {
		t.Error("expected an error for a rejected webhook")
	}
}

type fakeSlackClient struct {
	channels []string
	err      error
}

func (f *fakeSlackClient) PostMessage(channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.channels = append(f.channels, channelID)
	return channelID, "1", f.err
}

func TestSlackNotifier(t *testing.T) {
	client := &fakeSlackClient{}
	if err := NewSlackNotifier(client, "C123").Send(context.Background(), "s", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"C123"}, client.channels); diff != "" {
		t.Errorf("unexpected channels: %s", diff)
	}

	client.err = errors.New("not_in_channel")
	err := NewSlackNotifier(client, "C123").Send(context.Background(), "s", "b")
	if err == nil || !strings.Contains(err.Error(), "not_in_channel") {
		t.Errorf("expected the slack error to be returned, got %v", err)
	}
}

func TestWebhookNotifier(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		expectedErr bool
	}{
		{name: "accepted", status: http.StatusAccepted},
		{name: "client error", status: http.StatusBadRequest, expectedErr: true},
		{name: "server error", status: http.StatusInternalServerError, expectedErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var payload webhookPayload
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				raw, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("failed to read body: %v", err)
				}
				if err := json.Unmarshal(raw, &payload); err != nil {
					t.Errorf("failed to decode body: %v", err)
				}
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			err := NewWebhookNotifier(server.URL, 0).Send(context.Background(), "subject", "body")
			if tc.expectedErr != (err != nil) {
				t.Fatalf("expected error: %t, got %v", tc.expectedErr, err)
			}
			assert.Equal(t, webhookPayload{Subject: "subject", Body: "body"}, payload)
		})
	}
}

func TestPagerDutyNotifier(t *testing.T) {
	original := manageEvent
	defer func() { manageEvent = original }()

	var events []pagerduty.V2Event
	manageEvent = func(e pagerduty.V2Event) (*pagerduty.V2EventResponse, error) {
		events = append(events, e)
		return &pagerduty.V2EventResponse{Status: "success"}, nil
	}

	notifier := &PagerDutyNotifier{RoutingKey: "key"}
	if err := notifier.Send(context.Background(), "Anomalous spike", "details"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	event := events[0]
	assert.Equal(t, "key", event.RoutingKey)
	assert.Equal(t, "trigger", event.Action)
	assert.Equal(t, "Anomalous spike", event.Payload.Summary)
	assert.Equal(t, "warning", event.Payload.Severity)
	assert.Equal(t, map[string]string{"body": "details"}, event.Payload.Details)

	manageEvent = func(pagerduty.V2Event) (*pagerduty.V2EventResponse, error) {
		return nil, errors.New("invalid routing key")
	}
	if err := notifier.Send(context.Background(), "s", "b"); err == nil {
		t.Error("expected an error")
	}
}

type fakeTransport struct {
	messages []EmailMessage
}

func (f *fakeTransport) Deliver(_ context.Context, message EmailMessage) error {
	f.messages = append(f.messages, message)
	return nil
}

func TestEmailNotifier(t *testing.T) {
	transport := &fakeTransport{}
	notifier := NewEmailNotifier(transport, "qa@example.com", "dev@example.com")
	if err := notifier.Send(context.Background(), "High flake rate", "line one\nline two"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []EmailMessage{{
		To:      []string{"qa@example.com", "dev@example.com"},
		Subject: "High flake rate",
		Body:    "line one\nline two",
	}}
	if diff := cmp.Diff(expected, transport.messages); diff != "" {
		t.Errorf("unexpected messages: %s", diff)
	}
}

func TestRenderEmail(t *testing.T) {
	actual := string(renderEmail("alerts@example.com", EmailMessage{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "High flake rate",
		Body:    "line one\nline two",
	}))
	expected := "From: alerts@example.com\r\n" +
		"To: a@example.com, b@example.com\r\n" +
		"Subject: High flake rate\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n\r\n" +
		"line one\r\nline two\r\n"
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("unexpected email: %s", diff)
	}
}
