package alerting

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

const slackUsername = "flake-monitor"

func slackText(subject, body string) string {
	return fmt.Sprintf("*%s*\n%s", subject, body)
}

// SlackWebhookNotifier posts alerts to a Slack incoming webhook.
type SlackWebhookNotifier struct {
	WebhookURL string
	Channel    string
}

func (n *SlackWebhookNotifier) Send(ctx context.Context, subject, body string) error {
	msg := &slack.WebhookMessage{
		Channel:  n.Channel,
		Username: slackUsername,
		Text:     slackText(subject, body),
	}
	if err := slack.PostWebhookContext(ctx, n.WebhookURL, msg); err != nil {
		return fmt.Errorf("failed to post to slack webhook: %w", err)
	}
	return nil
}

type slackClient interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts alerts to a channel with a bot token.
type SlackNotifier struct {
	client  slackClient
	channel string
}

func NewSlackNotifier(client slackClient, channel string) *SlackNotifier {
	return &SlackNotifier{client: client, channel: channel}
}

func (n *SlackNotifier) Send(_ context.Context, subject, body string) error {
	if _, _, err := n.client.PostMessage(n.channel, slack.MsgOptionText(slackText(subject, body), false), slack.MsgOptionUsername(slackUsername)); err != nil {
		return fmt.Errorf("failed to post message to channel %s: %w", n.channel, err)
	}
	return nil
}
