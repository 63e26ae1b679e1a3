package alerting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/spf13/afero"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"

	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/flakeanalyticsapi"
	"github.com/openshift/ci-flake-analytics/pkg/flakeanalytics/weeklyinsights"
)

// Config is the alerting configuration file. Secrets are never stored inline;
// every *File field names a file holding the value.
type Config struct {
	Thresholds      flakeanalyticsapi.ThresholdConfig `json:"thresholds"`
	ZScoreThreshold float64                           `json:"zScoreThreshold,omitempty"`
	AnomalyLimit    int                               `json:"anomalyLimit,omitempty"`
	Channels        ChannelsConfig                    `json:"channels"`
}

type ChannelsConfig struct {
	SlackWebhook *SlackWebhookConfig `json:"slackWebhook,omitempty"`
	Slack        *SlackConfig        `json:"slack,omitempty"`
	Webhook      *WebhookConfig      `json:"webhook,omitempty"`
	PagerDuty    *PagerDutyConfig    `json:"pagerDuty,omitempty"`
	Email        *EmailConfig        `json:"email,omitempty"`
}

type SlackWebhookConfig struct {
	WebhookURLFile string `json:"webhookURLFile"`
	Channel        string `json:"channel,omitempty"`
}

type SlackConfig struct {
	TokenFile string `json:"tokenFile"`
	Channel   string `json:"channel"`
}

type WebhookConfig struct {
	URL      string `json:"url"`
	RetryMax int    `json:"retryMax,omitempty"`
}

type PagerDutyConfig struct {
	RoutingKeyFile string `json:"routingKeyFile"`
	Severity       string `json:"severity,omitempty"`
}

type EmailConfig struct {
	SMTPAddress  string   `json:"smtpAddress"`
	From         string   `json:"from"`
	Username     string   `json:"username,omitempty"`
	PasswordFile string   `json:"passwordFile,omitempty"`
	Recipients   []string `json:"recipients"`
}

const defaultWebhookRetries = 3

// DefaultConfig has the default thresholds and no channels.
func DefaultConfig() *Config {
	return &Config{
		Thresholds:      flakeanalyticsapi.DefaultThresholdConfig(),
		ZScoreThreshold: weeklyinsights.DefaultZScoreThreshold,
		AnomalyLimit:    weeklyinsights.DefaultAnomalyLimit,
	}
}

// LoadConfig reads a YAML config on top of DefaultConfig.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	config := DefaultConfig()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the config %q: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Thresholds.MaxFlakeRate < 0 || c.Thresholds.MaxWowDelta < 0 || c.Thresholds.MaxZScore < 0 {
		errs = append(errs, errors.New("thresholds must not be negative"))
	}
	if c.ZScoreThreshold < 0 {
		errs = append(errs, errors.New("zScoreThreshold must not be negative"))
	}
	if s := c.Channels.SlackWebhook; s != nil && s.WebhookURLFile == "" {
		errs = append(errs, errors.New("channels.slackWebhook.webhookURLFile is required"))
	}
	if s := c.Channels.Slack; s != nil && (s.TokenFile == "" || s.Channel == "") {
		errs = append(errs, errors.New("channels.slack requires tokenFile and channel"))
	}
	if w := c.Channels.Webhook; w != nil && w.URL == "" {
		errs = append(errs, errors.New("channels.webhook.url is required"))
	}
	if p := c.Channels.PagerDuty; p != nil && p.RoutingKeyFile == "" {
		errs = append(errs, errors.New("channels.pagerDuty.routingKeyFile is required"))
	}
	if e := c.Channels.Email; e != nil && (e.SMTPAddress == "" || e.From == "" || len(e.Recipients) == 0) {
		errs = append(errs, errors.New("channels.email requires smtpAddress, from and recipients"))
	}
	return utilerrors.NewAggregate(errs)
}

func readSecret(fs afero.Fs, path string) (string, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret %q: %w", path, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// NewEngineFromConfig builds an Engine with every configured channel registered
// in a fixed order: slack webhook, slack, webhook, pagerduty, email.
func NewEngineFromConfig(fs afero.Fs, config *Config, logger logrus.FieldLogger) (*Engine, error) {
	engine := NewEngine(config.Thresholds, logger).WithAnomalyLimit(config.AnomalyLimit)
	channels := config.Channels

	if channels.SlackWebhook != nil {
		url, err := readSecret(fs, channels.SlackWebhook.WebhookURLFile)
		if err != nil {
			return nil, err
		}
		engine.Register("slack-webhook", &SlackWebhookNotifier{WebhookURL: url, Channel: channels.SlackWebhook.Channel})
	}
	if channels.Slack != nil {
		token, err := readSecret(fs, channels.Slack.TokenFile)
		if err != nil {
			return nil, err
		}
		engine.Register("slack", NewSlackNotifier(slack.New(token), channels.Slack.Channel))
	}
	if channels.Webhook != nil {
		retries := channels.Webhook.RetryMax
		if retries == 0 {
			retries = defaultWebhookRetries
		}
		engine.Register("webhook", NewWebhookNotifier(channels.Webhook.URL, retries))
	}
	if channels.PagerDuty != nil {
		key, err := readSecret(fs, channels.PagerDuty.RoutingKeyFile)
		if err != nil {
			return nil, err
		}
		engine.Register("pagerduty", &PagerDutyNotifier{RoutingKey: key, Severity: channels.PagerDuty.Severity})
	}
	if channels.Email != nil {
		transport := &SMTPTransport{Address: channels.Email.SMTPAddress, From: channels.Email.From, Username: channels.Email.Username}
		if channels.Email.PasswordFile != "" {
			password, err := readSecret(fs, channels.Email.PasswordFile)
			if err != nil {
				return nil, err
			}
			transport.Password = password
		}
		engine.Register("email", NewEmailNotifier(transport, channels.Email.Recipients...))
	}
	return engine, nil
}
