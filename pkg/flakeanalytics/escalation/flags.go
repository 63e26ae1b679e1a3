package escalation

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"k8s.io/utils/clock"
)

const defaultJiraProject = "FLAKE"

// JiraFlags configure ticket filing. Jira is optional: leaving --jira-endpoint
// empty disables it.
type JiraFlags struct {
	Endpoint     string
	Username     string
	PasswordFile string
	ProjectKey   string
	SLADays      int
}

func NewJiraFlags() *JiraFlags {
	return &JiraFlags{
		ProjectKey: defaultJiraProject,
		SLADays:    DefaultSLADays,
	}
}

func (f *JiraFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Endpoint, "jira-endpoint", f.Endpoint, "Jira server, like https://issues.example.com")
	fs.StringVar(&f.Username, "jira-username", f.Username, "Jira user filing tickets")
	fs.StringVar(&f.PasswordFile, "jira-password-file", f.PasswordFile, "file holding the password or API token of --jira-username")
	fs.StringVar(&f.ProjectKey, "jira-project", f.ProjectKey, "Jira project tickets are filed in")
	fs.IntVar(&f.SLADays, "sla-days", f.SLADays, "days a root-cause group may stay unresolved before a ticket is filed")
}

func (f *JiraFlags) Configured() bool {
	return len(f.Endpoint) > 0
}

func (f *JiraFlags) Validate() error {
	if f.SLADays < 0 {
		return fmt.Errorf("--sla-days must not be negative")
	}
	if !f.Configured() {
		return nil
	}
	if len(f.Username) == 0 || len(f.PasswordFile) == 0 {
		return fmt.Errorf("--jira-endpoint requires --jira-username and --jira-password-file")
	}
	if len(f.ProjectKey) == 0 {
		return fmt.Errorf("--jira-project must not be empty")
	}
	return nil
}

// ToEscalator returns nil when Jira is not configured.
func (f *JiraFlags) ToEscalator(clock clock.PassiveClock, logger *logrus.Entry) (*Escalator, error) {
	if !f.Configured() {
		return nil, nil
	}
	raw, err := os.ReadFile(f.PasswordFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read --jira-password-file: %w", err)
	}
	filer, err := NewIssueFiler(f.Endpoint, f.Username, strings.TrimSpace(string(raw)), f.ProjectKey)
	if err != nil {
		return nil, err
	}
	return NewEscalator(filer, clock, f.SLADays, logger), nil
}
