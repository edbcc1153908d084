package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/customerpulse/pulse/internal/config"
	"github.com/customerpulse/pulse/internal/models"
)

const maxDigestAlerts = 10

// Service sends the daily digest to Teams and email, whichever are configured
type Service struct {
	config *config.Config
	client *resty.Client
	dial   func(m *gomail.Message) error
}

var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
	s.dial = func(m *gomail.Message) error {
		d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		return d.DialAndSend(m)
	}
	return s
}

// Enabled reports whether any channel is configured
func (s *Service) Enabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.NotificationEmail != ""
}

// SendReport delivers the run digest. Runs that created no alerts and had no
// failures are not sent.
func (s *Service) SendReport(ctx context.Context, report *models.RunReport) error {
	if len(report.Alerts) == 0 && report.AccountsFailed == 0 {
		logrus.Debug("Nothing to report for daily run, skipping digest")
		return nil
	}

	var errs []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, report); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Sent daily digest to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Sent daily digest via email")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Service) sendToTeams(ctx context.Context, report *models.RunReport) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildTeamsMessage(report)).
		Post(s.config.TeamsWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func buildTeamsMessage(report *models.RunReport) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "0078D4",
		Title:      fmt.Sprintf("Customer Health Daily Run - %s", report.StartedAt.Format("2006-01-02")),
		Text:       fmt.Sprintf("%d accounts processed, %d new alerts", report.AccountsProcessed, len(report.Alerts)),
	}
	if report.AccountsFailed > 0 {
		message.ThemeColor = "D13438"
	}

	facts := []TeamsFact{
		{Name: "Accounts Processed", Value: fmt.Sprintf("%d", report.AccountsProcessed)},
		{Name: "Accounts Failed", Value: fmt.Sprintf("%d", report.AccountsFailed)},
		{Name: "Duration", Value: report.Duration},
		{Name: "Trigger", Value: report.Trigger},
	}
	for _, category := range sortedCategories(report.AlertsCreated) {
		facts = append(facts, TeamsFact{
			Name:  categoryLabel(category),
			Value: fmt.Sprintf("%d", report.AlertsCreated[category]),
		})
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.Alerts) > 0 {
		var lines []string
		for i, alert := range report.Alerts {
			if i == maxDigestAlerts {
				lines = append(lines, fmt.Sprintf("...and %d more", len(report.Alerts)-maxDigestAlerts))
				break
			}
			lines = append(lines, fmt.Sprintf("**%s** - %s", alert.Title, alert.Message))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "New Alerts",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if len(report.FailedAccounts) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Failed Accounts",
			ActivityText:  strings.Join(report.FailedAccounts, ", "),
		})
	}

	return message
}

func (s *Service) sendEmail(report *models.RunReport) error {
	subject := fmt.Sprintf("Customer Health Daily Run - %s (%d new alerts)",
		report.StartedAt.Format("2006-01-02"), len(report.Alerts))

	htmlBody, err := buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", buildEmailText(report))
	m.AddAlternative("text/html", htmlBody)

	if err := s.dial(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Customer Health Daily Run</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #0078d4; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .alert { border-left: 4px solid #605e5c; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .error { border-left-color: #d13438; }
        .warning { border-left-color: #ffaa44; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Customer Health Daily Run</h1>
        <p>Started {{.StartedAt.Format "January 2, 2006 at 3:04 PM MST"}} ({{.Trigger}})</p>
    </div>

    <div class="summary">
        <p><strong>Accounts Processed:</strong> {{.AccountsProcessed}}</p>
        <p><strong>Accounts Failed:</strong> {{.AccountsFailed}}</p>
        {{range $category, $count := .AlertsCreated}}
            <p><strong>{{label $category}}:</strong> {{$count}}</p>
        {{end}}
    </div>

    {{if .Alerts}}
    <h2>New Alerts</h2>
    {{range $index, $alert := .Alerts}}
        {{if lt $index 10}}
        <div class="alert {{$alert.Type}}">
            <strong>{{$alert.Title}}</strong>
            <p>{{$alert.Message}}</p>
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This digest was generated automatically by the daily health job.</small></p>
</body>
</html>
`

func buildEmailHTML(report *models.RunReport) (string, error) {
	t, err := template.New("email").Funcs(template.FuncMap{"label": categoryLabel}).Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildEmailText(report *models.RunReport) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Customer Health Daily Run - %s\n", report.StartedAt.Format("2006-01-02")))
	text.WriteString(fmt.Sprintf("Trigger: %s | Duration: %s\n\n", report.Trigger, report.Duration))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Accounts Processed: %d\n", report.AccountsProcessed))
	text.WriteString(fmt.Sprintf("Accounts Failed: %d\n", report.AccountsFailed))
	for _, category := range sortedCategories(report.AlertsCreated) {
		text.WriteString(fmt.Sprintf("%s: %d\n", categoryLabel(category), report.AlertsCreated[category]))
	}

	if len(report.Alerts) > 0 {
		text.WriteString("\nNEW ALERTS\n")
		text.WriteString("==========\n")
		for i, alert := range report.Alerts {
			if i == maxDigestAlerts {
				text.WriteString(fmt.Sprintf("\n...and %d more\n", len(report.Alerts)-maxDigestAlerts))
				break
			}
			text.WriteString(fmt.Sprintf("\n%d. %s\n   %s\n", i+1, alert.Title, alert.Message))
		}
	}

	if len(report.FailedAccounts) > 0 {
		text.WriteString("\nFAILED ACCOUNTS\n")
		text.WriteString("===============\n")
		text.WriteString(strings.Join(report.FailedAccounts, "\n"))
		text.WriteString("\n")
	}

	text.WriteString("\n---\nThis digest was generated automatically by the daily health job.\n")
	return text.String()
}

func categoryLabel(category string) string {
	switch category {
	case models.CategoryHealthRisk:
		return "Health Risk Alerts"
	case models.CategoryRenewalDue:
		return "Renewal Alerts"
	case models.CategoryATOExpiring:
		return "ATO Expiry Alerts"
	default:
		return category
	}
}

func sortedCategories(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
