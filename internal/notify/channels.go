package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// WebhookChannel posts messages as JSON to an arbitrary HTTP endpoint.
type WebhookChannel struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookChannel creates a new webhook channel.
func NewWebhookChannel(name, url string, headers map[string]string) *WebhookChannel {
	return &WebhookChannel{
		name:    name,
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookChannel) Name() string {
	return w.name
}

func (w *WebhookChannel) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// SlackChannel sends messages to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
}

// NewSlackChannel creates a new Slack channel.
func NewSlackChannel(webhookURL, channel, username string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackChannel) Name() string {
	return "slack"
}

func (s *SlackChannel) Send(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{
		"channel":  s.channel,
		"username": s.username,
		"attachments": []map[string]interface{}{
			{
				"color": severityColor(msg.Severity),
				"title": fmt.Sprintf("[%s] %s", strings.ToUpper(string(msg.Severity)), msg.Subject),
				"text":  msg.Body,
				"fields": []map[string]interface{}{
					{"title": "Severity", "value": string(msg.Severity), "short": true},
					{"title": "Incident", "value": msg.IncidentID, "short": true},
				},
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// PagerDutyChannel triggers PagerDuty events via the Events v2 API.
type PagerDutyChannel struct {
	routingKey string
	endpoint   string
	client     *http.Client
}

// NewPagerDutyChannel creates a new PagerDuty channel.
func NewPagerDutyChannel(routingKey string) *PagerDutyChannel {
	return &PagerDutyChannel{
		routingKey: routingKey,
		endpoint:   "https://events.pagerduty.com/v2/enqueue",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *PagerDutyChannel) Name() string {
	return "pagerduty"
}

func (p *PagerDutyChannel) Send(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{
		"routing_key":  p.routingKey,
		"event_action": "trigger",
		"dedup_key":    msg.IncidentID,
		"payload": map[string]interface{}{
			"summary":  msg.Subject,
			"source":   "compliance-engine",
			"severity": pagerDutySeverity(msg.Severity),
			"custom_details": map[string]interface{}{
				"body":        msg.Body,
				"incident_id": msg.IncidentID,
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pagerduty returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// JiraChannel creates Jira issues via the REST v2 API.
type JiraChannel struct {
	baseURL    string
	projectKey string
	username   string
	apiToken   string
	client     *http.Client
}

// NewJiraChannel creates a new Jira channel.
func NewJiraChannel(baseURL, projectKey, username, apiToken string) *JiraChannel {
	return &JiraChannel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		projectKey: projectKey,
		username:   username,
		apiToken:   apiToken,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (j *JiraChannel) Name() string {
	return "jira"
}

func (j *JiraChannel) Send(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			"project":     map[string]string{"key": j.projectKey},
			"summary":     msg.Subject,
			"description": msg.Body,
			"issuetype":   map[string]string{"name": "Task"},
			"labels":      []string{"compliance", string(msg.Severity)},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", j.baseURL+"/rest/api/2/issue", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(j.username, j.apiToken)

	resp, err := j.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("jira returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// EmailConfig configures email notifications.
type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	From     string
	To       []string
	UseTLS   bool
}

// EmailChannel sends messages via SMTP.
type EmailChannel struct {
	config *EmailConfig
}

// NewEmailChannel creates a new email channel. The port defaults to
// 465 with TLS and 587 without.
func NewEmailChannel(cfg *EmailConfig) *EmailChannel {
	if cfg.SMTPPort == 0 {
		if cfg.UseTLS {
			cfg.SMTPPort = 465
		} else {
			cfg.SMTPPort = 587
		}
	}
	return &EmailChannel{config: cfg}
}

func (e *EmailChannel) Name() string {
	return "email"
}

func (e *EmailChannel) Send(ctx context.Context, msg Message) error {
	to := msg.Recipients
	if len(to) == 0 {
		to = e.config.To
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	var body strings.Builder
	body.WriteString("From: " + e.config.From + "\r\n")
	body.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	body.WriteString("Subject: [" + strings.ToUpper(string(msg.Severity)) + "] " + msg.Subject + "\r\n")
	body.WriteString("\r\n")
	body.WriteString(msg.Body)
	body.WriteString("\r\n")

	addr := fmt.Sprintf("%s:%d", e.config.SMTPHost, e.config.SMTPPort)
	var auth smtp.Auth
	if e.config.Username != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, e.config.From, to, []byte(body.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// LogChannel logs messages (for development and tests).
type LogChannel struct {
	logf func(format string, args ...interface{})
}

// NewLogChannel creates a new log channel.
func NewLogChannel(logf func(format string, args ...interface{})) *LogChannel {
	return &LogChannel{logf: logf}
}

func (l *LogChannel) Name() string {
	return "log"
}

func (l *LogChannel) Send(ctx context.Context, msg Message) error {
	l.logf("NOTIFY [%s] %s - %s (incident=%s)",
		msg.Severity, msg.Subject, msg.Body, msg.IncidentID)
	return nil
}

func severityColor(sev schema.Severity) string {
	switch sev {
	case schema.SeverityCritical:
		return "#FF0000"
	case schema.SeverityHigh:
		return "#FFA500"
	case schema.SeverityMedium:
		return "#FFFF00"
	case schema.SeverityLow:
		return "#00FF00"
	default:
		return "#808080"
	}
}

func pagerDutySeverity(sev schema.Severity) string {
	switch sev {
	case schema.SeverityCritical:
		return "critical"
	case schema.SeverityHigh:
		return "error"
	case schema.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}
