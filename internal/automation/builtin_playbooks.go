package automation

import (
	"time"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// BuiltinPlaybooks returns the built-in response playbooks.
func BuiltinPlaybooks() []*Playbook {
	return []*Playbook{
		CriticalViolationPlaybook(),
		CertificateExpiryPlaybook(),
		MaliciousIPPlaybook(),
	}
}

// CriticalViolationPlaybook creates an incident for any critical
// violation, pages on-call, and escalates if nobody acknowledges.
func CriticalViolationPlaybook() *Playbook {
	return &Playbook{
		ID:          "builtin-critical-response",
		Name:        "Critical Violation Response",
		Description: "Incident creation and paging for critical violations",
		Enabled:     true,
		Trigger: Trigger{
			Type:       TriggerViolation,
			Severities: []schema.Severity{schema.SeverityCritical},
		},
		Steps: []Step{
			{
				ID:   "create-incident",
				Name: "Create Incident",
				Type: StepAction,
				Action: &ActionConfig{
					Kind: ActionCreateIncident,
				},
				OnSuccess: "page-oncall",
			},
			{
				ID:   "page-oncall",
				Name: "Page On-Call",
				Type: StepNotification,
				Notification: &NotificationConfig{
					Channel:  "pagerduty",
					Template: "Critical violation: {{violation.title}} ({{violation.severity}}) incident {{incident.id}}",
				},
				OnSuccess: "wait-ack",
			},
			{
				ID:   "wait-ack",
				Name: "Wait For Acknowledgement",
				Type: StepDelay,
				Delay: &DelayConfig{
					Duration: 15 * time.Minute,
				},
				OnSuccess: "check-ack",
			},
			{
				ID:   "check-ack",
				Name: "Check Acknowledged",
				Type: StepCondition,
				Condition: &ConditionConfig{
					Field: "acknowledged",
					Value: true,
				},
				OnFailure: "escalate",
			},
			{
				ID:   "escalate",
				Name: "Escalate Incident",
				Type: StepAction,
				Action: &ActionConfig{
					Kind: ActionEscalate,
				},
				OnSuccess: "notify-escalation",
			},
			{
				ID:   "notify-escalation",
				Name: "Notify Escalation",
				Type: StepNotification,
				Notification: &NotificationConfig{
					Channel:  "slack",
					Template: "Escalated unacknowledged incident {{incident.id}}: {{violation.title}}",
				},
			},
		},
	}
}

// CertificateExpiryPlaybook notifies and requests automated renewal
// for certificate violations.
func CertificateExpiryPlaybook() *Playbook {
	return &Playbook{
		ID:          "builtin-cert-expiry-response",
		Name:        "Certificate Expiry Response",
		Description: "Notification and renewal handoff for expiring certificates",
		Enabled:     true,
		Trigger: Trigger{
			Type:       TriggerViolation,
			AssetTypes: []schema.AssetType{schema.AssetCertificate},
			Severities: []schema.Severity{schema.SeverityCritical, schema.SeverityHigh},
		},
		Steps: []Step{
			{
				ID:   "create-incident",
				Name: "Create Incident",
				Type: StepAction,
				Action: &ActionConfig{
					Kind: ActionCreateIncident,
				},
				OnSuccess: "notify-platform",
			},
			{
				ID:   "notify-platform",
				Name: "Notify Platform Team",
				Type: StepNotification,
				Notification: &NotificationConfig{
					Channel:  "slack",
					Template: "{{violation.title}}: {{violation.description}} (incident {{incident.id}})",
				},
				OnSuccess: "request-renewal",
			},
			{
				ID:   "request-renewal",
				Name: "Request Certificate Renewal",
				Type: StepRemediation,
				Remediation: &RemediationConfig{
					Script: "renew-certificate",
					Parameters: map[string]string{
						"issuer": "acme",
					},
				},
				OnSuccess: "mark-remediating",
			},
			{
				ID:   "mark-remediating",
				Name: "Mark Investigating",
				Type: StepAction,
				Action: &ActionConfig{
					Kind:   ActionUpdateStatus,
					Status: schema.IncidentInvestigating,
				},
			},
		},
	}
}

// MaliciousIPPlaybook creates and assigns an incident for malicious IP
// violations.
func MaliciousIPPlaybook() *Playbook {
	return &Playbook{
		ID:          "builtin-malicious-ip-response",
		Name:        "Malicious IP Response",
		Description: "Incident creation and assignment for malicious IP detections",
		Enabled:     true,
		Trigger: Trigger{
			Type:       TriggerViolation,
			AssetTypes: []schema.AssetType{schema.AssetIP},
			Severities: []schema.Severity{schema.SeverityCritical, schema.SeverityHigh},
		},
		Steps: []Step{
			{
				ID:   "create-incident",
				Name: "Create Incident",
				Type: StepAction,
				Action: &ActionConfig{
					Kind: ActionCreateIncident,
				},
				OnSuccess: "assign-secops",
			},
			{
				ID:   "assign-secops",
				Name: "Assign Security Operations",
				Type: StepAction,
				Action: &ActionConfig{
					Kind:     ActionAssign,
					Assignee: "secops",
				},
				OnSuccess: "notify-secops",
			},
			{
				ID:   "notify-secops",
				Name: "Notify Security Operations",
				Type: StepNotification,
				Notification: &NotificationConfig{
					Channel:    "email",
					Template:   "{{violation.title}} severity {{violation.severity}}, tracked as {{incident.id}}",
					Recipients: []string{"secops@example.com"},
				},
			},
		},
	}
}
