// Package automation provides the playbook engine: trigger matching,
// step graph execution, and the execution ledger. A playbook is a
// declarative, triggerable graph of response steps walked per matching
// violation.
package automation

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// StepType categorizes playbook steps.
type StepType string

const (
	StepAction       StepType = "action"
	StepNotification StepType = "notification"
	StepDelay        StepType = "delay"
	StepCondition    StepType = "condition"
	StepRemediation  StepType = "remediation"
)

// IsValid checks if the step type is a valid value.
func (s StepType) IsValid() bool {
	switch s {
	case StepAction, StepNotification, StepDelay, StepCondition, StepRemediation:
		return true
	}
	return false
}

// ActionKind is the fixed vocabulary of action steps.
type ActionKind string

const (
	ActionCreateIncident ActionKind = "create_incident"
	ActionUpdateStatus   ActionKind = "update_status"
	ActionAssign         ActionKind = "assign"
	ActionEscalate       ActionKind = "escalate"
)

// IsValid checks if the action kind is a valid value.
func (a ActionKind) IsValid() bool {
	switch a {
	case ActionCreateIncident, ActionUpdateStatus, ActionAssign, ActionEscalate:
		return true
	}
	return false
}

// ActionConfig configures an action step.
type ActionConfig struct {
	Kind     ActionKind            `yaml:"kind" json:"kind"`
	Status   schema.IncidentStatus `yaml:"status,omitempty" json:"status,omitempty"`     // For update_status
	Assignee string                `yaml:"assignee,omitempty" json:"assignee,omitempty"` // For assign
}

// NotificationConfig configures a notification step. The template
// supports literal substitution of {{violation.title}},
// {{violation.description}}, {{violation.severity}}, and
// {{incident.id}}; the incident placeholder renders "N/A" when no
// incident is bound to the run.
type NotificationConfig struct {
	Channel    string   `yaml:"channel" json:"channel"`
	Template   string   `yaml:"template" json:"template"`
	Recipients []string `yaml:"recipients,omitempty" json:"recipients,omitempty"`
}

// DelayConfig configures a delay step.
type DelayConfig struct {
	Duration time.Duration `yaml:"duration" json:"duration"`
}

// ConditionConfig configures a condition step. Supported fields:
// "acknowledged" resolves to whether the bound incident has an
// assignee; "severity" resolves to the violation's severity. Any other
// field never matches.
type ConditionConfig struct {
	Field string `yaml:"field" json:"field"`
	Value any    `yaml:"value" json:"value"`
}

// RemediationConfig configures a remediation step.
type RemediationConfig struct {
	Script     string            `yaml:"script" json:"script"`
	Parameters map[string]string `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Step is one node in a playbook's step graph. OnSuccess and OnFailure
// reference step ids within the same playbook; an empty reference
// terminates the run on that outcome.
type Step struct {
	ID           string              `yaml:"id" json:"id"`
	Name         string              `yaml:"name" json:"name"`
	Type         StepType            `yaml:"type" json:"type"`
	Action       *ActionConfig       `yaml:"action,omitempty" json:"action,omitempty"`
	Notification *NotificationConfig `yaml:"notification,omitempty" json:"notification,omitempty"`
	Delay        *DelayConfig        `yaml:"delay,omitempty" json:"delay,omitempty"`
	Condition    *ConditionConfig    `yaml:"condition,omitempty" json:"condition,omitempty"`
	Remediation  *RemediationConfig  `yaml:"remediation,omitempty" json:"remediation,omitempty"`
	OnSuccess    string              `yaml:"on_success,omitempty" json:"on_success,omitempty"`
	OnFailure    string              `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`
}

// Trigger is the predicate determining whether a playbook applies to a
// violation. All configured predicates are conjunctive; absent
// predicates are vacuously true.
type Trigger struct {
	Type       string             `yaml:"type" json:"type"` // Only "violation" is recognized
	Severities []schema.Severity  `yaml:"severities,omitempty" json:"severities,omitempty"`
	AssetTypes []schema.AssetType `yaml:"asset_types,omitempty" json:"asset_types,omitempty"`
	PolicyID   string             `yaml:"policy_id,omitempty" json:"policy_id,omitempty"`
}

// TriggerViolation is the only trigger type the engine evaluates.
const TriggerViolation = "violation"

// Playbook is static configuration, mutable only via explicit engine
// operations. Execution starts at the first declared step.
type Playbook struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     bool       `yaml:"enabled" json:"enabled"`
	Trigger     Trigger    `yaml:"trigger" json:"trigger"`
	Steps       []Step     `yaml:"steps" json:"steps"`
	LastRun     *time.Time `yaml:"-" json:"last_run,omitempty"`
}

// snapshot returns a copy safe to read after the engine lock is
// released. Steps are immutable once registered, so the slice is
// shared; LastRun gets its own copy because the engine rewrites it.
func (p *Playbook) snapshot() *Playbook {
	cp := *p
	if p.LastRun != nil {
		t := *p.LastRun
		cp.LastRun = &t
	}
	return &cp
}

// Validate validates the playbook configuration.
func (p *Playbook) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("playbook ID is required")
	}
	if p.Name == "" {
		return fmt.Errorf("playbook name is required")
	}
	if p.Trigger.Type != TriggerViolation {
		return fmt.Errorf("unknown trigger type: %s", p.Trigger.Type)
	}
	for _, sev := range p.Trigger.Severities {
		if !sev.IsValid() {
			return fmt.Errorf("invalid trigger severity: %s", sev)
		}
	}
	for _, at := range p.Trigger.AssetTypes {
		if !at.IsValid() {
			return fmt.Errorf("invalid trigger asset type: %s", at)
		}
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("playbook requires at least one step")
	}

	ids := make(map[string]bool, len(p.Steps))
	for i, step := range p.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if ids[step.ID] {
			return fmt.Errorf("duplicate step id: %s", step.ID)
		}
		ids[step.ID] = true
	}
	return nil
}

// Validate validates a single step.
func (s *Step) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("step id is required")
	}
	if !s.Type.IsValid() {
		return fmt.Errorf("unknown step type: %s", s.Type)
	}

	switch s.Type {
	case StepAction:
		if s.Action == nil {
			return fmt.Errorf("action config required for action steps")
		}
		if !s.Action.Kind.IsValid() {
			return fmt.Errorf("unknown action kind: %s", s.Action.Kind)
		}
		if s.Action.Kind == ActionUpdateStatus && !s.Action.Status.IsValid() {
			return fmt.Errorf("update_status requires a valid status")
		}
		if s.Action.Kind == ActionAssign && s.Action.Assignee == "" {
			return fmt.Errorf("assign requires an assignee")
		}
	case StepNotification:
		if s.Notification == nil {
			return fmt.Errorf("notification config required for notification steps")
		}
		if s.Notification.Channel == "" {
			return fmt.Errorf("notification channel is required")
		}
	case StepDelay:
		if s.Delay == nil {
			return fmt.Errorf("delay config required for delay steps")
		}
		if s.Delay.Duration <= 0 {
			return fmt.Errorf("delay duration must be positive")
		}
	case StepCondition:
		if s.Condition == nil {
			return fmt.Errorf("condition config required for condition steps")
		}
		if s.Condition.Field == "" {
			return fmt.Errorf("condition field is required")
		}
	case StepRemediation:
		if s.Remediation == nil {
			return fmt.Errorf("remediation config required for remediation steps")
		}
		if s.Remediation.Script == "" {
			return fmt.Errorf("remediation script is required")
		}
	}
	return nil
}

// ParsePlaybook parses a playbook from YAML bytes.
func ParsePlaybook(data []byte) (*Playbook, error) {
	var p Playbook
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse playbook: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid playbook: %w", err)
	}
	return &p, nil
}

// ParsePlaybooks parses multiple playbooks from YAML bytes.
func ParsePlaybooks(data []byte) ([]*Playbook, error) {
	var playbooks []*Playbook
	if err := yaml.Unmarshal(data, &playbooks); err != nil {
		// Try single playbook format
		p, singleErr := ParsePlaybook(data)
		if singleErr != nil {
			return nil, fmt.Errorf("failed to parse playbooks: %w", err)
		}
		return []*Playbook{p}, nil
	}

	for i, p := range playbooks {
		if p == nil {
			return nil, fmt.Errorf("playbook %d: null entry", i)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("playbook %d: %w", i, err)
		}
	}
	return playbooks, nil
}
