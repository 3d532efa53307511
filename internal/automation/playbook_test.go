package automation

import (
	"strings"
	"testing"
	"time"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

func minimalPlaybook() *Playbook {
	return &Playbook{
		ID:      "pb-1",
		Name:    "Test Playbook",
		Enabled: true,
		Trigger: Trigger{Type: TriggerViolation},
		Steps: []Step{
			{
				ID:   "notify",
				Type: StepNotification,
				Notification: &NotificationConfig{
					Channel:  "slack",
					Template: "{{violation.title}}",
				},
			},
		},
	}
}

func TestPlaybookValidate(t *testing.T) {
	if err := minimalPlaybook().Validate(); err != nil {
		t.Fatalf("expected valid playbook, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Playbook)
		wantErr string
	}{
		{"missing id", func(p *Playbook) { p.ID = "" }, "ID is required"},
		{"missing name", func(p *Playbook) { p.Name = "" }, "name is required"},
		{"unknown trigger type", func(p *Playbook) { p.Trigger.Type = "schedule" }, "unknown trigger type"},
		{"invalid trigger severity", func(p *Playbook) { p.Trigger.Severities = []schema.Severity{"extreme"} }, "invalid trigger severity"},
		{"invalid trigger asset type", func(p *Playbook) { p.Trigger.AssetTypes = []schema.AssetType{"mainframe"} }, "invalid trigger asset type"},
		{"no steps", func(p *Playbook) { p.Steps = nil }, "at least one step"},
		{
			"duplicate step ids",
			func(p *Playbook) { p.Steps = append(p.Steps, p.Steps[0]) },
			"duplicate step id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := minimalPlaybook()
			tt.mutate(p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestStepValidate(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr string
	}{
		{"missing id", Step{Type: StepDelay, Delay: &DelayConfig{Duration: time.Second}}, "step id is required"},
		{"unknown type", Step{ID: "x", Type: "loop"}, "unknown step type"},
		{"action without config", Step{ID: "x", Type: StepAction}, "action config required"},
		{
			"unknown action kind",
			Step{ID: "x", Type: StepAction, Action: &ActionConfig{Kind: "delete_everything"}},
			"unknown action kind",
		},
		{
			"update_status without status",
			Step{ID: "x", Type: StepAction, Action: &ActionConfig{Kind: ActionUpdateStatus}},
			"valid status",
		},
		{
			"assign without assignee",
			Step{ID: "x", Type: StepAction, Action: &ActionConfig{Kind: ActionAssign}},
			"requires an assignee",
		},
		{"notification without config", Step{ID: "x", Type: StepNotification}, "notification config required"},
		{
			"notification without channel",
			Step{ID: "x", Type: StepNotification, Notification: &NotificationConfig{Template: "t"}},
			"channel is required",
		},
		{"delay without config", Step{ID: "x", Type: StepDelay}, "delay config required"},
		{
			"non-positive delay",
			Step{ID: "x", Type: StepDelay, Delay: &DelayConfig{Duration: 0}},
			"must be positive",
		},
		{"condition without config", Step{ID: "x", Type: StepCondition}, "condition config required"},
		{
			"condition without field",
			Step{ID: "x", Type: StepCondition, Condition: &ConditionConfig{Value: true}},
			"field is required",
		},
		{"remediation without config", Step{ID: "x", Type: StepRemediation}, "remediation config required"},
		{
			"remediation without script",
			Step{ID: "x", Type: StepRemediation, Remediation: &RemediationConfig{}},
			"script is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParsePlaybooks(t *testing.T) {
	t.Run("list format", func(t *testing.T) {
		data := []byte(`
- id: pb-notify
  name: Notify Only
  enabled: true
  trigger:
    type: violation
    severities: [high, critical]
  steps:
    - id: notify
      type: notification
      notification:
        channel: slack
        template: "{{violation.title}}"
- id: pb-remediate
  name: Remediate
  enabled: false
  trigger:
    type: violation
    asset_types: [certificate]
  steps:
    - id: fix
      type: remediation
      remediation:
        script: renew-certificate
`)
		playbooks, err := ParsePlaybooks(data)
		if err != nil {
			t.Fatalf("ParsePlaybooks failed: %v", err)
		}
		if len(playbooks) != 2 {
			t.Fatalf("expected 2 playbooks, got %d", len(playbooks))
		}
		if playbooks[0].ID != "pb-notify" || playbooks[1].ID != "pb-remediate" {
			t.Errorf("unexpected ids: %s, %s", playbooks[0].ID, playbooks[1].ID)
		}
		if playbooks[0].Trigger.Severities[1] != schema.SeverityCritical {
			t.Errorf("trigger severities not parsed: %v", playbooks[0].Trigger.Severities)
		}
	})

	t.Run("single playbook format", func(t *testing.T) {
		data := []byte(`
id: pb-single
name: Single
enabled: true
trigger:
  type: violation
steps:
  - id: wait
    type: delay
    delay:
      duration: 5m
`)
		playbooks, err := ParsePlaybooks(data)
		if err != nil {
			t.Fatalf("ParsePlaybooks failed: %v", err)
		}
		if len(playbooks) != 1 {
			t.Fatalf("expected 1 playbook, got %d", len(playbooks))
		}
		if playbooks[0].Steps[0].Delay.Duration != 5*time.Minute {
			t.Errorf("duration = %v", playbooks[0].Steps[0].Delay.Duration)
		}
	})

	t.Run("invalid playbook rejected", func(t *testing.T) {
		data := []byte(`
- id: pb-bad
  name: Bad
  trigger:
    type: schedule
  steps:
    - id: x
      type: delay
      delay:
        duration: 1m
`)
		if _, err := ParsePlaybooks(data); err == nil {
			t.Error("expected error for unknown trigger type")
		}
	})

	t.Run("null list entry rejected", func(t *testing.T) {
		data := []byte(`
- id: pb-ok
  name: OK
  enabled: true
  trigger:
    type: violation
  steps:
    - id: wait
      type: delay
      delay:
        duration: 1m
- ~
`)
		if _, err := ParsePlaybooks(data); err == nil {
			t.Error("expected error for null playbook entry")
		}
	})
}

func TestBuiltinPlaybooksValid(t *testing.T) {
	playbooks := BuiltinPlaybooks()
	if len(playbooks) == 0 {
		t.Fatal("expected built-in playbooks")
	}

	for _, p := range playbooks {
		if err := p.Validate(); err != nil {
			t.Errorf("built-in playbook %s invalid: %v", p.ID, err)
		}
		// Every step transition must reference a declared step.
		ids := make(map[string]bool)
		for _, s := range p.Steps {
			ids[s.ID] = true
		}
		for _, s := range p.Steps {
			if s.OnSuccess != "" && !ids[s.OnSuccess] {
				t.Errorf("%s step %s: dangling on_success %q", p.ID, s.ID, s.OnSuccess)
			}
			if s.OnFailure != "" && !ids[s.OnFailure] {
				t.Errorf("%s step %s: dangling on_failure %q", p.ID, s.ID, s.OnFailure)
			}
		}
	}
}
