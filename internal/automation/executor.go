package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yksanjo/ai-compliance-system/internal/incident"
	"github.com/yksanjo/ai-compliance-system/internal/notify"
	"github.com/yksanjo/ai-compliance-system/internal/remediation"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// UnboundIncident is rendered for the incident id placeholder when a
// notification step runs before any incident is bound.
const UnboundIncident = "N/A"

// maxSteps caps a single run so a cyclic step graph cannot spin forever.
const maxSteps = 256

// Executor walks a playbook's step graph for one violation, threading
// a bound incident through the run. All incident mutation routes
// through the lifecycle manager.
type Executor struct {
	incidents *incident.Manager
	notifier  notify.Notifier
	runner    remediation.Runner
	logger    *slog.Logger
}

// NewExecutor creates a step executor.
func NewExecutor(incidents *incident.Manager, notifier notify.Notifier, runner remediation.Runner, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		incidents: incidents,
		notifier:  notifier,
		runner:    runner,
		logger:    logger,
	}
}

// run tracks the mutable state of a single playbook execution.
type run struct {
	playbook   *Playbook
	violation  *schema.Violation
	incidentID uuid.UUID
	bound      bool
	steps      map[string]*Step
}

// Execute walks the step graph from the first declared step until a
// terminal transition. It returns the id of the incident bound during
// the run, if any. An error means the run itself faulted (e.g. the
// context was cancelled mid-delay); handler precondition failures are
// not errors and route through on_failure transitions instead.
func (ex *Executor) Execute(ctx context.Context, p *Playbook, v *schema.Violation) (uuid.UUID, bool, error) {
	r := &run{
		playbook:  p,
		violation: v,
		steps:     make(map[string]*Step, len(p.Steps)),
	}
	for i := range p.Steps {
		r.steps[p.Steps[i].ID] = &p.Steps[i]
	}

	current := &p.Steps[0]
	for walked := 0; current != nil; walked++ {
		if walked >= maxSteps {
			return r.incidentID, r.bound, fmt.Errorf("step limit exceeded in playbook %s", p.ID)
		}

		ok, err := ex.executeStep(ctx, r, current)
		if err != nil {
			return r.incidentID, r.bound, err
		}

		next := current.OnSuccess
		if !ok {
			next = current.OnFailure
		}
		if next == "" {
			break
		}

		// An unresolved step reference terminates the run rather
		// than erroring.
		step, found := r.steps[next]
		if !found {
			ex.logger.Warn("step reference not found, terminating run",
				"playbook", p.ID,
				"step", current.ID,
				"next", next)
			break
		}
		current = step
	}

	return r.incidentID, r.bound, nil
}

func (ex *Executor) executeStep(ctx context.Context, r *run, step *Step) (bool, error) {
	switch step.Type {
	case StepAction:
		return ex.executeAction(ctx, r, step.Action)
	case StepNotification:
		return ex.executeNotification(ctx, r, step.Notification)
	case StepDelay:
		return ex.executeDelay(ctx, r, step.Delay)
	case StepCondition:
		return ex.executeCondition(r, step.Condition), nil
	case StepRemediation:
		return ex.executeRemediation(ctx, r, step.Remediation)
	default:
		// Unknown step types succeed without side effects so a
		// playbook authored for a newer engine degrades to a no-op
		// instead of stalling the response.
		ex.logger.Warn("unknown step type, skipping",
			"playbook", r.playbook.ID,
			"step", step.ID,
			"type", step.Type)
		return true, nil
	}
}

func (ex *Executor) executeAction(ctx context.Context, r *run, cfg *ActionConfig) (bool, error) {
	switch cfg.Kind {
	case ActionCreateIncident:
		// Always creates a new incident. A second create_incident in
		// the same run rebinds the run's incident reference; the
		// earlier incident remains owned by the lifecycle manager.
		inc := ex.incidents.CreateFromViolation(r.violation)
		r.incidentID = inc.ID
		r.bound = true
		return true, nil

	case ActionUpdateStatus:
		if !r.bound {
			return false, nil
		}
		status := cfg.Status
		if _, err := ex.incidents.UpdateIncident(r.incidentID, incident.Update{Status: &status}); err != nil {
			return false, nil
		}
		if err := ex.incidents.AddEvent(r.incidentID, schema.EventStatusChange,
			"Status set to "+string(status)+" by playbook "+r.playbook.ID, "automation", nil); err != nil {
			return false, nil
		}
		return true, nil

	case ActionAssign:
		if !r.bound {
			return false, nil
		}
		assignee := cfg.Assignee
		if _, err := ex.incidents.UpdateIncident(r.incidentID, incident.Update{Assignee: &assignee}); err != nil {
			return false, nil
		}
		if err := ex.incidents.AddEvent(r.incidentID, schema.EventAssignment,
			"Assigned to "+assignee, "automation", nil); err != nil {
			return false, nil
		}
		return true, nil

	case ActionEscalate:
		if !r.bound {
			return false, nil
		}
		if err := ex.incidents.Escalate(r.incidentID, "automation"); err != nil {
			return false, nil
		}
		return true, nil

	default:
		ex.logger.Warn("unknown action kind, skipping",
			"playbook", r.playbook.ID,
			"kind", cfg.Kind)
		return true, nil
	}
}

func (ex *Executor) executeNotification(ctx context.Context, r *run, cfg *NotificationConfig) (bool, error) {
	incidentID := UnboundIncident
	if r.bound {
		incidentID = r.incidentID.String()
	}

	body := RenderTemplate(cfg.Template, r.violation, incidentID)

	msg := notify.Message{
		Channel:    cfg.Channel,
		Subject:    r.violation.Title,
		Body:       body,
		Severity:   r.violation.Severity,
		Recipients: cfg.Recipients,
		IncidentID: incidentID,
	}

	// Fire-and-forget: the step succeeds once the message is
	// constructed, whatever the notifier's own outcome.
	if err := ex.notifier.Dispatch(ctx, msg); err != nil {
		ex.logger.Warn("notification dispatch failed",
			"playbook", r.playbook.ID,
			"channel", cfg.Channel,
			"error", err)
	}
	return true, nil
}

func (ex *Executor) executeDelay(ctx context.Context, r *run, cfg *DelayConfig) (bool, error) {
	// Suspends only this run. Cancellation of the surrounding scan
	// aborts the wait.
	timer := time.NewTimer(cfg.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("delay interrupted: %w", ctx.Err())
	case <-timer.C:
		return true, nil
	}
}

func (ex *Executor) executeCondition(r *run, cfg *ConditionConfig) bool {
	var resolved any
	switch cfg.Field {
	case "acknowledged":
		acknowledged := false
		if r.bound {
			if inc, err := ex.incidents.Get(r.incidentID); err == nil {
				acknowledged = inc.Assignee != ""
			}
		}
		resolved = acknowledged
	case "severity":
		resolved = string(r.violation.Severity)
	default:
		// Undefined fields never match.
		return false
	}

	// Exact equality, no type coercion. YAML decodes severity values
	// as strings and acknowledged values as bools, matching the
	// resolved types above.
	return resolved == cfg.Value
}

func (ex *Executor) executeRemediation(ctx context.Context, r *run, cfg *RemediationConfig) (bool, error) {
	req := remediation.Request{
		Script:      cfg.Script,
		Parameters:  cfg.Parameters,
		ViolationID: r.violation.ID.String(),
		RequestedAt: time.Now().UTC(),
	}
	if r.bound {
		req.IncidentID = r.incidentID.String()
	}

	// The engine records the handoff and reports success; execution
	// and its result belong to the external runner.
	if err := ex.runner.Run(ctx, req); err != nil {
		ex.logger.Warn("remediation runner rejected request",
			"playbook", r.playbook.ID,
			"script", cfg.Script,
			"error", err)
	}
	return true, nil
}

// RenderTemplate substitutes the four supported placeholders in a
// notification template.
func RenderTemplate(template string, v *schema.Violation, incidentID string) string {
	replacer := strings.NewReplacer(
		"{{violation.title}}", v.Title,
		"{{violation.description}}", v.Description,
		"{{violation.severity}}", string(v.Severity),
		"{{incident.id}}", incidentID,
	)
	return replacer.Replace(template)
}
