package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yksanjo/ai-compliance-system/internal/incident"
	"github.com/yksanjo/ai-compliance-system/internal/remediation"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

func engineFixture() (*Engine, *incident.Manager, *capturingNotifier, *MemoryLedger) {
	incidents := incident.NewManager(nil)
	notifier := &capturingNotifier{}
	runner := remediation.NewRecorder(nil)
	ledger := NewMemoryLedger(100)
	executor := NewExecutor(incidents, notifier, runner, nil)
	engine := NewEngine(executor, incidents, ledger, nil)
	return engine, incidents, notifier, ledger
}

func notifyPlaybook(id string, severities ...schema.Severity) *Playbook {
	return &Playbook{
		ID:      id,
		Name:    "Notify " + id,
		Enabled: true,
		Trigger: Trigger{Type: TriggerViolation, Severities: severities},
		Steps: []Step{
			{
				ID:           "notify",
				Type:         StepNotification,
				Notification: &NotificationConfig{Channel: "slack", Template: "{{violation.title}}"},
			},
		},
	}
}

func TestEnginePlaybookRegistry(t *testing.T) {
	engine, _, _, _ := engineFixture()

	if err := engine.AddPlaybook(notifyPlaybook("pb-1")); err != nil {
		t.Fatalf("AddPlaybook failed: %v", err)
	}
	if err := engine.AddPlaybook(notifyPlaybook("pb-2")); err != nil {
		t.Fatalf("AddPlaybook failed: %v", err)
	}

	if err := engine.AddPlaybook(&Playbook{ID: "bad"}); err == nil {
		t.Error("invalid playbook must be rejected")
	}

	list := engine.Playbooks()
	if len(list) != 2 || list[0].ID != "pb-1" || list[1].ID != "pb-2" {
		t.Errorf("registration order not preserved: %v", list)
	}

	// Re-adding replaces in place.
	replacement := notifyPlaybook("pb-1")
	replacement.Name = "Replaced"
	engine.AddPlaybook(replacement)
	list = engine.Playbooks()
	if len(list) != 2 || list[0].Name != "Replaced" {
		t.Error("re-add should replace without reordering")
	}

	if _, ok := engine.GetPlaybook("pb-2"); !ok {
		t.Error("expected pb-2")
	}
	if err := engine.RemovePlaybook("pb-2"); err != nil {
		t.Fatalf("RemovePlaybook failed: %v", err)
	}
	if err := engine.RemovePlaybook("pb-2"); !errors.Is(err, ErrPlaybookNotFound) {
		t.Errorf("expected ErrPlaybookNotFound, got %v", err)
	}
	if err := engine.SetEnabled("missing", true); !errors.Is(err, ErrPlaybookNotFound) {
		t.Errorf("expected ErrPlaybookNotFound, got %v", err)
	}
}

func TestExecutePlaybooksMatchingOnly(t *testing.T) {
	engine, _, notifier, ledger := engineFixture()

	engine.AddPlaybook(notifyPlaybook("pb-critical", schema.SeverityCritical))
	engine.AddPlaybook(notifyPlaybook("pb-high", schema.SeverityHigh))
	engine.AddPlaybook(notifyPlaybook("pb-any"))

	disabled := notifyPlaybook("pb-disabled")
	disabled.Enabled = false
	engine.AddPlaybook(disabled)

	v := executorViolation() // critical
	engine.ExecutePlaybooks(context.Background(), v)

	// pb-critical and pb-any fire; pb-high mismatches, pb-disabled is off.
	if got := len(notifier.sent()); got != 2 {
		t.Errorf("expected 2 notifications, got %d", got)
	}

	recent, _ := ledger.Recent(context.Background(), 0)
	if len(recent) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(recent))
	}
	for _, rec := range recent {
		if rec.Result != ResultSuccess {
			t.Errorf("result = %s for %s", rec.Result, rec.PlaybookID)
		}
	}

	// Fired playbooks get a LastRun stamp, skipped ones do not.
	fired, _ := engine.GetPlaybook("pb-critical")
	if fired.LastRun == nil {
		t.Error("expected LastRun on fired playbook")
	}
	skipped, _ := engine.GetPlaybook("pb-high")
	if skipped.LastRun != nil {
		t.Error("skipped playbook must not be stamped")
	}
}

func TestExecutePlaybooksReturnsBoundIncidents(t *testing.T) {
	engine, incidents, _, _ := engineFixture()

	create := &Playbook{
		ID:      "pb-create",
		Name:    "Create Incident",
		Enabled: true,
		Trigger: Trigger{Type: TriggerViolation},
		Steps: []Step{
			{ID: "create", Type: StepAction, Action: &ActionConfig{Kind: ActionCreateIncident}},
		},
	}
	engine.AddPlaybook(create)
	engine.AddPlaybook(notifyPlaybook("pb-notify"))

	got := engine.ExecutePlaybooks(context.Background(), executorViolation())
	if len(got) != 1 {
		t.Fatalf("expected 1 bound incident, got %d", len(got))
	}
	if incidents.Count() != 1 {
		t.Errorf("incident count = %d", incidents.Count())
	}
	if got[0].Status != schema.IncidentOpen {
		t.Errorf("status = %s", got[0].Status)
	}
}

func TestExecutePlaybooksFailureIsolation(t *testing.T) {
	engine, _, notifier, ledger := engineFixture()

	// A cyclic playbook fails its run; the sibling must still execute.
	cyclic := &Playbook{
		ID:      "pb-cycle",
		Name:    "Cycle",
		Enabled: true,
		Trigger: Trigger{Type: TriggerViolation},
		Steps: []Step{
			{
				ID:        "a",
				Type:      StepCondition,
				Condition: &ConditionConfig{Field: "severity", Value: "critical"},
				OnSuccess: "a",
			},
		},
	}
	engine.AddPlaybook(cyclic)
	engine.AddPlaybook(notifyPlaybook("pb-notify"))

	engine.ExecutePlaybooks(context.Background(), executorViolation())

	if len(notifier.sent()) != 1 {
		t.Error("sibling playbook should run despite the failed one")
	}

	recent, _ := ledger.Recent(context.Background(), 0)
	if len(recent) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(recent))
	}
	byID := map[string]Result{}
	for _, rec := range recent {
		byID[rec.PlaybookID] = rec.Result
	}
	if byID["pb-cycle"] != ResultFailure {
		t.Errorf("cyclic run should be recorded as failure, got %s", byID["pb-cycle"])
	}
	if byID["pb-notify"] != ResultSuccess {
		t.Errorf("sibling run should be recorded as success, got %s", byID["pb-notify"])
	}
}

func TestEngineStats(t *testing.T) {
	engine, _, _, _ := engineFixture()
	engine.AddPlaybook(notifyPlaybook("pb-1"))
	disabled := notifyPlaybook("pb-2")
	disabled.Enabled = false
	engine.AddPlaybook(disabled)

	engine.ExecutePlaybooks(context.Background(), executorViolation())

	stats := engine.Stats(context.Background())
	if stats["playbook_count"] != 2 {
		t.Errorf("playbook_count = %v", stats["playbook_count"])
	}
	if stats["enabled_count"] != 1 {
		t.Errorf("enabled_count = %v", stats["enabled_count"])
	}
	if stats["recent_runs"] != 1 {
		t.Errorf("recent_runs = %v", stats["recent_runs"])
	}
}

func TestCriticalResponseScenario(t *testing.T) {
	// Full path through the built-in critical playbook, with the delay
	// shortened so the test completes quickly: incident created at P1,
	// paged, unacknowledged after the wait, escalated (already P1) with
	// an escalation event on the timeline, and a successful ledger entry.
	engine, incidents, notifier, ledger := engineFixture()

	p := CriticalViolationPlaybook()
	for i := range p.Steps {
		if p.Steps[i].Type == StepDelay {
			p.Steps[i].Delay.Duration = 5 * time.Millisecond
		}
	}
	if err := engine.AddPlaybook(p); err != nil {
		t.Fatalf("AddPlaybook failed: %v", err)
	}

	v := executorViolation()
	bound := engine.ExecutePlaybooks(context.Background(), v)
	if len(bound) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(bound))
	}

	inc, err := incidents.Get(bound[0].ID)
	if err != nil {
		t.Fatalf("incident not found: %v", err)
	}
	if inc.Priority != schema.PriorityP1 {
		t.Errorf("priority = %s, want P1", inc.Priority)
	}
	if len(inc.ViolationIDs) != 1 || inc.ViolationIDs[0] != v.ID {
		t.Errorf("violation not linked: %v", inc.ViolationIDs)
	}

	var sawCreated, sawEscalation bool
	for _, ev := range inc.Timeline {
		switch ev.Type {
		case schema.EventCreated:
			sawCreated = true
		case schema.EventEscalation:
			sawEscalation = true
		}
	}
	if !sawCreated || !sawEscalation {
		t.Errorf("timeline missing created/escalation events: %+v", inc.Timeline)
	}

	sent := notifier.sent()
	if len(sent) != 2 {
		t.Fatalf("expected page and escalation notifications, got %d", len(sent))
	}
	if sent[0].Channel != "pagerduty" || sent[1].Channel != "slack" {
		t.Errorf("unexpected channels: %s, %s", sent[0].Channel, sent[1].Channel)
	}

	recent, _ := ledger.Recent(context.Background(), 1)
	if len(recent) != 1 || recent[0].Result != ResultSuccess {
		t.Errorf("expected a success ledger entry, got %+v", recent)
	}
}

func TestPlaybooksReturnsSnapshots(t *testing.T) {
	engine, _, _, _ := engineFixture()
	if err := engine.AddPlaybook(notifyPlaybook("pb-1")); err != nil {
		t.Fatalf("AddPlaybook failed: %v", err)
	}

	list := engine.Playbooks()
	list[0].Enabled = false
	list[0].Trigger.PolicyID = "tampered"

	got, ok := engine.GetPlaybook("pb-1")
	if !ok {
		t.Fatal("expected pb-1")
	}
	if !got.Enabled || got.Trigger.PolicyID != "" {
		t.Error("registry state must not be reachable through returned copies")
	}
}

func TestSetEnabledConcurrentWithExecution(t *testing.T) {
	engine, _, _, _ := engineFixture()
	if err := engine.AddPlaybook(notifyPlaybook("pb-toggle", schema.SeverityCritical)); err != nil {
		t.Fatalf("AddPlaybook failed: %v", err)
	}

	v := executorViolation()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			engine.SetEnabled("pb-toggle", i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			engine.ExecutePlaybooks(context.Background(), v)
		}
	}()
	wg.Wait()

	if _, ok := engine.GetPlaybook("pb-toggle"); !ok {
		t.Fatal("playbook lost during concurrent toggling")
	}
}
