package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yksanjo/ai-compliance-system/internal/automation"
	"github.com/yksanjo/ai-compliance-system/internal/detection"
	"github.com/yksanjo/ai-compliance-system/internal/incident"
	"github.com/yksanjo/ai-compliance-system/internal/notify"
	"github.com/yksanjo/ai-compliance-system/internal/remediation"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

type stubScanner struct {
	result ScanResult
	err    error
	calls  int
}

func (s *stubScanner) RunScan(ctx context.Context) (ScanResult, error) {
	s.calls++
	return s.result, s.err
}

type fixture struct {
	mux        *http.ServeMux
	violations *detection.Store
	incidents  *incident.Manager
	playbooks  *automation.Engine
	scanner    *stubScanner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	violations := detection.NewStore()
	incidents := incident.NewManager(nil)
	ledger := automation.NewMemoryLedger(100)
	notifier := notify.NewDispatcher(nil)
	executor := automation.NewExecutor(incidents, notifier, remediation.NewRecorder(nil), nil)
	playbooks := automation.NewEngine(executor, incidents, ledger, nil)
	scanner := &stubScanner{result: ScanResult{Violations: 2, Incidents: 1}}

	h := NewHandler(violations, incidents, playbooks, ledger, scanner, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &fixture{
		mux:        mux,
		violations: violations,
		incidents:  incidents,
		playbooks:  playbooks,
		scanner:    scanner,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("response not valid JSON: %v\n%s", err, rec.Body.String())
	}
}

func seedViolation(f *fixture, severity schema.Severity) *schema.Violation {
	now := time.Now().UTC()
	v := &schema.Violation{
		ID:              uuid.New(),
		PolicyID:        schema.SystemPolicyID,
		AssetID:         "asset-1",
		AssetType:       schema.AssetCertificate,
		AssetIdentifier: "web.example.com",
		Severity:        severity,
		Status:          schema.ViolationOpen,
		Title:           "Certificate expiring soon: web.example.com",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.violations.Add(v)
	return v
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestListViolations(t *testing.T) {
	f := newFixture(t)
	seedViolation(f, schema.SeverityCritical)
	seedViolation(f, schema.SeverityHigh)

	rec := f.do(t, "GET", "/api/violations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	decode(t, rec, &body)
	if body.Count != 2 {
		t.Errorf("count = %d", body.Count)
	}

	rec = f.do(t, "GET", "/api/violations?severity=critical", "")
	decode(t, rec, &body)
	if body.Count != 1 {
		t.Errorf("filtered count = %d", body.Count)
	}
}

func TestGetViolation(t *testing.T) {
	f := newFixture(t)
	v := seedViolation(f, schema.SeverityHigh)

	rec := f.do(t, "GET", "/api/violations/"+v.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got schema.Violation
	decode(t, rec, &got)
	if got.ID != v.ID {
		t.Errorf("id = %s", got.ID)
	}

	if rec := f.do(t, "GET", "/api/violations/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
	if rec := f.do(t, "GET", "/api/violations/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d", rec.Code)
	}
}

func TestViolationStatusTransitions(t *testing.T) {
	f := newFixture(t)
	v := seedViolation(f, schema.SeverityHigh)
	url := "/api/violations/" + v.ID.String() + "/status"

	rec := f.do(t, "POST", url, `{"status":"investigating"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got schema.Violation
	decode(t, rec, &got)
	if got.Status != schema.ViolationInvestigating {
		t.Errorf("violation status = %s", got.Status)
	}

	// Moving backwards is a conflict, not a bad request.
	rec = f.do(t, "POST", url, `{"status":"open"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("backward transition status = %d", rec.Code)
	}

	rec = f.do(t, "POST", url, `{"status":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}

	rec = f.do(t, "POST", "/api/violations/"+uuid.NewString()+"/status", `{"status":"resolved"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing violation status = %d", rec.Code)
	}
}

func TestIncidentEndpoints(t *testing.T) {
	f := newFixture(t)
	v := seedViolation(f, schema.SeverityCritical)
	inc := f.incidents.CreateFromViolation(v)

	rec := f.do(t, "GET", "/api/incidents", "")
	var list struct {
		Count int `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 1 {
		t.Errorf("count = %d", list.Count)
	}

	rec = f.do(t, "GET", "/api/incidents/"+inc.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = f.do(t, "PATCH", "/api/incidents/"+inc.ID.String(), `{"status":"investigating","assignee":"oncall"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	var got schema.Incident
	decode(t, rec, &got)
	if got.Status != schema.IncidentInvestigating || got.Assignee != "oncall" {
		t.Errorf("update not applied: %+v", got)
	}
	// Untouched fields survive the shallow merge.
	if got.Title != inc.Title {
		t.Errorf("title changed: %s", got.Title)
	}

	rec = f.do(t, "PATCH", "/api/incidents/"+uuid.NewString(), `{"assignee":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing incident status = %d", rec.Code)
	}
}

func TestPlaybookEndpoints(t *testing.T) {
	f := newFixture(t)
	p := &automation.Playbook{
		ID:      "pb-1",
		Name:    "Test",
		Enabled: true,
		Trigger: automation.Trigger{Type: automation.TriggerViolation},
		Steps: []automation.Step{
			{
				ID:   "notify",
				Type: automation.StepNotification,
				Notification: &automation.NotificationConfig{
					Channel:  "slack",
					Template: "x",
				},
			},
		},
	}
	if err := f.playbooks.AddPlaybook(p); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, "GET", "/api/playbooks", "")
	var list struct {
		Count int `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 1 {
		t.Errorf("count = %d", list.Count)
	}

	rec = f.do(t, "POST", "/api/playbooks/pb-1/enabled", `{"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got automation.Playbook
	decode(t, rec, &got)
	if got.Enabled {
		t.Error("playbook should be disabled")
	}

	rec = f.do(t, "POST", "/api/playbooks/missing/enabled", `{"enabled":true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing playbook status = %d", rec.Code)
	}
}

func TestLedgerEndpoint(t *testing.T) {
	f := newFixture(t)
	seedViolation(f, schema.SeverityCritical)

	// Run a playbook so the ledger has entries.
	p := &automation.Playbook{
		ID:      "pb-1",
		Name:    "Test",
		Enabled: true,
		Trigger: automation.Trigger{Type: automation.TriggerViolation},
		Steps: []automation.Step{
			{
				ID:   "notify",
				Type: automation.StepNotification,
				Notification: &automation.NotificationConfig{
					Channel:  "slack",
					Template: "x",
				},
			},
		},
	}
	f.playbooks.AddPlaybook(p)
	f.playbooks.ExecutePlaybooks(context.Background(), seedViolation(f, schema.SeverityHigh))

	rec := f.do(t, "GET", "/api/ledger", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Count   int                          `json:"count"`
		Records []automation.ExecutionRecord `json:"records"`
	}
	decode(t, rec, &body)
	if body.Count != 1 || body.Records[0].PlaybookID != "pb-1" {
		t.Errorf("unexpected ledger body: %+v", body)
	}

	if rec := f.do(t, "GET", "/api/ledger?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d", rec.Code)
	}
	if rec := f.do(t, "GET", "/api/ledger?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d", rec.Code)
	}
}

func TestScanEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/scan", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result ScanResult
	decode(t, rec, &result)
	if result.Violations != 2 || result.Incidents != 1 {
		t.Errorf("result = %+v", result)
	}
	if f.scanner.calls != 1 {
		t.Errorf("scanner called %d times", f.scanner.calls)
	}

	f.scanner.err = errors.New("detection pass failed")
	if rec := f.do(t, "POST", "/api/scan", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("failed scan status = %d", rec.Code)
	}
}
