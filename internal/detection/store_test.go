package detection

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

func testViolation(severity schema.Severity, assetType schema.AssetType) *schema.Violation {
	now := time.Now().UTC()
	return &schema.Violation{
		ID:              uuid.New(),
		PolicyID:        schema.SystemPolicyID,
		PolicyName:      schema.SystemPolicyName,
		AssetID:         "asset-1",
		AssetType:       assetType,
		AssetIdentifier: "web.example.com",
		Severity:        severity,
		Status:          schema.ViolationOpen,
		Title:           "test violation",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestStoreAddGet(t *testing.T) {
	store := NewStore()
	v := testViolation(schema.SeverityHigh, schema.AssetCertificate)
	store.Add(v)

	got, err := store.Get(v.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != v.ID {
		t.Errorf("unexpected id %s", got.ID)
	}

	// Returned value is a copy; mutating it must not affect the store.
	got.Severity = schema.SeverityLow
	again, _ := store.Get(v.ID)
	if again.Severity != schema.SeverityHigh {
		t.Error("Get should return a copy")
	}

	if _, err := store.Get(uuid.New()); !errors.Is(err, ErrViolationNotFound) {
		t.Errorf("expected ErrViolationNotFound, got %v", err)
	}
}

func TestStoreSetStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    schema.ViolationStatus
		to      schema.ViolationStatus
		wantErr bool
	}{
		{"open to investigating", schema.ViolationOpen, schema.ViolationInvestigating, false},
		{"open to resolved skips steps", schema.ViolationOpen, schema.ViolationResolved, false},
		{"open to false positive", schema.ViolationOpen, schema.ViolationFalsePositive, false},
		{"resolved to false positive", schema.ViolationResolved, schema.ViolationFalsePositive, false},
		{"resolved back to open", schema.ViolationResolved, schema.ViolationOpen, true},
		{"investigating back to open", schema.ViolationInvestigating, schema.ViolationOpen, true},
		{"false positive to resolved", schema.ViolationFalsePositive, schema.ViolationResolved, true},
		{"no-op transition", schema.ViolationOpen, schema.ViolationOpen, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			v := testViolation(schema.SeverityHigh, schema.AssetCertificate)
			v.Status = tt.from
			store.Add(v)

			err := store.SetStatus(v.ID, tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetStatus failed: %v", err)
			}

			got, _ := store.Get(v.ID)
			if got.Status != tt.to {
				t.Errorf("status = %s, want %s", got.Status, tt.to)
			}
		})
	}
}

func TestStoreSetStatusStampsResolvedAt(t *testing.T) {
	store := NewStore()
	v := testViolation(schema.SeverityMedium, schema.AssetDomain)
	store.Add(v)

	if err := store.SetStatus(v.ID, schema.ViolationResolved); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	got, _ := store.Get(v.ID)
	if got.ResolvedAt == nil {
		t.Fatal("ResolvedAt should be stamped on resolution")
	}
	if !got.UpdatedAt.Equal(*got.ResolvedAt) {
		t.Error("UpdatedAt should match ResolvedAt on resolution")
	}

	if err := store.SetStatus(uuid.New(), schema.ViolationResolved); !errors.Is(err, ErrViolationNotFound) {
		t.Errorf("expected ErrViolationNotFound, got %v", err)
	}
}

func TestStoreList(t *testing.T) {
	store := NewStore()
	a := testViolation(schema.SeverityCritical, schema.AssetCertificate)
	b := testViolation(schema.SeverityHigh, schema.AssetDomain)
	c := testViolation(schema.SeverityHigh, schema.AssetIP)
	store.Add(a)
	store.Add(b)
	store.Add(c)
	if err := store.SetStatus(c.ID, schema.ViolationResolved); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	all := store.List(ListFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 violations, got %d", len(all))
	}
	if all[0].ID != a.ID || all[1].ID != b.ID || all[2].ID != c.ID {
		t.Error("List should preserve insertion order")
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   int
	}{
		{"by severity", ListFilter{Severity: schema.SeverityHigh}, 2},
		{"by status", ListFilter{Status: schema.ViolationResolved}, 1},
		{"by asset type", ListFilter{AssetType: schema.AssetDomain}, 1},
		{"combined", ListFilter{Severity: schema.SeverityHigh, Status: schema.ViolationOpen}, 1},
		{"no match", ListFilter{Severity: schema.SeverityLow}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.List(tt.filter); len(got) != tt.want {
				t.Errorf("expected %d results, got %d", tt.want, len(got))
			}
		})
	}

	if store.Count() != 3 {
		t.Errorf("Count = %d, want 3", store.Count())
	}
}
