package detection

import (
	"context"
	"testing"

	"github.com/yksanjo/ai-compliance-system/internal/assets"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

func certAsset(inv *assets.Inventory, id string, daysLeft int, valid bool) {
	inv.AddAsset(assets.Asset{ID: id, Type: schema.AssetCertificate, Identifier: id})
	inv.PutCertificateInfo(id, schema.CertificateInfo{
		Subject:         "CN=" + id,
		Issuer:          "CN=Example CA",
		DaysUntilExpiry: daysLeft,
		IsValid:         valid,
	})
}

func TestRunDetectionCertExpiryTiers(t *testing.T) {
	tests := []struct {
		name         string
		daysLeft     int
		wantSeverity schema.Severity
		wantCount    int
	}{
		{"expires in 5 days", 5, schema.SeverityCritical, 1},
		{"expires in 14 days", 14, schema.SeverityHigh, 1},
		{"expires in 25 days", 25, schema.SeverityMedium, 1},
		{"expires in 90 days", 90, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := assets.NewInventory()
			certAsset(inv, "web.example.com", tt.daysLeft, true)

			engine := NewEngine(inv, nil)
			violations, err := engine.RunDetection(context.Background(), nil)
			if err != nil {
				t.Fatalf("RunDetection failed: %v", err)
			}

			// Only one expiry tier may fire per certificate; the
			// tiers share a rule group and the most severe wins.
			if len(violations) != tt.wantCount {
				t.Fatalf("expected %d violations, got %d", tt.wantCount, len(violations))
			}
			if tt.wantCount > 0 && violations[0].Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, violations[0].Severity)
			}
		})
	}
}

func TestRunDetectionInvalidCertIndependentOfExpiry(t *testing.T) {
	inv := assets.NewInventory()
	certAsset(inv, "broken.example.com", 3, false)

	engine := NewEngine(inv, nil)
	violations, err := engine.RunDetection(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunDetection failed: %v", err)
	}

	// Validity is not part of the expiry group, so both fire.
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(violations))
	}
}

func TestRunDetectionDomainEmailAuth(t *testing.T) {
	inv := assets.NewInventory()
	inv.AddAsset(assets.Asset{ID: "d1", Type: schema.AssetDomain, Identifier: "example.com"})
	inv.PutDomainRecord(schema.DomainRecord{
		Domain: "example.com",
		Records: []schema.DNSRecord{
			{Type: "A", Name: "example.com", Value: "203.0.113.10"},
		},
	})

	engine := NewEngine(inv, nil)
	violations, err := engine.RunDetection(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunDetection failed: %v", err)
	}

	if len(violations) != 2 {
		t.Fatalf("expected SPF and DMARC violations, got %d", len(violations))
	}

	inv.PutDomainRecord(schema.DomainRecord{
		Domain: "example.com",
		Records: []schema.DNSRecord{
			{Type: "TXT", Name: "example.com", Value: "v=spf1 include:_spf.example.com ~all"},
			{Type: "TXT", Name: "_dmarc.example.com", Value: "v=DMARC1; p=reject"},
		},
	})

	violations, err = engine.RunDetection(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunDetection failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations with SPF and DMARC present, got %d", len(violations))
	}
}

func TestRunDetectionSkipsAssetsWithoutSnapshot(t *testing.T) {
	inv := assets.NewInventory()
	inv.AddAsset(assets.Asset{ID: "d1", Type: schema.AssetDomain, Identifier: "nodata.example.com"})

	engine := NewEngine(inv, nil)
	violations, err := engine.RunDetection(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunDetection failed: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("asset without cached facts should be skipped, got %d violations", len(violations))
	}
}

func TestRunDetectionMaliciousIP(t *testing.T) {
	inv := assets.NewInventory()
	inv.AddAsset(assets.Asset{ID: "ip1", Type: schema.AssetIP, Identifier: "198.51.100.7"})
	inv.PutIPRecord(schema.IPRecord{
		Address:    "198.51.100.7",
		Reputation: schema.ReputationMalicious,
		IsTor:      true,
	})

	engine := NewEngine(inv, nil)
	violations, err := engine.RunDetection(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunDetection failed: %v", err)
	}

	if len(violations) != 2 {
		t.Fatalf("expected malicious and tor violations, got %d", len(violations))
	}
	for _, v := range violations {
		if v.AssetIdentifier != "198.51.100.7" {
			t.Errorf("unexpected asset identifier %s", v.AssetIdentifier)
		}
		if v.Status != schema.ViolationOpen {
			t.Errorf("new violation should be open, got %s", v.Status)
		}
		if len(v.Evidence) == 0 {
			t.Error("violation should carry a fact snapshot in evidence")
		}
	}
}

func TestRunDetectionPolicyLinking(t *testing.T) {
	inv := assets.NewInventory()
	certAsset(inv, "web.example.com", 5, true)

	engine := NewEngine(inv, nil)

	t.Run("matching framework links policy", func(t *testing.T) {
		policies := []schema.Policy{
			{ID: "pol-certs", Name: "Certificate Management", Framework: "certificate-management"},
		}
		violations, err := engine.RunDetection(context.Background(), policies)
		if err != nil {
			t.Fatalf("RunDetection failed: %v", err)
		}
		if len(violations) != 1 {
			t.Fatalf("expected 1 violation, got %d", len(violations))
		}
		if violations[0].PolicyID != "pol-certs" {
			t.Errorf("expected policy pol-certs, got %s", violations[0].PolicyID)
		}
		if violations[0].PolicyName != "Certificate Management" {
			t.Errorf("unexpected policy name %s", violations[0].PolicyName)
		}
	})

	t.Run("no match falls back to system policy", func(t *testing.T) {
		policies := []schema.Policy{
			{ID: "pol-soc2", Name: "SOC 2 Type II", Framework: "SOC2"},
		}
		violations, err := engine.RunDetection(context.Background(), policies)
		if err != nil {
			t.Fatalf("RunDetection failed: %v", err)
		}
		if len(violations) != 1 {
			t.Fatalf("expected 1 violation, got %d", len(violations))
		}
		if violations[0].PolicyID != schema.SystemPolicyID {
			t.Errorf("expected system policy fallback, got %s", violations[0].PolicyID)
		}
		if violations[0].PolicyName != schema.SystemPolicyName {
			t.Errorf("system policy name mismatch: %s", violations[0].PolicyName)
		}
	})
}

func TestSetRuleEnabled(t *testing.T) {
	inv := assets.NewInventory()
	certAsset(inv, "web.example.com", 5, true)

	engine := NewEngine(inv, nil)
	if ok := engine.SetRuleEnabled("builtin-cert-expiry-critical", false); !ok {
		t.Fatal("expected rule to exist")
	}
	if ok := engine.SetRuleEnabled("no-such-rule", false); ok {
		t.Error("expected false for unknown rule")
	}

	violations, err := engine.RunDetection(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunDetection failed: %v", err)
	}
	// With the critical tier disabled the high tier takes the group.
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	if violations[0].Severity != schema.SeverityHigh {
		t.Errorf("expected high severity from next tier, got %s", violations[0].Severity)
	}
}

func TestAddRuleRejectsInvalid(t *testing.T) {
	engine := NewEngine(assets.NewInventory(), nil)
	err := engine.AddRule(&Rule{ID: "bad"})
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestRunDetectionContextCancellation(t *testing.T) {
	inv := assets.NewInventory()
	certAsset(inv, "web.example.com", 5, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(inv, nil)
	if _, err := engine.RunDetection(ctx, nil); err == nil {
		t.Error("expected context error")
	}
}
