package detection

import (
	"strings"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// Markers identifying email authentication TXT records.
const (
	spfMarker   = "v=spf1"
	dmarcMarker = "v=DMARC1"
)

// FactMap is the generic view of a cached asset snapshot that rule
// conditions evaluate against.
type FactMap map[string]any

// DomainFacts flattens a domain snapshot into a fact map.
func DomainFacts(rec *schema.DomainRecord) FactMap {
	hasSPF := false
	hasDMARC := false
	txtCount := 0
	for _, r := range rec.Records {
		if !strings.EqualFold(r.Type, "TXT") {
			continue
		}
		txtCount++
		if strings.HasPrefix(r.Value, spfMarker) {
			hasSPF = true
		}
		if strings.HasPrefix(r.Value, dmarcMarker) {
			hasDMARC = true
		}
	}
	return FactMap{
		"domain":           rec.Domain,
		"has_spf":          hasSPF,
		"has_dmarc":        hasDMARC,
		"txt_record_count": txtCount,
		"record_count":     len(rec.Records),
	}
}

// IPFacts flattens an IP snapshot into a fact map.
func IPFacts(rec *schema.IPRecord) FactMap {
	return FactMap{
		"address":    rec.Address,
		"reputation": string(rec.Reputation),
		"is_tor":     rec.IsTor,
		"is_private": rec.IsPrivate,
	}
}

// CertificateFacts flattens a certificate snapshot into a fact map.
func CertificateFacts(info *schema.CertificateInfo) FactMap {
	return FactMap{
		"subject":           info.Subject,
		"issuer":            info.Issuer,
		"days_until_expiry": info.DaysUntilExpiry,
		"is_valid":          info.IsValid,
	}
}
