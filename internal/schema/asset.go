package schema

import "time"

// Reputation classifies an IP address according to threat intelligence.
type Reputation string

const (
	ReputationClean      Reputation = "clean"
	ReputationSuspicious Reputation = "suspicious"
	ReputationMalicious  Reputation = "malicious"
	ReputationUnknown    Reputation = "unknown"
)

// IsValid checks if the reputation is a valid value.
func (r Reputation) IsValid() bool {
	switch r {
	case ReputationClean, ReputationSuspicious, ReputationMalicious, ReputationUnknown:
		return true
	}
	return false
}

// DNSRecord is a single cached DNS record for a monitored domain.
type DNSRecord struct {
	Type  string `json:"type" yaml:"type"`
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	TTL   int    `json:"ttl" yaml:"ttl"`
}

// DomainRecord is the cached fact snapshot for a domain asset.
// The engine never performs DNS resolution itself; snapshots are
// populated by an external collector.
type DomainRecord struct {
	Domain    string      `json:"domain" yaml:"domain"`
	Records   []DNSRecord `json:"records" yaml:"records"`
	FetchedAt time.Time   `json:"fetched_at" yaml:"fetched_at"`
}

// IPRecord is the cached fact snapshot for an IP asset.
type IPRecord struct {
	Address    string     `json:"address" yaml:"address"`
	Reputation Reputation `json:"reputation" yaml:"reputation"`
	IsTor      bool       `json:"is_tor" yaml:"is_tor"`
	IsPrivate  bool       `json:"is_private" yaml:"is_private"`
	FetchedAt  time.Time  `json:"fetched_at" yaml:"fetched_at"`
}

// CertificateInfo is the cached fact snapshot for a certificate asset.
type CertificateInfo struct {
	Subject         string    `json:"subject" yaml:"subject"`
	Issuer          string    `json:"issuer" yaml:"issuer"`
	DaysUntilExpiry int       `json:"days_until_expiry" yaml:"days_until_expiry"`
	IsValid         bool      `json:"is_valid" yaml:"is_valid"`
	FetchedAt       time.Time `json:"fetched_at" yaml:"fetched_at"`
}
