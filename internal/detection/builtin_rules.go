package detection

import "github.com/yksanjo/ai-compliance-system/internal/schema"

// BuiltinRules returns the built-in detection rules.
func BuiltinRules() []*Rule {
	return []*Rule{
		// Certificate rules
		CertExpiryCriticalRule(),
		CertExpiryHighRule(),
		CertExpiryMediumRule(),
		CertInvalidRule(),

		// Domain email authentication rules
		MissingSPFRule(),
		MissingDMARCRule(),

		// IP reputation rules
		MaliciousIPRule(),
		TorExitNodeRule(),
	}
}

// CertExpiryCriticalRule fires for certificates expiring within 7 days.
func CertExpiryCriticalRule() *Rule {
	return &Rule{
		ID:          "builtin-cert-expiry-critical",
		Name:        "Certificate Expiring Within 7 Days",
		Description: "TLS certificate expires in 7 days or less",
		Severity:    schema.SeverityCritical,
		Enabled:     true,
		AssetType:   schema.AssetCertificate,
		Group:       "cert-expiry",
		Framework:   "certificate-management",
		Title:       "Certificate expiring imminently",
		Evidence:    "certificate_expiry",
		Condition: Condition{
			Field:    "days_until_expiry",
			Operator: OpLessThan,
			Value:    8,
		},
	}
}

// CertExpiryHighRule fires for certificates expiring within 30 days.
func CertExpiryHighRule() *Rule {
	return &Rule{
		ID:          "builtin-cert-expiry-high",
		Name:        "Certificate Expiring Within 30 Days",
		Description: "TLS certificate expires in 30 days or less",
		Severity:    schema.SeverityHigh,
		Enabled:     true,
		AssetType:   schema.AssetCertificate,
		Group:       "cert-expiry",
		Framework:   "certificate-management",
		Title:       "Certificate expiring soon",
		Evidence:    "certificate_expiry",
		Condition: Condition{
			Field:    "days_until_expiry",
			Operator: OpLessThan,
			Value:    31,
		},
	}
}

// CertExpiryMediumRule fires for certificates expiring within 60 days.
func CertExpiryMediumRule() *Rule {
	return &Rule{
		ID:          "builtin-cert-expiry-medium",
		Name:        "Certificate Expiring Within 60 Days",
		Description: "TLS certificate expires in 60 days or less",
		Severity:    schema.SeverityMedium,
		Enabled:     true,
		AssetType:   schema.AssetCertificate,
		Group:       "cert-expiry",
		Framework:   "certificate-management",
		Title:       "Certificate approaching expiry",
		Evidence:    "certificate_expiry",
		Condition: Condition{
			Field:    "days_until_expiry",
			Operator: OpLessThan,
			Value:    61,
		},
	}
}

// CertInvalidRule fires for certificates that fail validation,
// independently of expiry.
func CertInvalidRule() *Rule {
	return &Rule{
		ID:          "builtin-cert-invalid",
		Name:        "Invalid Certificate",
		Description: "TLS certificate failed signature or chain validation",
		Severity:    schema.SeverityCritical,
		Enabled:     true,
		AssetType:   schema.AssetCertificate,
		Framework:   "certificate-management",
		Title:       "Certificate validation failure",
		Evidence:    "certificate_validation",
		Condition: Condition{
			Field:    "is_valid",
			Operator: OpEquals,
			Value:    false,
		},
	}
}

// MissingSPFRule fires for domains without an SPF record.
func MissingSPFRule() *Rule {
	return &Rule{
		ID:          "builtin-domain-missing-spf",
		Name:        "Missing SPF Record",
		Description: "Domain has no v=spf1 TXT record",
		Severity:    schema.SeverityHigh,
		Enabled:     true,
		AssetType:   schema.AssetDomain,
		Framework:   "email-security",
		Title:       "SPF record not configured",
		Evidence:    "dns_txt_records",
		Condition: Condition{
			Field:    "has_spf",
			Operator: OpEquals,
			Value:    false,
		},
	}
}

// MissingDMARCRule fires for domains without a DMARC record.
func MissingDMARCRule() *Rule {
	return &Rule{
		ID:          "builtin-domain-missing-dmarc",
		Name:        "Missing DMARC Record",
		Description: "Domain has no v=DMARC1 TXT record",
		Severity:    schema.SeverityHigh,
		Enabled:     true,
		AssetType:   schema.AssetDomain,
		Framework:   "email-security",
		Title:       "DMARC record not configured",
		Evidence:    "dns_txt_records",
		Condition: Condition{
			Field:    "has_dmarc",
			Operator: OpEquals,
			Value:    false,
		},
	}
}

// MaliciousIPRule fires for IPs flagged malicious by reputation data.
func MaliciousIPRule() *Rule {
	return &Rule{
		ID:          "builtin-ip-malicious",
		Name:        "Malicious IP Reputation",
		Description: "IP address flagged malicious by threat intelligence",
		Severity:    schema.SeverityCritical,
		Enabled:     true,
		AssetType:   schema.AssetIP,
		Framework:   "network-security",
		Title:       "Malicious IP detected",
		Evidence:    "ip_reputation",
		Condition: Condition{
			Field:    "reputation",
			Operator: OpEquals,
			Value:    "malicious",
		},
	}
}

// TorExitNodeRule fires for IPs identified as Tor exit nodes,
// independently of reputation.
func TorExitNodeRule() *Rule {
	return &Rule{
		ID:          "builtin-ip-tor",
		Name:        "Tor Exit Node",
		Description: "IP address is a known Tor exit node",
		Severity:    schema.SeverityHigh,
		Enabled:     true,
		AssetType:   schema.AssetIP,
		Framework:   "network-security",
		Title:       "Tor exit node detected",
		Evidence:    "ip_reputation",
		Condition: Condition{
			Field:    "is_tor",
			Operator: OpEquals,
			Value:    true,
		},
	}
}
