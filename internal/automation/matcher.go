package automation

import "github.com/yksanjo/ai-compliance-system/internal/schema"

// ShouldTrigger reports whether a playbook applies to a violation.
// All configured predicates are conjunctive: a non-empty severity set
// must contain the violation's severity, a non-empty asset-type set
// must contain its asset type, and a configured policy id must match
// exactly. Absent predicates are vacuously true.
func ShouldTrigger(p *Playbook, v *schema.Violation) bool {
	if p.Trigger.Type != TriggerViolation {
		return false
	}

	if len(p.Trigger.Severities) > 0 {
		found := false
		for _, sev := range p.Trigger.Severities {
			if sev == v.Severity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(p.Trigger.AssetTypes) > 0 {
		found := false
		for _, at := range p.Trigger.AssetTypes {
			if at == v.AssetType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if p.Trigger.PolicyID != "" && p.Trigger.PolicyID != v.PolicyID {
		return false
	}

	return true
}
