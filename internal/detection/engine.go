package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yksanjo/ai-compliance-system/internal/assets"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// Engine evaluates registered rules against the asset inventory.
type Engine struct {
	mu        sync.RWMutex
	rules     map[string]*Rule
	ruleOrder []string
	inventory *assets.Inventory
	logger    *slog.Logger
}

// NewEngine creates a detection engine over an asset inventory.
// Built-in rules are registered by default.
func NewEngine(inventory *assets.Inventory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		rules:     make(map[string]*Rule),
		inventory: inventory,
		logger:    logger,
	}
	for _, r := range BuiltinRules() {
		if err := e.AddRule(r); err != nil {
			logger.Error("failed to register built-in rule", "rule", r.ID, "error", err)
		}
	}
	return e
}

// AddRule registers a detection rule. Rules are evaluated in
// registration order.
func (e *Engine) AddRule(rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[rule.ID]; !exists {
		e.ruleOrder = append(e.ruleOrder, rule.ID)
	}
	e.rules[rule.ID] = rule
	return nil
}

// SetRuleEnabled toggles a rule. Returns false if the rule does not exist.
func (e *Engine) SetRuleEnabled(id string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, ok := e.rules[id]
	if !ok {
		return false
	}
	rule.Enabled = enabled
	return true
}

// GetRule returns a rule by id.
func (e *Engine) GetRule(id string) (*Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[id]
	return r, ok
}

// Rules returns all rules in registration order.
func (e *Engine) Rules() []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*Rule, 0, len(e.ruleOrder))
	for _, id := range e.ruleOrder {
		result = append(result, e.rules[id])
	}
	return result
}

// RunDetection evaluates every enabled rule against every monitored
// asset with a cached fact snapshot. Assets without cached data are
// silently skipped; missing facts are not findings.
func (e *Engine) RunDetection(ctx context.Context, policies []schema.Policy) ([]*schema.Violation, error) {
	rules := e.Rules()

	var violations []*schema.Violation
	for _, asset := range e.inventory.Assets() {
		select {
		case <-ctx.Done():
			return violations, ctx.Err()
		default:
		}

		facts, ok := e.factsFor(asset)
		if !ok {
			continue
		}

		firedGroups := make(map[string]bool)
		for _, rule := range rules {
			if !rule.Enabled || rule.AssetType != asset.Type {
				continue
			}
			if rule.Group != "" && firedGroups[rule.Group] {
				continue
			}
			if !rule.Condition.Match(facts[rule.Condition.Field]) {
				continue
			}
			if rule.Group != "" {
				firedGroups[rule.Group] = true
			}
			violations = append(violations, e.newViolation(rule, asset, facts, policies))
		}
	}

	e.logger.Info("detection pass complete",
		"assets", e.inventory.Count(),
		"rules", len(rules),
		"violations", len(violations))

	return violations, nil
}

func (e *Engine) factsFor(asset *assets.Asset) (FactMap, bool) {
	switch asset.Type {
	case schema.AssetDomain:
		rec, ok := e.inventory.DomainRecord(asset.Identifier)
		if !ok {
			return nil, false
		}
		return DomainFacts(rec), true
	case schema.AssetIP:
		rec, ok := e.inventory.IPRecord(asset.Identifier)
		if !ok {
			return nil, false
		}
		return IPFacts(rec), true
	case schema.AssetCertificate:
		info, ok := e.inventory.CertificateInfo(asset.Identifier)
		if !ok {
			return nil, false
		}
		return CertificateFacts(info), true
	default:
		return nil, false
	}
}

func (e *Engine) newViolation(rule *Rule, asset *assets.Asset, facts FactMap, policies []schema.Policy) *schema.Violation {
	now := time.Now().UTC()

	policyID, policyName := linkPolicy(rule.Framework, policies)

	snapshot, err := json.Marshal(facts)
	if err != nil {
		snapshot = []byte("{}")
	}

	title := rule.Title
	if title == "" {
		title = rule.Name
	}

	return &schema.Violation{
		ID:              uuid.New(),
		PolicyID:        policyID,
		PolicyName:      policyName,
		AssetID:         asset.ID,
		AssetType:       asset.Type,
		AssetIdentifier: asset.Identifier,
		Severity:        rule.Severity,
		Status:          schema.ViolationOpen,
		Title:           fmt.Sprintf("%s: %s", title, asset.Identifier),
		Description:     rule.Description,
		Evidence: []schema.Evidence{
			{
				Type:        rule.Evidence,
				Description: fmt.Sprintf("fact snapshot for %s", asset.Identifier),
				Data:        string(snapshot),
				Timestamp:   now,
			},
		},
		Remediation: []schema.RemediationAction{
			{
				Type:        schema.RemediationManual,
				Status:      schema.RemediationPending,
				Description: "Review and remediate " + rule.Name,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// linkPolicy attaches the nearest policy matching the rule's framework.
// When no policy matches, the sentinel system policy is used.
func linkPolicy(framework string, policies []schema.Policy) (string, string) {
	for _, p := range policies {
		if framework != "" && p.Framework == framework {
			return p.ID, p.Name
		}
	}
	return schema.SystemPolicyID, schema.SystemPolicyName
}
