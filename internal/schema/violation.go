// Package schema defines the canonical compliance data model.
// Detected violations, monitored asset facts, and incidents all share
// these structures across the detection and automation engines.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies how serious a violation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// IsValid checks if the severity is a valid value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Rank returns an ordering for severities, highest first.
// Critical is 0 so that lower rank means more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}

// AssetType identifies the kind of monitored asset a violation targets.
type AssetType string

const (
	AssetDomain        AssetType = "domain"
	AssetIP            AssetType = "ip"
	AssetCertificate   AssetType = "certificate"
	AssetCloudResource AssetType = "cloud_resource"
)

// IsValid checks if the asset type is a valid value.
func (a AssetType) IsValid() bool {
	switch a {
	case AssetDomain, AssetIP, AssetCertificate, AssetCloudResource:
		return true
	}
	return false
}

// ViolationStatus tracks the lifecycle of a violation.
type ViolationStatus string

const (
	ViolationOpen          ViolationStatus = "open"
	ViolationInvestigating ViolationStatus = "investigating"
	ViolationRemediating   ViolationStatus = "remediating"
	ViolationResolved      ViolationStatus = "resolved"
	ViolationFalsePositive ViolationStatus = "false_positive"
)

// IsValid checks if the violation status is a valid value.
func (v ViolationStatus) IsValid() bool {
	switch v {
	case ViolationOpen, ViolationInvestigating, ViolationRemediating,
		ViolationResolved, ViolationFalsePositive:
		return true
	}
	return false
}

// order returns the forward progression index of a status.
// FalsePositive sits outside the normal progression and is reachable
// from any state.
func (v ViolationStatus) order() int {
	switch v {
	case ViolationOpen:
		return 0
	case ViolationInvestigating:
		return 1
	case ViolationRemediating:
		return 2
	case ViolationResolved:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo reports whether a status change is permitted.
// Transitions only move forward, except false_positive which is
// reachable from any state.
func (v ViolationStatus) CanTransitionTo(next ViolationStatus) bool {
	if !next.IsValid() {
		return false
	}
	if next == ViolationFalsePositive {
		return true
	}
	if v == ViolationFalsePositive {
		return false
	}
	return next.order() > v.order()
}

// SystemPolicyID is the sentinel policy reference attached to violations
// generated without a matching policy document.
const SystemPolicyID = "system"

// SystemPolicyName is the display name for the sentinel policy.
const SystemPolicyName = "System Detection"

// RemediationType distinguishes manual from automated remediation.
type RemediationType string

const (
	RemediationManual    RemediationType = "manual"
	RemediationAutomated RemediationType = "automated"
)

// RemediationStatus tracks remediation action progress.
type RemediationStatus string

const (
	RemediationPending    RemediationStatus = "pending"
	RemediationInProgress RemediationStatus = "in_progress"
	RemediationCompleted  RemediationStatus = "completed"
	RemediationFailed     RemediationStatus = "failed"
)

// Evidence captures a raw fact snapshot supporting a violation.
type Evidence struct {
	Type        string    `json:"type" validate:"required,max=128"`
	Description string    `json:"description" validate:"max=1024"`
	Data        string    `json:"data,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RemediationAction describes a remediation attached to a violation.
type RemediationAction struct {
	Type        RemediationType   `json:"type" validate:"required,oneof=manual automated"`
	Status      RemediationStatus `json:"status" validate:"required,oneof=pending in_progress completed failed"`
	Description string            `json:"description" validate:"max=1024"`
}

// Violation represents a detected deviation between observed
// infrastructure state and a compliance expectation.
type Violation struct {
	ID              uuid.UUID           `json:"id" validate:"required"`
	PolicyID        string              `json:"policy_id" validate:"required,max=256"`
	PolicyName      string              `json:"policy_name" validate:"max=512"`
	AssetID         string              `json:"asset_id" validate:"required,max=256"`
	AssetType       AssetType           `json:"asset_type" validate:"required,oneof=domain ip certificate cloud_resource"`
	AssetIdentifier string              `json:"asset_identifier" validate:"required,max=512"`
	Severity        Severity            `json:"severity" validate:"required,oneof=critical high medium low info"`
	Status          ViolationStatus     `json:"status" validate:"required,oneof=open investigating remediating resolved false_positive"`
	Title           string              `json:"title" validate:"required,max=512"`
	Description     string              `json:"description" validate:"max=4096"`
	Evidence        []Evidence          `json:"evidence,omitempty"`
	Remediation     []RemediationAction `json:"remediation,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	ResolvedAt      *time.Time          `json:"resolved_at,omitempty"`
}

// Policy is the reference shape of a compliance policy document.
// Policy ingestion is an external concern; the engine only links
// violations to a policy id/name pair.
type Policy struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Framework string `json:"framework,omitempty"`
}
