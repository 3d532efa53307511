package schema

import (
	"time"

	"github.com/google/uuid"
)

// IncidentStatus tracks the lifecycle of an incident.
type IncidentStatus string

const (
	IncidentOpen          IncidentStatus = "open"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentMitigated     IncidentStatus = "mitigated"
	IncidentClosed        IncidentStatus = "closed"
)

// IsValid checks if the incident status is a valid value.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentOpen, IncidentInvestigating, IncidentMitigated, IncidentClosed:
		return true
	}
	return false
}

// Priority classifies incident urgency, P1 highest.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// IsValid checks if the priority is a valid value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4:
		return true
	}
	return false
}

// Raise returns the next more urgent priority, capped at P1.
func (p Priority) Raise() Priority {
	switch p {
	case PriorityP4:
		return PriorityP3
	case PriorityP3:
		return PriorityP2
	case PriorityP2, PriorityP1:
		return PriorityP1
	default:
		return p
	}
}

// PriorityForSeverity maps violation severity to incident priority.
func PriorityForSeverity(s Severity) Priority {
	switch s {
	case SeverityCritical:
		return PriorityP1
	case SeverityHigh:
		return PriorityP2
	case SeverityMedium:
		return PriorityP3
	default:
		return PriorityP4
	}
}

// IncidentEventType categorizes timeline events.
type IncidentEventType string

const (
	EventCreated      IncidentEventType = "created"
	EventUpdated      IncidentEventType = "updated"
	EventComment      IncidentEventType = "comment"
	EventStatusChange IncidentEventType = "status_change"
	EventAssignment   IncidentEventType = "assignment"
	EventEscalation   IncidentEventType = "escalation"
)

// IsValid checks if the event type is a valid value.
func (t IncidentEventType) IsValid() bool {
	switch t {
	case EventCreated, EventUpdated, EventComment, EventStatusChange,
		EventAssignment, EventEscalation:
		return true
	}
	return false
}

// IncidentEvent is one append-only timeline entry on an incident.
type IncidentEvent struct {
	ID          uuid.UUID         `json:"id"`
	Type        IncidentEventType `json:"type"`
	Description string            `json:"description"`
	Actor       string            `json:"actor"`
	Timestamp   time.Time         `json:"timestamp"`
	Data        map[string]any    `json:"data,omitempty"`
}

// Incident is a tracked response record created from one or more
// violations. The incident lifecycle manager exclusively owns incidents
// once created; all mutation routes through it.
type Incident struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Severity     Severity        `json:"severity"`
	Status       IncidentStatus  `json:"status"`
	Priority     Priority        `json:"priority"`
	Assignee     string          `json:"assignee,omitempty"`
	ViolationIDs []uuid.UUID     `json:"violation_ids"`
	Timeline     []IncidentEvent `json:"timeline"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
