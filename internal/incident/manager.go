// Package incident owns the incident lifecycle. Incidents are created
// from violations and mutated only through this manager so the timeline
// stays consistent.
package incident

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// ErrIncidentNotFound is returned when an incident id does not exist.
var ErrIncidentNotFound = errors.New("incident not found")

// Update holds the fields UpdateIncident may change. Nil fields are
// left untouched (shallow merge).
type Update struct {
	Title       *string
	Description *string
	Status      *schema.IncidentStatus
	Priority    *schema.Priority
	Assignee    *string
}

// Manager owns all incidents. All access is mutex-guarded.
type Manager struct {
	mu        sync.RWMutex
	incidents map[uuid.UUID]*schema.Incident
	order     []uuid.UUID
	logger    *slog.Logger
}

// NewManager creates an incident manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		incidents: make(map[uuid.UUID]*schema.Incident),
		logger:    logger,
	}
}

// CreateFromViolation creates a new incident for a violation. Title,
// description, and severity are inherited; priority derives from
// severity; the timeline is seeded with a single created event.
func (m *Manager) CreateFromViolation(v *schema.Violation) *schema.Incident {
	now := time.Now().UTC()

	inc := &schema.Incident{
		ID:           uuid.New(),
		Title:        v.Title,
		Description:  v.Description,
		Severity:     v.Severity,
		Status:       schema.IncidentOpen,
		Priority:     schema.PriorityForSeverity(v.Severity),
		ViolationIDs: []uuid.UUID{v.ID},
		Timeline: []schema.IncidentEvent{
			{
				ID:          uuid.New(),
				Type:        schema.EventCreated,
				Description: "Incident created from violation " + v.ID.String(),
				Actor:       "automation",
				Timestamp:   now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.incidents[inc.ID] = inc
	m.order = append(m.order, inc.ID)
	m.mu.Unlock()

	m.logger.Info("incident created",
		"incident", inc.ID,
		"violation", v.ID,
		"severity", inc.Severity,
		"priority", inc.Priority)

	return m.snapshot(inc)
}

// AddEvent appends a timeline event and refreshes UpdatedAt. This is
// the only sanctioned path for timeline mutation.
func (m *Manager) AddEvent(id uuid.UUID, typ schema.IncidentEventType, description, actor string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inc, ok := m.incidents[id]
	if !ok {
		return ErrIncidentNotFound
	}

	now := touch(inc)
	inc.Timeline = append(inc.Timeline, schema.IncidentEvent{
		ID:          uuid.New(),
		Type:        typ,
		Description: description,
		Actor:       actor,
		Timestamp:   now,
		Data:        data,
	})
	return nil
}

// UpdateIncident applies a shallow field merge and refreshes UpdatedAt.
// It does not append a timeline event; callers needing an audit trail
// call AddEvent explicitly.
func (m *Manager) UpdateIncident(id uuid.UUID, upd Update) (*schema.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}

	if upd.Title != nil {
		inc.Title = *upd.Title
	}
	if upd.Description != nil {
		inc.Description = *upd.Description
	}
	if upd.Status != nil {
		inc.Status = *upd.Status
	}
	if upd.Priority != nil {
		inc.Priority = *upd.Priority
	}
	if upd.Assignee != nil {
		inc.Assignee = *upd.Assignee
	}
	touch(inc)

	return m.snapshot(inc), nil
}

// LinkViolation attaches an additional violation to an incident.
func (m *Manager) LinkViolation(id, violationID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inc, ok := m.incidents[id]
	if !ok {
		return ErrIncidentNotFound
	}
	for _, vid := range inc.ViolationIDs {
		if vid == violationID {
			return nil
		}
	}
	inc.ViolationIDs = append(inc.ViolationIDs, violationID)
	touch(inc)
	return nil
}

// Escalate raises the incident priority one level and appends an
// escalation timeline event.
func (m *Manager) Escalate(id uuid.UUID, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inc, ok := m.incidents[id]
	if !ok {
		return ErrIncidentNotFound
	}

	prev := inc.Priority
	inc.Priority = inc.Priority.Raise()

	now := touch(inc)
	inc.Timeline = append(inc.Timeline, schema.IncidentEvent{
		ID:          uuid.New(),
		Type:        schema.EventEscalation,
		Description: "Incident escalated",
		Actor:       actor,
		Timestamp:   now,
		Data: map[string]any{
			"previous_priority": string(prev),
			"new_priority":      string(inc.Priority),
		},
	})
	return nil
}

// Get returns an incident by id, or ErrIncidentNotFound.
func (m *Manager) Get(id uuid.UUID) (*schema.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	return m.snapshot(inc), nil
}

// List returns all incidents in creation order.
func (m *Manager) List() []*schema.Incident {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*schema.Incident, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.snapshot(m.incidents[id]))
	}
	return result
}

// Count returns the number of incidents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.incidents)
}

// touch refreshes UpdatedAt and returns the new timestamp. When the
// clock has not advanced since the last mutation, the timestamp is
// bumped by a nanosecond so UpdatedAt stays strictly increasing.
// Callers must hold the write lock.
func touch(inc *schema.Incident) time.Time {
	now := time.Now().UTC()
	if !now.After(inc.UpdatedAt) {
		now = inc.UpdatedAt.Add(time.Nanosecond)
	}
	inc.UpdatedAt = now
	return now
}

// snapshot returns a copy with its own timeline slice so callers
// cannot mutate managed state. Callers must hold at least a read lock.
func (m *Manager) snapshot(inc *schema.Incident) *schema.Incident {
	cp := *inc
	cp.Timeline = make([]schema.IncidentEvent, len(inc.Timeline))
	copy(cp.Timeline, inc.Timeline)
	cp.ViolationIDs = make([]uuid.UUID, len(inc.ViolationIDs))
	copy(cp.ViolationIDs, inc.ViolationIDs)
	return &cp
}
