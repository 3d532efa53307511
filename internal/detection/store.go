package detection

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

var (
	// ErrViolationNotFound is returned when a violation id does not exist.
	ErrViolationNotFound = errors.New("violation not found")
	// ErrInvalidTransition is returned for disallowed status changes.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store holds detected violations. All access is mutex-guarded.
type Store struct {
	mu         sync.RWMutex
	violations map[uuid.UUID]*schema.Violation
	order      []uuid.UUID
}

// NewStore creates an empty violation store.
func NewStore() *Store {
	return &Store{
		violations: make(map[uuid.UUID]*schema.Violation),
	}
}

// Add records a violation.
func (s *Store) Add(v *schema.Violation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.violations[v.ID]; !exists {
		s.order = append(s.order, v.ID)
	}
	s.violations[v.ID] = v
}

// Get returns a violation by id, or ErrViolationNotFound.
func (s *Store) Get(id uuid.UUID) (*schema.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.violations[id]
	if !ok {
		return nil, ErrViolationNotFound
	}
	cp := *v
	return &cp, nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status    schema.ViolationStatus
	Severity  schema.Severity
	AssetType schema.AssetType
}

// List returns violations in insertion order, optionally filtered.
func (s *Store) List(filter ListFilter) []*schema.Violation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*schema.Violation
	for _, id := range s.order {
		v := s.violations[id]
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && v.Severity != filter.Severity {
			continue
		}
		if filter.AssetType != "" && v.AssetType != filter.AssetType {
			continue
		}
		cp := *v
		result = append(result, &cp)
	}
	return result
}

// SetStatus transitions a violation's status. Transitions only move
// forward, except false_positive which is reachable from any state.
// Resolving stamps ResolvedAt.
func (s *Store) SetStatus(id uuid.UUID, status schema.ViolationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.violations[id]
	if !ok {
		return ErrViolationNotFound
	}
	if !v.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, status)
	}

	now := time.Now().UTC()
	v.Status = status
	v.UpdatedAt = now
	if status == schema.ViolationResolved {
		v.ResolvedAt = &now
	}
	return nil
}

// Count returns the number of stored violations.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.violations)
}
