package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yksanjo/ai-compliance-system/internal/incident"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// ErrPlaybookNotFound is returned when a playbook id does not exist.
var ErrPlaybookNotFound = errors.New("playbook not found")

// Engine owns the playbook registry and orchestrates execution.
// Playbooks run strictly sequentially in registration order within one
// ExecutePlaybooks call; a second concurrent call is safe but the two
// calls interleave only between playbook runs, never within one.
// Registry reads hand out snapshot copies, so registered playbooks are
// mutated only under the engine lock.
type Engine struct {
	mu        sync.RWMutex
	playbooks map[string]*Playbook
	order     []string

	executor  *Executor
	incidents *incident.Manager
	ledger    LedgerStore
	logger    *slog.Logger
}

// NewEngine creates a playbook engine.
func NewEngine(executor *Executor, incidents *incident.Manager, ledger LedgerStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		playbooks: make(map[string]*Playbook),
		executor:  executor,
		incidents: incidents,
		ledger:    ledger,
		logger:    logger,
	}
}

// AddPlaybook registers a playbook. Evaluation order is registration
// order; re-adding an existing id replaces it in place.
func (e *Engine) AddPlaybook(p *Playbook) error {
	if err := p.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.playbooks[p.ID]; !exists {
		e.order = append(e.order, p.ID)
	}
	e.playbooks[p.ID] = p
	return nil
}

// RemovePlaybook deletes a playbook.
func (e *Engine) RemovePlaybook(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.playbooks[id]; !ok {
		return ErrPlaybookNotFound
	}
	delete(e.playbooks, id)
	for i, pid := range e.order {
		if pid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled toggles a playbook.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.playbooks[id]
	if !ok {
		return ErrPlaybookNotFound
	}
	p.Enabled = enabled
	return nil
}

// GetPlaybook returns a snapshot of a playbook by id.
func (e *Engine) GetPlaybook(id string) (*Playbook, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.playbooks[id]
	if !ok {
		return nil, false
	}
	return p.snapshot(), true
}

// Playbooks returns snapshots of all playbooks in registration order.
func (e *Engine) Playbooks() []*Playbook {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*Playbook, 0, len(e.order))
	for _, id := range e.order {
		result = append(result, e.playbooks[id].snapshot())
	}
	return result
}

// ExecutePlaybooks runs every enabled, matching playbook for a
// violation and returns the incidents bound during those runs. A
// failing run is recorded in the ledger and logged but never prevents
// sibling playbooks from running.
func (e *Engine) ExecutePlaybooks(ctx context.Context, v *schema.Violation) []*schema.Incident {
	var incidents []*schema.Incident

	for _, p := range e.Playbooks() {
		if !p.Enabled || !ShouldTrigger(p, v) {
			continue
		}

		incidentID, bound, err := e.runPlaybook(ctx, p, v)

		now := time.Now().UTC()
		e.mu.Lock()
		if live, ok := e.playbooks[p.ID]; ok {
			live.LastRun = &now
		}
		e.mu.Unlock()

		result := ResultSuccess
		if err != nil {
			result = ResultFailure
			e.logger.Error("playbook run failed",
				"playbook", p.ID,
				"violation", v.ID,
				"error", err)
		}

		if lerr := e.ledger.Append(ctx, ExecutionRecord{
			PlaybookID: p.ID,
			ExecutedAt: now,
			Result:     result,
		}); lerr != nil {
			e.logger.Error("failed to append ledger record", "playbook", p.ID, "error", lerr)
		}

		if bound {
			if inc, gerr := e.incidents.Get(incidentID); gerr == nil {
				incidents = append(incidents, inc)
			}
		}
	}

	return incidents
}

// runPlaybook isolates one playbook run: a panic inside a step handler
// is converted into a run failure instead of taking down the scan.
func (e *Engine) runPlaybook(ctx context.Context, p *Playbook, v *schema.Violation) (incidentID uuid.UUID, bound bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("playbook panicked: %v", r)
		}
	}()

	e.logger.Info("executing playbook",
		"playbook", p.ID,
		"violation", v.ID,
		"severity", v.Severity)

	return e.executor.Execute(ctx, p, v)
}

// Stats summarizes engine state.
func (e *Engine) Stats(ctx context.Context) map[string]any {
	e.mu.RLock()
	total := len(e.playbooks)
	enabled := 0
	for _, p := range e.playbooks {
		if p.Enabled {
			enabled++
		}
	}
	e.mu.RUnlock()

	recent, _ := e.ledger.Recent(ctx, 100)
	failures := 0
	for _, rec := range recent {
		if rec.Result == ResultFailure {
			failures++
		}
	}

	return map[string]any{
		"playbook_count": total,
		"enabled_count":  enabled,
		"recent_runs":    len(recent),
		"recent_failed":  failures,
		"incident_count": e.incidents.Count(),
	}
}
