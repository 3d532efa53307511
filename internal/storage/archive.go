package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yksanjo/ai-compliance-system/internal/automation"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// IncidentArchiver writes incident snapshots to the incidents table.
type IncidentArchiver struct {
	client *ClickHouseClient
}

// NewIncidentArchiver creates a new IncidentArchiver.
func NewIncidentArchiver(client *ClickHouseClient) *IncidentArchiver {
	return &IncidentArchiver{client: client}
}

// Write stores a single incident snapshot.
func (ia *IncidentArchiver) Write(ctx context.Context, inc *schema.Incident) error {
	timeline, _ := json.Marshal(inc.Timeline)
	violationIDs := make([]string, len(inc.ViolationIDs))
	for i, id := range inc.ViolationIDs {
		violationIDs[i] = id.String()
	}

	query := `
		INSERT INTO incidents (
			incident_id, title, description, severity, priority, status,
			assignee, violation_ids, timeline, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if err := ia.client.Exec(ctx, query,
		inc.ID,
		inc.Title,
		inc.Description,
		string(inc.Severity),
		string(inc.Priority),
		string(inc.Status),
		inc.Assignee,
		violationIDs,
		string(timeline),
		inc.CreatedAt,
		inc.UpdatedAt,
	); err != nil {
		return WrapQueryError("Write", "incidents", err)
	}
	return nil
}

// LedgerArchiver writes playbook execution records to the execution_ledger table.
type LedgerArchiver struct {
	client *ClickHouseClient
}

// NewLedgerArchiver creates a new LedgerArchiver.
func NewLedgerArchiver(client *ClickHouseClient) *LedgerArchiver {
	return &LedgerArchiver{client: client}
}

// Write stores a single execution record.
func (la *LedgerArchiver) Write(ctx context.Context, rec automation.ExecutionRecord) error {
	query := `
		INSERT INTO execution_ledger (playbook_id, executed_at, result)
		VALUES (?, ?, ?)
	`

	if err := la.client.Exec(ctx, query,
		rec.PlaybookID,
		rec.ExecutedAt,
		string(rec.Result),
	); err != nil {
		return WrapQueryError("Write", "execution_ledger", err)
	}
	return nil
}

// RecentExecutions fetches the most recent execution records, newest first.
func (la *LedgerArchiver) RecentExecutions(ctx context.Context, limit int) ([]automation.ExecutionRecord, error) {
	rows, err := la.client.Query(ctx, `
		SELECT playbook_id, executed_at, result
		FROM execution_ledger
		ORDER BY executed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, WrapQueryError("RecentExecutions", "execution_ledger", err)
	}
	defer rows.Close()

	var records []automation.ExecutionRecord
	for rows.Next() {
		var (
			playbookID string
			executedAt time.Time
			result     string
		)
		if err := rows.Scan(&playbookID, &executedAt, &result); err != nil {
			return nil, WrapQueryError("RecentExecutions", "execution_ledger", err)
		}
		records = append(records, automation.ExecutionRecord{
			PlaybookID: playbookID,
			ExecutedAt: executedAt,
			Result:     automation.Result(result),
		})
	}

	return records, nil
}
