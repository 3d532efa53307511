package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionConfig holds configurable TTL settings for storage tables.
type RetentionConfig struct {
	ViolationsTTL time.Duration
	IncidentsTTL  time.Duration
	LedgerTTL     time.Duration
}

// DefaultRetentionConfig keeps violations and incidents for two years and
// the execution ledger for one, matching common audit retention windows.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		ViolationsTTL: 730 * 24 * time.Hour,
		IncidentsTTL:  730 * 24 * time.Hour,
		LedgerTTL:     365 * 24 * time.Hour,
	}
}

// RetentionManager applies and manages data retention policies.
type RetentionManager struct {
	client *ClickHouseClient
	config RetentionConfig
}

// NewRetentionManager creates a new retention manager.
func NewRetentionManager(client *ClickHouseClient, config RetentionConfig) *RetentionManager {
	return &RetentionManager{
		client: client,
		config: config,
	}
}

// ApplyTTLs updates TTL settings on all tables to match the configured
// retention periods. This should be called after migrations have run.
func (r *RetentionManager) ApplyTTLs(ctx context.Context) error {
	type tablePolicy struct {
		table  string
		column string
		ttl    time.Duration
	}

	policies := []tablePolicy{
		{"violations", "created_at", r.config.ViolationsTTL},
		{"incidents", "created_at", r.config.IncidentsTTL},
		{"execution_ledger", "executed_at", r.config.LedgerTTL},
	}

	for _, p := range policies {
		if p.ttl <= 0 {
			continue
		}

		days := TTLDays(p.ttl)

		query := fmt.Sprintf(
			"ALTER TABLE %s MODIFY TTL %s + INTERVAL %d DAY DELETE",
			p.table, p.column, days,
		)

		if err := r.client.Exec(ctx, query); err != nil {
			return WrapQueryError("ApplyTTLs", p.table, err)
		}

		slog.Info("applied retention policy",
			"table", p.table,
			"ttl_days", days,
		)
	}

	return nil
}

// TTLDays converts a retention duration to whole days, minimum one.
func TTLDays(ttl time.Duration) int {
	days := int(ttl.Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}
