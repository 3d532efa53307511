package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/yksanjo/ai-compliance-system/internal/api"
	"github.com/yksanjo/ai-compliance-system/internal/automation"
	"github.com/yksanjo/ai-compliance-system/internal/detection"
	"github.com/yksanjo/ai-compliance-system/internal/publisher"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
	"github.com/yksanjo/ai-compliance-system/internal/storage"
	"github.com/yksanjo/ai-compliance-system/internal/storage/s3"
)

// scanService ties a detection pass to playbook execution and archival.
type scanService struct {
	detection   *detection.Engine
	automation  *automation.Engine
	violations  *detection.Store
	validator   *schema.Validator
	policies    []schema.Policy
	batchWriter *storage.BatchWriter
	incArchiver *storage.IncidentArchiver
	evidence    *s3.EvidenceArchive
	events      *publisher.Publisher
	timeout     time.Duration
	logger      *slog.Logger
}

// RunScan performs one full detection-plus-automation pass.
func (s *scanService) RunScan(ctx context.Context) (api.ScanResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()

	found, err := s.detection.RunDetection(ctx, s.policies)
	if err != nil {
		return api.ScanResult{}, err
	}

	var result api.ScanResult
	stored := make([]*schema.Violation, 0, len(found))
	for _, v := range found {
		if err := s.validator.ValidateViolation(v); err != nil {
			s.logger.Warn("dropping invalid violation",
				"asset", v.AssetIdentifier,
				"error", err,
			)
			continue
		}

		s.violations.Add(v)
		stored = append(stored, v)
		result.Violations++

		if s.batchWriter != nil {
			if err := s.batchWriter.Write(v); err != nil {
				s.logger.Warn("failed to archive violation", "error", err)
			}
		}
		if s.events != nil {
			if err := s.events.PublishViolation(ctx, v); err != nil {
				s.logger.Warn("failed to publish violation", "error", err)
			}
		}

		incidents := s.automation.ExecutePlaybooks(ctx, v)
		result.Incidents += len(incidents)

		for _, inc := range incidents {
			if s.incArchiver != nil {
				if err := s.incArchiver.Write(ctx, inc); err != nil {
					s.logger.Warn("failed to archive incident", "error", err)
				}
			}
			if s.events != nil {
				if err := s.events.PublishIncident(ctx, inc); err != nil {
					s.logger.Warn("failed to publish incident", "error", err)
				}
			}
		}
	}

	if s.evidence != nil && len(stored) > 0 {
		if _, err := s.evidence.ArchiveViolations(ctx, stored); err != nil {
			s.logger.Warn("failed to archive evidence", "error", err)
		}
	}

	s.logger.Info("scan complete",
		"violations", result.Violations,
		"incidents", result.Incidents,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// archivingLedger mirrors ledger appends into ClickHouse. The primary
// ledger stays authoritative; archive failures are logged, not returned.
type archivingLedger struct {
	primary automation.LedgerStore
	archive *storage.LedgerArchiver
}

func (l *archivingLedger) Append(ctx context.Context, rec automation.ExecutionRecord) error {
	if err := l.primary.Append(ctx, rec); err != nil {
		return err
	}
	if err := l.archive.Write(ctx, rec); err != nil {
		slog.Warn("failed to archive ledger entry", "playbook", rec.PlaybookID, "error", err)
	}
	return nil
}

func (l *archivingLedger) Recent(ctx context.Context, n int) ([]automation.ExecutionRecord, error) {
	return l.primary.Recent(ctx, n)
}
