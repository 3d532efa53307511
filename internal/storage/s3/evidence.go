package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// EvidenceArchive bundles resolved violations into compressed archives
// and uploads them for long-term audit retention.
type EvidenceArchive struct {
	client *Client
	logger *slog.Logger
}

// NewEvidenceArchive creates an EvidenceArchive on top of an S3 client.
func NewEvidenceArchive(client *Client, logger *slog.Logger) *EvidenceArchive {
	return &EvidenceArchive{
		client: client,
		logger: logger,
	}
}

// archiveEntry is the persisted form of one violation's evidence.
type archiveEntry struct {
	ViolationID     string            `json:"violation_id"`
	PolicyID        string            `json:"policy_id"`
	Severity        string            `json:"severity"`
	AssetID         string            `json:"asset_id"`
	AssetType       string            `json:"asset_type"`
	AssetIdentifier string            `json:"asset_identifier"`
	Evidence        []schema.Evidence `json:"evidence"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Manifest describes one uploaded archive.
type Manifest struct {
	Key             string    `json:"key"`
	Location        string    `json:"location"`
	RecordCount     int       `json:"record_count"`
	CompressedBytes int       `json:"compressed_bytes"`
	CreatedAt       time.Time `json:"created_at"`
}

// ArchiveViolations compresses and uploads a batch of violations.
// The object key is date-partitioned so audits can locate evidence by day.
func (a *EvidenceArchive) ArchiveViolations(ctx context.Context, violations []*schema.Violation) (*Manifest, error) {
	if len(violations) == 0 {
		return nil, fmt.Errorf("s3: no violations to archive")
	}

	entries := make([]archiveEntry, len(violations))
	for i, v := range violations {
		entries[i] = archiveEntry{
			ViolationID:     v.ID.String(),
			PolicyID:        v.PolicyID,
			Severity:        string(v.Severity),
			AssetID:         v.AssetID,
			AssetType:       string(v.AssetType),
			AssetIdentifier: v.AssetIdentifier,
			Evidence:        v.Evidence,
			CreatedAt:       v.CreatedAt,
		}
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(entries); err != nil {
		return nil, fmt.Errorf("s3: failed to encode archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("s3: failed to compress archive: %w", err)
	}

	now := time.Now().UTC()
	key := path.Join(
		now.Format("2006/01/02"),
		fmt.Sprintf("violations-%s.json.gz", now.Format("150405")),
	)

	location, err := a.client.Upload(ctx, key, "application/gzip", buf.Bytes())
	if err != nil {
		return nil, err
	}

	a.logger.Info("archived violation evidence",
		"key", key,
		"count", len(entries),
		"compressed_bytes", buf.Len(),
	)

	return &Manifest{
		Key:             key,
		Location:        location,
		RecordCount:     len(entries),
		CompressedBytes: buf.Len(),
		CreatedAt:       now,
	}, nil
}

// ReadArchive downloads and decodes a previously uploaded archive.
func (a *EvidenceArchive) ReadArchive(ctx context.Context, key string) ([]schema.Violation, error) {
	data, err := a.client.Download(ctx, key)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("s3: failed to decompress archive %s: %w", key, err)
	}
	defer gz.Close()

	var entries []archiveEntry
	if err := json.NewDecoder(gz).Decode(&entries); err != nil {
		return nil, fmt.Errorf("s3: failed to decode archive %s: %w", key, err)
	}

	violations := make([]schema.Violation, 0, len(entries))
	for _, e := range entries {
		id, err := uuid.Parse(e.ViolationID)
		if err != nil {
			return nil, fmt.Errorf("s3: archive %s has invalid violation id %q: %w", key, e.ViolationID, err)
		}
		v := schema.Violation{
			ID:              id,
			PolicyID:        e.PolicyID,
			Severity:        schema.Severity(e.Severity),
			AssetID:         e.AssetID,
			AssetType:       schema.AssetType(e.AssetType),
			AssetIdentifier: e.AssetIdentifier,
			Evidence:        e.Evidence,
			CreatedAt:       e.CreatedAt,
		}
		violations = append(violations, v)
	}

	return violations, nil
}
