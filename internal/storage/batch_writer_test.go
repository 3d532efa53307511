package storage

import (
	"testing"
	"time"
)

func TestDefaultBatchWriterConfig(t *testing.T) {
	cfg := DefaultBatchWriterConfig()
	if cfg.BatchSize != 500 {
		t.Errorf("batch size = %d", cfg.BatchSize)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("flush interval = %v", cfg.FlushInterval)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("max retries = %d", cfg.MaxRetries)
	}
}
