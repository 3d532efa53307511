package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the outcome of one playbook run.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// ExecutionRecord is one append-only ledger entry.
type ExecutionRecord struct {
	PlaybookID string    `json:"playbook_id"`
	ExecutedAt time.Time `json:"executed_at"`
	Result     Result    `json:"result"`
}

// LedgerStore persists execution records. Recent returns the
// most-recent-n suffix, newest first.
type LedgerStore interface {
	Append(ctx context.Context, rec ExecutionRecord) error
	Recent(ctx context.Context, n int) ([]ExecutionRecord, error)
}

// MemoryLedger is a bounded in-memory ledger. Once capacity is reached
// the oldest entries are overwritten; the ledger keeps a recent suffix,
// not full history.
type MemoryLedger struct {
	mu     sync.Mutex
	buffer []ExecutionRecord
	size   int
	head   int
	count  int
}

// NewMemoryLedger creates a ledger holding up to size entries.
func NewMemoryLedger(size int) *MemoryLedger {
	if size <= 0 {
		size = 1000
	}
	return &MemoryLedger{
		buffer: make([]ExecutionRecord, size),
		size:   size,
	}
}

// Append records an execution outcome.
func (l *MemoryLedger) Append(_ context.Context, rec ExecutionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer[l.head] = rec
	l.head = (l.head + 1) % l.size
	if l.count < l.size {
		l.count++
	}
	return nil
}

// Recent returns up to n records, newest first.
func (l *MemoryLedger) Recent(_ context.Context, n int) ([]ExecutionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > l.count {
		n = l.count
	}

	result := make([]ExecutionRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.head - i + l.size) % l.size
		result = append(result, l.buffer[idx])
	}
	return result, nil
}

// Len returns the number of retained records.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// RedisLedger persists execution records to a capped Redis list so the
// ledger survives process restarts and is shared across instances.
type RedisLedger struct {
	client *redis.Client
	key    string
	max    int64
}

// RedisLedgerConfig configures the Redis-backed ledger.
type RedisLedgerConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	Key        string        `yaml:"key"`
	MaxEntries int64         `yaml:"max_entries"`
	DialPing   time.Duration `yaml:"dial_ping"`
}

// DefaultRedisLedgerConfig returns the default Redis ledger configuration.
func DefaultRedisLedgerConfig() RedisLedgerConfig {
	return RedisLedgerConfig{
		Addr:       "localhost:6379",
		Key:        "compliance:execution_ledger",
		MaxEntries: 10000,
		DialPing:   5 * time.Second,
	}
}

// NewRedisLedger creates a Redis-backed ledger and verifies connectivity.
func NewRedisLedger(cfg RedisLedgerConfig) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialPing)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = "compliance:execution_ledger"
	}
	max := cfg.MaxEntries
	if max <= 0 {
		max = 10000
	}

	return &RedisLedger{client: client, key: key, max: max}, nil
}

// Append pushes the record and trims the list to the configured cap.
func (l *RedisLedger) Append(ctx context.Context, rec ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger record: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, l.key, data)
	pipe.LTrim(ctx, l.key, 0, l.max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append ledger record: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (l *RedisLedger) Recent(ctx context.Context, n int) ([]ExecutionRecord, error) {
	if n <= 0 {
		n = int(l.max)
	}

	raw, err := l.client.LRange(ctx, l.key, 0, int64(n-1)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	result := make([]ExecutionRecord, 0, len(raw))
	for _, item := range raw {
		var rec ExecutionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

// Close releases the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
