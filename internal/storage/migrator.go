package storage

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationsTable tracks which schema versions have been applied to
// the compliance database.
const migrationsTable = "schema_migrations"

// Migration is one embedded schema file, named NNN_description.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator brings the ClickHouse schema for violations, incidents and
// the execution ledger up to the current version. Applied versions are
// recorded so re-running on an existing database is a no-op.
type Migrator struct {
	client *ClickHouseClient
}

// NewMigrator creates a migrator for the given client.
func NewMigrator(client *ClickHouseClient) *Migrator {
	return &Migrator{client: client}
}

// Run applies every pending migration in version order.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to create %s: %w", migrationsTable, err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.Version] {
			slog.Debug("migration already applied",
				"version", mig.Version, "name", mig.Name)
			continue
		}

		slog.Info("applying migration",
			"version", mig.Version, "name", mig.Name)

		for _, stmt := range splitStatements(mig.SQL) {
			if err := m.client.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %03d_%s: %w", mig.Version, mig.Name, err)
			}
		}

		if err := m.client.Exec(ctx,
			fmt.Sprintf("INSERT INTO %s (version, name) VALUES (?, ?)", migrationsTable),
			uint32(mig.Version), mig.Name,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}
	}

	return nil
}

// Applied returns the migrations recorded as applied, oldest first.
func (m *Migrator) Applied(ctx context.Context) ([]Migration, error) {
	rows, err := m.client.Query(ctx,
		fmt.Sprintf("SELECT version, name FROM %s ORDER BY version", migrationsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var migrations []Migration
	for rows.Next() {
		var version uint32
		var name string
		if err := rows.Scan(&version, &name); err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{Version: int(version), Name: name})
	}
	return migrations, nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	return m.client.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version UInt32,
			name String,
			applied_at DateTime DEFAULT now()
		)
		ENGINE = MergeTree()
		ORDER BY version
	`, migrationsTable))
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.client.Query(ctx,
		fmt.Sprintf("SELECT version FROM %s", migrationsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version uint32
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[int(version)] = true
	}
	return applied, nil
}

// loadMigrations reads the embedded schema files, sorted by version.
// Files that do not match the NNN_description.sql pattern are ignored.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, entry := range entries {
		version, name, ok := parseMigrationName(entry.Name())
		if !ok {
			continue
		}

		content, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    name,
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationName extracts the version and description from a
// filename like 001_initial_schema.sql.
func parseMigrationName(filename string) (int, string, bool) {
	if !strings.HasSuffix(filename, ".sql") {
		return 0, "", false
	}
	var version int
	var rest string
	if _, err := fmt.Sscanf(filename, "%03d_%s", &version, &rest); err != nil {
		return 0, "", false
	}
	return version, strings.TrimSuffix(rest, ".sql"), true
}

// splitStatements breaks a migration file into executable statements.
// ClickHouse accepts one statement per Exec call, so files are split
// on semicolons outside string literals. Full-line comments are
// dropped first; otherwise a leading comment would swallow the
// statement that follows it.
func splitStatements(sql string) []string {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var statements []string
	var quote rune
	runes := []rune(strings.Join(kept, "\n"))
	start := 0
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case quote != 0:
			if ch == quote {
				if i+1 < len(runes) && runes[i+1] == quote {
					i++ // doubled quote stays inside the literal
					continue
				}
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == ';':
			if stmt := strings.TrimSpace(string(runes[start:i])); stmt != "" {
				statements = append(statements, stmt)
			}
			start = i + 1
		}
	}
	if stmt := strings.TrimSpace(string(runes[start:])); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}
