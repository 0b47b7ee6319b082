package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/ainternet/ainthub/internal/models"
)

func openTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, dbPath
}

func TestOpenCreatesDatabase(t *testing.T) {
	_, dbPath := openTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestMigrationsApplied(t *testing.T) {
	d, _ := openTestDB(t)

	tables := []string{"schema_migrations", "agents", "messages", "trust_signals", "admin_keys"}
	for _, table := range tables {
		var name string
		err := d.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	d, _ := openTestDB(t)

	var fkEnabled int
	if err := d.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("PRAGMA foreign_keys failed: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys not enabled")
	}
}

func TestTrustSignalsCascadeDelete(t *testing.T) {
	d, _ := openTestDB(t)

	id, err := CreateAgent(d, &models.Agent{
		Domain:       "cascade.aint",
		TrustScore:   0.3,
		Tier:         models.TierSandbox,
		Status:       models.StatusActive,
		KeyPrefix:    "abcdefgh1234",
		KeyHash:      []byte("hash"),
		RegisteredAt: 1700000000,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	_, err = d.Exec("INSERT INTO trust_signals (agent_id, kind, magnitude, occurred_at) VALUES (?, 'error', -0.05, 1700000000)", id)
	if err != nil {
		t.Fatalf("insert trust signal: %v", err)
	}

	if _, err := d.Exec("DELETE FROM agents WHERE id=?", id); err != nil {
		t.Fatalf("delete agent: %v", err)
	}

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM trust_signals WHERE agent_id=?", id).Scan(&count); err != nil {
		t.Fatalf("count trust signals: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 trust signals after cascade delete, got %d", count)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     int
		wantErr  bool
	}{
		{"valid", "001_initial.sql", 1, false},
		{"valid large", "123_add_column.sql", 123, false},
		{"missing underscore", "001.sql", 0, true},
		{"empty prefix", "_initial.sql", 0, true},
		{"non-numeric prefix", "abc_initial.sql", 0, true},
		{"empty string", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVersion(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseVersion(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("parseVersion(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
