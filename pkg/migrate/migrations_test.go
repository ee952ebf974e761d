package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cabinetworks/contractor-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestOrdersMigrationEnforcesUniquenessAndSnapshotImmutability(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CONSTRAINT orders_proposal_id_key UNIQUE (proposal_id)",
		"CONSTRAINT orders_order_number_key UNIQUE (order_number)",
		"CREATE TABLE IF NOT EXISTS order_number_sequences",
		"RAISE EXCEPTION 'orders.snapshot is immutable'",
		"BEFORE UPDATE OF snapshot ON orders",
		"DROP TABLE IF EXISTS orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentsAndSessionsMigrationsCarryUniqueKeys(t *testing.T) {
	if content := readMigration(t, "*_create_payments.sql"); !strings.Contains(content, "CONSTRAINT payments_order_id_key UNIQUE (order_id)") {
		t.Errorf("payments migration must keep one payment per order")
	}
	if content := readMigration(t, "*_create_proposal_sessions.sql"); !strings.Contains(content, "CONSTRAINT proposal_sessions_token_hash_key UNIQUE (token_hash)") {
		t.Errorf("proposal sessions migration must keep token hashes unique")
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Order Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_order_notes.sql") {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBadFilenames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "orders.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename error")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
