package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/elocalpass/elocalpass-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestQRCodesMigrationGuardsScheduledIssuance(t *testing.T) {
	content := readMigration(t, "create_qr_codes_tables")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS qr_codes",
		"CREATE TABLE IF NOT EXISTS qr_code_analytics",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_qr_codes_scheduled_qr_code_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_qr_codes_code",
		"rebuy_email_sent_at timestamptz",
		"rebuy_email_claimed_at timestamptz",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestScheduledMigrationKeepsProcessedFieldsTogether(t *testing.T) {
	content := readMigration(t, "create_scheduled_qr_codes_table")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS scheduled_qr_codes",
		"CONSTRAINT ck_scheduled_qr_codes_processed",
		"idx_scheduled_qr_codes_pending ON scheduled_qr_codes (scheduled_for, id) WHERE NOT is_processed",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestDefaultTemplatesSeeded(t *testing.T) {
	content := readMigration(t, "seed_default_email_templates")

	for _, token := range []string{
		"{customerName}", "{qrCode}", "{guests}", "{days}", "{hoursLeft}",
		"{qrExpirationTimestamp}", "{customerPortalUrl}", "{rebuyUrl}", "{magicLink}",
	} {
		if !strings.Contains(content, token) {
			t.Errorf("default templates missing token %s", token)
		}
	}
	if !strings.Contains(content, "INSERT INTO default_email_templates") {
		t.Errorf("default template pointers not seeded")
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Rebuy Discount!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_rebuy_discount.sql") {
		t.Fatalf("unexpected migration path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration failed validation: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateEmbedded(); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestCreateSQLMigrationBumpsPastNewestVersion(t *testing.T) {
	dir := t.TempDir()
	future := "29991231235959_future_change.sql"
	if err := os.WriteFile(filepath.Join(dir, future), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("seed migration: %v", err)
	}

	path, err := migrate.CreateSQLMigration(dir, "next")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if got := filepath.Base(path); got != "30000101000000_next.sql" {
		t.Fatalf("unexpected version bump %q", got)
	}
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_broken.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("seed migration: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected unbalanced statement blocks to fail validation")
	}
}
