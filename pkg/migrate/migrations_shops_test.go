package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mercadolocal/mercadito-backend/pkg/migrate"
)

func TestShopsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_shops.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no shops migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS shops",
		"CONSTRAINT ux_shops_owner UNIQUE (owner_id)",
		"CONSTRAINT ux_shops_slug UNIQUE (slug)",
		"CHECK (shipping_flat_fee_cents >= 0)",
		"FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS shops",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestWebhookEventsMigrationContainsLedgerConstraint(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_stripe_webhook_events.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no webhook events migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stripe_webhook_events",
		"CONSTRAINT ux_stripe_webhook_events_event UNIQUE (event_id)",
		"DROP TABLE IF EXISTS stripe_webhook_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
