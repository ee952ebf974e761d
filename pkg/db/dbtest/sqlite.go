// Package dbtest opens file-backed SQLite databases carrying the application
// schema, for repository and pipeline tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cabinetworks/contractor-backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS manufacturers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  email TEXT,
  auto_email_on_accept INTEGER NOT NULL DEFAULT 0,
  order_email_mode TEXT NOT NULL DEFAULT 'pdf',
  order_email_subject TEXT,
  order_email_body TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS catalog_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  manufacturer_id INTEGER NOT NULL,
  code TEXT NOT NULL,
  description TEXT,
  unit_price_cents INTEGER NOT NULL,
  assembly_fee_cents INTEGER NOT NULL,
  UNIQUE (manufacturer_id, code)
);`,
	`CREATE TABLE IF NOT EXISTS catalog_modifications (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  manufacturer_id INTEGER NOT NULL,
  code TEXT NOT NULL,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  UNIQUE (manufacturer_id, code)
);`,
	`CREATE TABLE IF NOT EXISTS "groups" (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  price_multiplier NUMERIC NOT NULL,
  features TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  email TEXT NOT NULL,
  name TEXT NOT NULL,
  role TEXT NOT NULL,
  group_id INTEGER,
  active INTEGER NOT NULL DEFAULT 1,
  password_hash TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS branding_settings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  company_name TEXT NOT NULL,
  header_text TEXT,
  footer_text TEXT,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS proposals (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  status TEXT NOT NULL,
  owner_group_id INTEGER NOT NULL,
  customer_id INTEGER NOT NULL,
  manufacturer_id INTEGER NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  items TEXT NOT NULL,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  delivery_cents INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  client_totals TEXT,
  sent_at DATETIME,
  accepted_at DATETIME,
  accepted_by_user_id INTEGER,
  accepted_via TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  proposal_id INTEGER NOT NULL,
  order_number TEXT NOT NULL,
  owner_group_id INTEGER NOT NULL,
  customer_id INTEGER NOT NULL,
  manufacturer_id INTEGER NOT NULL,
  status TEXT NOT NULL,
  parts_cents INTEGER NOT NULL,
  assembly_cents INTEGER NOT NULL,
  mods_cents INTEGER NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL,
  delivery_cents INTEGER NOT NULL,
  grand_total_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  accepted_via TEXT NOT NULL,
  accepted_by_user_id INTEGER,
  snapshot TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT orders_proposal_id_key UNIQUE (proposal_id),
  CONSTRAINT orders_order_number_key UNIQUE (order_number)
);`,
	`CREATE TABLE IF NOT EXISTS order_number_sequences (
  day TEXT PRIMARY KEY,
  last_value INTEGER NOT NULL,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS payments (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT payments_order_id_key UNIQUE (order_id)
);`,
	`CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  recipient_user_id INTEGER NOT NULL,
  type TEXT NOT NULL,
  priority TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  payload TEXT,
  is_read INTEGER NOT NULL DEFAULT 0,
  read_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
  id TEXT PRIMARY KEY,
  actor_type TEXT NOT NULL,
  actor_user_id INTEGER,
  actor_ref TEXT,
  action TEXT NOT NULL,
  target_type TEXT NOT NULL,
  target_id TEXT NOT NULL,
  diff TEXT,
  ip TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS proposal_sessions (
  id TEXT PRIMARY KEY,
  proposal_id INTEGER NOT NULL,
  token_hash TEXT NOT NULL,
  customer_email TEXT,
  expires_at DATETIME NOT NULL,
  created_by_user_id INTEGER,
  last_used_at DATETIME,
  created_at DATETIME,
  CONSTRAINT proposal_sessions_token_hash_key UNIQUE (token_hash)
);`,
}

// Open returns a fresh database in the test's temp dir with every table created.
// Writers take the lock at BEGIN so concurrent transactions serialize instead
// of failing with SQLITE_BUSY.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	conn := OpenEmpty(t)
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

// OpenEmpty returns a fresh database without any tables.
func OpenEmpty(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contractor.db")
	dsn := "file:" + path + "?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL"
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
