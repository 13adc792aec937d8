// Package dbtest opens in-memory sqlite databases carrying the service schema
// for repository and service tests.
package dbtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL UNIQUE,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		customer_email TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		guests INTEGER NOT NULL,
		days INTEGER NOT NULL,
		delivery_type TEXT NOT NULL,
		delivery_date DATETIME,
		delivery_time TEXT,
		seller_id TEXT,
		configuration_id TEXT,
		language TEXT NOT NULL DEFAULT 'en',
		status TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE qr_configurations (
		id TEXT PRIMARY KEY,
		seller_id TEXT,
		is_global INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL,
		config TEXT NOT NULL,
		email_templates TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE qr_codes (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		seller_id TEXT,
		configuration_id TEXT,
		customer_name TEXT NOT NULL,
		customer_email TEXT NOT NULL,
		guests INTEGER NOT NULL,
		days INTEGER NOT NULL,
		cost TEXT NOT NULL DEFAULT '0',
		expires_at DATETIME NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		delivery_method TEXT NOT NULL DEFAULT 'DIRECT',
		language TEXT NOT NULL DEFAULT 'en',
		order_id TEXT,
		scheduled_qr_code_id TEXT UNIQUE,
		created_at DATETIME
	)`,
	`CREATE TABLE qr_code_analytics (
		qr_code_id TEXT PRIMARY KEY,
		welcome_email_sent INTEGER NOT NULL DEFAULT 0,
		welcome_email_sent_at DATETIME,
		rebuy_email_scheduled INTEGER NOT NULL DEFAULT 0,
		rebuy_email_claimed_at DATETIME,
		rebuy_email_sent_at DATETIME,
		language TEXT NOT NULL DEFAULT 'en',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE scheduled_qr_codes (
		id TEXT PRIMARY KEY,
		scheduled_for DATETIME NOT NULL,
		client_name TEXT NOT NULL,
		client_email TEXT NOT NULL,
		guests INTEGER NOT NULL,
		days INTEGER NOT NULL,
		seller_id TEXT,
		configuration_id TEXT,
		delivery_method TEXT NOT NULL DEFAULT 'DIRECT',
		order_id TEXT,
		language TEXT NOT NULL DEFAULT 'en',
		amount TEXT,
		is_processed INTEGER NOT NULL DEFAULT 0,
		processed_at DATETIME,
		created_qr_code_id TEXT,
		dispatch_message_id TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE email_templates (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		subject TEXT NOT NULL,
		html TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE default_email_templates (
		kind TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		updated_at DATETIME
	)`,
	`CREATE TABLE email_deliveries (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		qr_code_id TEXT,
		recipient TEXT NOT NULL,
		subject TEXT NOT NULL,
		status TEXT NOT NULL,
		provider TEXT NOT NULL,
		error TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		UNIQUE (event_type, aggregate_type, aggregate_id)
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a private in-memory database with every service table created.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
