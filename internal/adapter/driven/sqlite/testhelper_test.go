package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
	"time"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() ensures isolation between parallel tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it's a safe SQLite URI filename component
	// and cannot be misinterpreted as query parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if _, err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// insertUser seeds a users row, standing in for the external account flow.
func insertUser(t *testing.T, db *DB, id, email string) {
	t.Helper()
	_, err := db.Writer.Exec(`INSERT INTO users (id, email) VALUES (?, ?)`, id, email)
	if err != nil {
		t.Fatalf("insert user %s: %v", id, err)
	}
}

// insertEntitlement seeds an entitlements row.
func insertEntitlement(t *testing.T, db *DB, userID, tier string) {
	t.Helper()
	_, err := db.Writer.Exec(`INSERT INTO entitlements (user_id, plan_tier) VALUES (?, ?)`, userID, tier)
	if err != nil {
		t.Fatalf("insert entitlement %s: %v", userID, err)
	}
}

// insertAPIKey seeds an api_keys row the way the key management flow would,
// storing only the digest of token. revokedAt may be nil.
func insertAPIKey(t *testing.T, db *DB, token, userID, name string, revokedAt *time.Time) {
	t.Helper()

	var revoked sql.NullString
	if revokedAt != nil {
		revoked = sql.NullString{String: formatTime(*revokedAt), Valid: true}
	}

	_, err := db.Writer.Exec(
		`INSERT INTO api_keys (token_hash, user_id, name, revoked_at) VALUES (?, ?, ?, ?)`,
		hashToken(token), userID, name, revoked,
	)
	if err != nil {
		t.Fatalf("insert api key for %s: %v", userID, err)
	}
}
