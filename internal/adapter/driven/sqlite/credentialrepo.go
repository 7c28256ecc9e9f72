package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/oriphim/devicetoken/internal/domain/model"
	"github.com/oriphim/devicetoken/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Plaintext API keys are never stored: rows are keyed by the hex SHA-256 digest
// of the key, and lookups hash the presented value before matching.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// FindByToken returns the API key matching token, or nil, nil if none exists.
func (r *CredentialRepo) FindByToken(ctx context.Context, token string) (*model.Credential, error) {
	const query = `SELECT id, user_id, name, created_at, last_used_at, revoked_at
		FROM api_keys WHERE token_hash = ?`

	var (
		cred       model.Credential
		createdAt  string
		lastUsedAt sql.NullString
		revokedAt  sql.NullString
	)

	err := r.db.Reader.QueryRowContext(ctx, query, hashToken(token)).
		Scan(&cred.ID, &cred.UserID, &cred.DeviceName, &createdAt, &lastUsedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find api key: %w", err)
	}

	cred.Token = token

	cred.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for api key %d: %w", cred.ID, err)
	}
	cred.LastUsedAt, err = parseNullTime(lastUsedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_used_at for api key %d: %w", cred.ID, err)
	}
	cred.RevokedAt = parseRevokedAt(revokedAt)

	return &cred, nil
}

// UpdateLastUsed sets last_used_at on the API key matching token. Returns
// driven.ErrCredentialNotFound if no row matched.
func (r *CredentialRepo) UpdateLastUsed(ctx context.Context, token string, at time.Time) error {
	const query = `UPDATE api_keys SET last_used_at = ? WHERE token_hash = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), hashToken(token))
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update api key last used: %w", driven.ErrCredentialNotFound)
	}

	return nil
}

// revokedUnparseable stands in for a revoked_at value that is set but cannot
// be read as a timestamp.
var revokedUnparseable = time.Unix(0, 0).UTC()

// parseRevokedAt fails closed: any non-NULL revoked_at, including an empty or
// malformed one, marks the key revoked.
func parseRevokedAt(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		t = revokedUnparseable
	}
	return &t
}

// hashToken returns the hex SHA-256 digest used as the api_keys lookup key.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
