package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriphim/devicetoken/internal/domain/port/driven"
)

func TestCredentialRepo_FindByToken(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	insertAPIKey(t, db, "tok_abc", "u1", "laptop", nil)

	cred, err := repo.FindByToken(ctx, "tok_abc")
	require.NoError(t, err)
	require.NotNil(t, cred)

	assert.Equal(t, "tok_abc", cred.Token)
	assert.Equal(t, "u1", cred.UserID)
	assert.Equal(t, "laptop", cred.DeviceName)
	assert.False(t, cred.CreatedAt.IsZero())
	assert.Nil(t, cred.LastUsedAt)
	assert.False(t, cred.IsRevoked())
}

func TestCredentialRepo_FindByTokenMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	cred, err := repo.FindByToken(context.Background(), "tok_nope")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestCredentialRepo_FindByTokenExactMatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	insertAPIKey(t, db, "tok_abc", "u1", "laptop", nil)

	for _, candidate := range []string{"TOK_ABC", "tok_ab", "tok_abc ", " tok_abc"} {
		cred, err := repo.FindByToken(ctx, candidate)
		require.NoError(t, err)
		assert.Nil(t, cred, "candidate %q should not match", candidate)
	}
}

func TestCredentialRepo_Revoked(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	revokedAt := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	insertAPIKey(t, db, "tok_revoked", "u1", "old desktop", &revokedAt)

	cred, err := repo.FindByToken(context.Background(), "tok_revoked")
	require.NoError(t, err)
	require.NotNil(t, cred)
	require.NotNil(t, cred.RevokedAt)
	assert.True(t, cred.IsRevoked())
	assert.True(t, revokedAt.Equal(*cred.RevokedAt))
}

func TestCredentialRepo_RevokedEmptyString(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"whitespace", " "},
		{"malformed", "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewCredentialRepo(db)

			_, err := db.Writer.Exec(
				`INSERT INTO api_keys (token_hash, user_id, name, revoked_at) VALUES (?, ?, ?, ?)`,
				hashToken("tok_odd"), "u1", "laptop", tt.value,
			)
			require.NoError(t, err)

			cred, err := repo.FindByToken(context.Background(), "tok_odd")

			require.NoError(t, err)
			require.NotNil(t, cred)
			require.NotNil(t, cred.RevokedAt)
			assert.True(t, cred.IsRevoked(), "a set revoked_at must never read as live")
		})
	}
}

func TestCredentialRepo_TokenNotStoredInPlaintext(t *testing.T) {
	db := setupTestDB(t)
	insertAPIKey(t, db, "tok_abc", "u1", "laptop", nil)

	var stored string
	err := db.Reader.QueryRow(`SELECT token_hash FROM api_keys WHERE user_id = ?`, "u1").Scan(&stored)
	require.NoError(t, err)

	assert.NotContains(t, stored, "tok_abc")
	assert.Len(t, stored, 64)
}

func TestCredentialRepo_UpdateLastUsed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	insertAPIKey(t, db, "tok_abc", "u1", "laptop", nil)

	at := time.Date(2026, 2, 10, 12, 0, 0, 123000000, time.UTC)
	require.NoError(t, repo.UpdateLastUsed(ctx, "tok_abc", at))

	cred, err := repo.FindByToken(ctx, "tok_abc")
	require.NoError(t, err)
	require.NotNil(t, cred.LastUsedAt)
	assert.True(t, at.Equal(*cred.LastUsedAt))
}

func TestCredentialRepo_UpdateLastUsedMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	err := repo.UpdateLastUsed(context.Background(), "tok_nope", time.Now())
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}
