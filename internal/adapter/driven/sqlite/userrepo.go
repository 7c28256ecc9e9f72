package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oriphim/devicetoken/internal/domain/model"
	"github.com/oriphim/devicetoken/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IdentityDirectory = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the IdentityDirectory port interface.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByID retrieves a user by id. Returns nil, nil if the user does not exist.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.Identity, error) {
	const query = `SELECT id, email FROM users WHERE id = ?`

	var identity model.Identity
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&identity.ID, &identity.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	return &identity, nil
}
