package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yourusername/trustora/internal/escrow"
)

// User is the party on one side of a deal: an external chat identity plus
// the handful of moderation/broadcast flags the coordinator needs.
type User struct {
	ID             string
	Handle         string
	PublicHash     string
	IsBlocked      bool
	BroadcastOptIn bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type UserStore struct{ s *Store }

func (s *Store) Users() *UserStore { return &UserStore{s: s} }

// EnsureExists inserts a User row for id if one doesn't already exist,
// deriving its public_hash from id and salt, and returns the (possibly
// pre-existing) row. Idempotent so the coordinator can call it on every
// inbound message without a separate "does this user exist" check.
func (r *UserStore) EnsureExists(ctx context.Context, id, handle, salt string) (*User, error) {
	hash := escrow.UserPublicHash(id, salt)
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO users (id, handle, public_hash) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`, id, handle, hash)
	if err != nil {
		return nil, fmt.Errorf("store: ensure user exists: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *UserStore) Get(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.s.db.QueryRowContext(ctx, `
		SELECT id, handle, public_hash, is_blocked, broadcast_opt_in, created_at, updated_at
		FROM users WHERE id = $1`, id).Scan(
		&u.ID, &u.Handle, &u.PublicHash, &u.IsBlocked, &u.BroadcastOptIn, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return &u, nil
}

// SetBlocked toggles a user's is_blocked flag, the admin "block user"
// action gating further deal creation by that user.
func (r *UserStore) SetBlocked(ctx context.Context, id string, blocked bool) error {
	_, err := r.s.db.ExecContext(ctx, `
		UPDATE users SET is_blocked = $2, updated_at = now() WHERE id = $1`, id, blocked)
	if err != nil {
		return fmt.Errorf("store: set user blocked: %w", err)
	}
	return nil
}
