// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"retro-league-bot/internal/pkg/db"
)

// Common errors for snapshot store operations.
var (
	// ErrStoreUnavailable indicates the persistence layer could not be
	// reached or the operation failed.
	ErrStoreUnavailable = errors.New("snapshot store unavailable")

	// ErrMalformedSnapshot indicates the stored blob failed to parse.
	// Callers decide whether to proceed with an empty set.
	ErrMalformedSnapshot = errors.New("malformed mastery snapshot")
)

// snapshotKeyPrefix is the historical key format for mastery snapshots.
const snapshotKeyPrefix = "masteries_"

// SnapshotRepository persists per-account mastery snapshots: the set of
// game IDs that have already been announced for an account. Snapshots only
// ever grow; Set overwrites the whole blob because the reconciler is the
// single writer for an account within a tick.
type SnapshotRepository struct {
	pool *db.LazyPool
}

// NewSnapshotRepository creates a new SnapshotRepository instance.
func NewSnapshotRepository(pool *db.LazyPool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// snapshotKey builds the storage key for an account.
func snapshotKey(username string) string {
	return snapshotKeyPrefix + username
}

// Get returns the recorded mastery game IDs for an account. A missing row
// yields an empty set; an unparseable blob yields ErrMalformedSnapshot.
func (r *SnapshotRepository) Get(ctx context.Context, username string) ([]int64, error) {
	pool, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire pool: %w", ErrStoreUnavailable)
	}

	const query = `SELECT value FROM mastery_snapshots WHERE key = $1`

	var blob []byte
	err = pool.QueryRow(ctx, query, snapshotKey(username)).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot for %s: %w", username, ErrStoreUnavailable)
	}

	var ids []int64
	if err := json.Unmarshal(blob, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot for %s: %w", username, ErrMalformedSnapshot)
	}
	return ids, nil
}

// Set overwrites the account's snapshot with the given game IDs.
func (r *SnapshotRepository) Set(ctx context.Context, username string, gameIDs []int64) error {
	pool, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire pool: %w", ErrStoreUnavailable)
	}

	if gameIDs == nil {
		gameIDs = []int64{}
	}
	blob, err := json.Marshal(gameIDs)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %s: %w", username, err)
	}

	const query = `
		INSERT INTO mastery_snapshots (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()
	`

	if _, err := pool.Exec(ctx, query, snapshotKey(username), blob); err != nil {
		return fmt.Errorf("failed to set snapshot for %s: %w", username, ErrStoreUnavailable)
	}
	return nil
}

// Exists reports whether the account has a snapshot at all. Accounts
// without one have never been bootstrapped.
func (r *SnapshotRepository) Exists(ctx context.Context, username string) (bool, error) {
	pool, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire pool: %w", ErrStoreUnavailable)
	}

	const query = `SELECT EXISTS(SELECT 1 FROM mastery_snapshots WHERE key = $1)`

	var exists bool
	if err := pool.QueryRow(ctx, query, snapshotKey(username)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check snapshot existence for %s: %w", username, ErrStoreUnavailable)
	}
	return exists, nil
}
