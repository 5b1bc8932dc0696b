// Package dao is the transactional data-access layer for memberships, point lots, upgrade audits
// and benefit grants.
package dao

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// ErrConcurrentUpdate is returned when a conditional update matched no row because another
// transaction changed it first.
var ErrConcurrentUpdate = errors.New("record changed by a concurrent transaction")

// Store wraps a gorm handle. A Store obtained inside RunInTransaction is bound to that transaction.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for read-only reporting queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// RunInTransaction commits everything fn does through the passed store, or nothing.
func (s *Store) RunInTransaction(ctx context.Context, fn func(st *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// LockUser takes a transaction-scoped advisory lock on the user. Only postgres supports it;
// other dialects rely on the caller's own serialization.
func (s *Store) LockUser(ctx context.Context, userID string) error {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", UserLockKey(userID)).Error; err != nil {
		return fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	return nil
}

// UserLockKey maps a user id onto the advisory lock key space.
func UserLockKey(userID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

var Module = fx.Options(
	fx.Provide(New),
)
