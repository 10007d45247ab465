package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CoordinationStore is the lock primitive of the shared coordination store.
type CoordinationStore interface {
	SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	DeleteIfEqual(ctx context.Context, key, token string) error
}

// Lock is a held lock. Only the holder's token can release it.
type Lock struct {
	Key   string
	token string
}

// LockManager provides TTL-bound mutual exclusion. It never waits or
// retries: a held key is reported to the caller immediately.
type LockManager struct {
	store CoordinationStore
	log   zerolog.Logger
}

// NewLockManager creates a LockManager over store.
func NewLockManager(store CoordinationStore, log zerolog.Logger) *LockManager {
	return &LockManager{
		store: store,
		log:   log.With().Str("component", "lock_manager").Logger(),
	}
}

// Acquire tries to take key for ttl. ok is false when another holder has it.
func (m *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	token := uuid.NewString()
	ok, err := m.store.SetIfAbsent(ctx, key, token, ttl)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{Key: key, token: token}, true, nil
}

// Release drops the lock. Failures are logged only; the TTL reclaims the key.
func (m *LockManager) Release(ctx context.Context, l *Lock) {
	if l == nil {
		return
	}
	if err := m.store.DeleteIfEqual(ctx, l.Key, l.token); err != nil {
		m.log.Warn().Err(err).Str("key", l.Key).Msg("Failed to release lock")
	}
}
