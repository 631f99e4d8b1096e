// Package history persists per-user conversation logs with snapshot
// backups and restore-on-loss, and guards against duplicate webhook
// deliveries.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/bridgebot/bridgebot/internal/conversation"
	"github.com/bridgebot/bridgebot/internal/storage"
)

// backupKeyLayout is fixed-width so lexicographic key order matches
// chronological order.
const backupKeyLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the durable conversation history store. Writes for one user are
// serialized through a per-user mutex held across the whole
// load-append-write cycle, so concurrent deliveries for the same user
// cannot drop each other's turns.
type Store struct {
	provider storage.Provider
	logger   *slog.Logger
	retain   int

	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock is reference-counted so the lock table can drop entries once the
// last holder releases, instead of growing by one mutex per user forever.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates a history store. backupRetain is the number of snapshots
// kept per user.
func NewStore(log *slog.Logger, provider storage.Provider, backupRetain int) *Store {
	if log == nil {
		log = slog.Default()
	}
	if backupRetain <= 0 {
		backupRetain = 3
	}
	return &Store{
		provider: provider,
		logger:   log.With(slog.String("component", "history")),
		retain:   backupRetain,
		locks:    map[string]*userLock{},
	}
}

// Lock acquires the per-user write lock and returns its release func.
// Callers hold it across load, append, and write-back. The table only
// tracks users with an in-flight request.
func (s *Store) Lock(userID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &userLock{}
		s.locks[userID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

// Load reads a user's full turn log. A missing or empty primary log falls
// back to the most recent backup; when both are missing the session is
// fresh and an empty log is returned, not an error.
func (s *Store) Load(ctx context.Context, userID string) ([]conversation.Turn, error) {
	turns, err := s.read(ctx, historyKey(userID))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(turns) > 0 {
		return turns, nil
	}
	restored, err := s.restore(ctx, userID)
	if err != nil {
		s.logger.Warn("restore from backup failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return nil, nil
	}
	if len(restored) > 0 {
		s.logger.Info("history restored from backup",
			slog.String("user_id", userID),
			slog.Int("turns", len(restored)),
		)
	}
	return restored, nil
}

// Write persists the full turn log for a user.
func (s *Store) Write(ctx context.Context, userID string, turns []conversation.Turn) error {
	payload, err := json.Marshal(conversation.Session{UserID: userID, Turns: turns})
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := s.provider.Put(ctx, historyKey(userID), bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Backup snapshots the full turn log under a timestamped key and prunes
// snapshots beyond the retention count, oldest first.
func (s *Store) Backup(ctx context.Context, userID string, turns []conversation.Turn) error {
	payload, err := json.Marshal(conversation.Session{UserID: userID, Turns: turns})
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	key := path.Join(backupPrefix(userID), time.Now().UTC().Format(backupKeyLayout)+".json")
	if err := s.provider.Put(ctx, key, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return s.prune(ctx, userID)
}

// restore loads the lexicographically greatest (most recent) backup.
func (s *Store) restore(ctx context.Context, userID string) ([]conversation.Turn, error) {
	keys, err := s.provider.List(ctx, backupPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return s.read(ctx, keys[len(keys)-1])
}

func (s *Store) prune(ctx context.Context, userID string) error {
	keys, err := s.provider.List(ctx, backupPrefix(userID))
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(keys) <= s.retain {
		return nil
	}
	for _, key := range keys[:len(keys)-s.retain] {
		if err := s.provider.Delete(ctx, key); err != nil {
			s.logger.Warn("prune backup failed",
				slog.String("key", key),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string) ([]conversation.Turn, error) {
	payload, err := storage.GetBytes(ctx, s.provider, key)
	if err != nil {
		return nil, err
	}
	var session conversation.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", key, err)
	}
	return session.Turns, nil
}

func historyKey(userID string) string {
	return path.Join("history", userID+".json")
}

func backupPrefix(userID string) string {
	return path.Join("backups", userID)
}
