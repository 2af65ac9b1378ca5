package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zhouzirui/friday/backend/internal/model/chat"
	"github.com/zhouzirui/friday/backend/internal/model/user"
)

type storedTurn struct {
	turn chat.Turn
	seq  uint64
}

// MemoryStore keeps history in process memory. Suitable for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      uint64
	turns    map[string][]storedTurn
	profiles map[string]user.Profile
	now      func() time.Time
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns:    make(map[string][]storedTurn),
		profiles: make(map[string]user.Profile),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Append inserts the turn keeping each user's log ordered by (timestamp, insertion).
func (s *MemoryStore) Append(_ context.Context, turn chat.Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepared, err := prepareTurn(turn, s.now())
	if err != nil {
		return "", err
	}

	s.seq++
	entry := storedTurn{turn: prepared, seq: s.seq}
	log := s.turns[prepared.UserID]
	idx := sort.Search(len(log), func(i int) bool {
		return log[i].turn.Timestamp.After(prepared.Timestamp)
	})
	log = append(log, storedTurn{})
	copy(log[idx+1:], log[idx:])
	log[idx] = entry
	s.turns[prepared.UserID] = log

	return prepared.ID, nil
}

// QueryRecent returns the trailing window of a user's log.
func (s *MemoryStore) QueryRecent(ctx context.Context, userID string, limit int) ([]chat.Turn, error) {
	return s.QueryPage(ctx, userID, limit, time.Time{})
}

// QueryPage returns the trailing window of turns older than before.
func (s *MemoryStore) QueryPage(_ context.Context, userID string, limit int, before time.Time) ([]chat.Turn, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if limit <= 0 {
		return []chat.Turn{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.turns[userID]
	end := len(log)
	if !before.IsZero() {
		end = sort.Search(len(log), func(i int) bool {
			return !log[i].turn.Timestamp.Before(before)
		})
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	out := make([]chat.Turn, 0, end-start)
	for _, entry := range log[start:end] {
		out = append(out, entry.turn)
	}
	return out, nil
}

// UpsertProfile creates or replaces a profile, keeping the original creation time.
func (s *MemoryStore) UpsertProfile(_ context.Context, profile user.Profile) error {
	if profile.UID == "" {
		return ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.profiles[profile.UID]; ok && !existing.CreatedAt.IsZero() {
		profile.CreatedAt = existing.CreatedAt
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.LastActive.IsZero() {
		profile.LastActive = now
	}
	s.profiles[profile.UID] = profile
	return nil
}

// GetProfile retrieves a profile by uid.
func (s *MemoryStore) GetProfile(_ context.Context, uid string) (user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[uid]
	if !ok {
		return user.Profile{}, ErrProfileNotFound
	}
	return profile, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
