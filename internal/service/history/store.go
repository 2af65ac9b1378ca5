package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/friday/backend/internal/model/chat"
	"github.com/zhouzirui/friday/backend/internal/model/user"
)

var (
	ErrUserRequired    = errors.New("user id is required")
	ErrInvalidRole     = errors.New("turn role must be user or assistant")
	ErrProfileNotFound = errors.New("profile not found")
)

// Store is the append-only conversation log plus the per-user profile table.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append persists a turn and returns its id. ID and Timestamp are
	// assigned when empty.
	Append(ctx context.Context, turn chat.Turn) (string, error)
	// QueryRecent returns the newest limit turns of a user, oldest first.
	QueryRecent(ctx context.Context, userID string, limit int) ([]chat.Turn, error)
	// QueryPage returns up to limit turns created strictly before the cursor,
	// oldest first. A zero cursor behaves like QueryRecent.
	QueryPage(ctx context.Context, userID string, limit int, before time.Time) ([]chat.Turn, error)
	UpsertProfile(ctx context.Context, profile user.Profile) error
	GetProfile(ctx context.Context, uid string) (user.Profile, error)
	Close() error
}

// prepareTurn validates a turn and fills in the generated fields.
func prepareTurn(turn chat.Turn, now time.Time) (chat.Turn, error) {
	if strings.TrimSpace(turn.UserID) == "" {
		return chat.Turn{}, ErrUserRequired
	}
	if !turn.Role.Valid() {
		return chat.Turn{}, fmt.Errorf("%w: %q", ErrInvalidRole, turn.Role)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = now
	}
	turn.Timestamp = turn.Timestamp.UTC()
	return turn, nil
}

func reverse(turns []chat.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
