package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhouzirui/friday/backend/internal/model/user"
)

// EnsureProfile returns the stored profile for u, creating it on first sign-in.
// Identity fields and lastActive are refreshed on every call; preferences are kept.
func EnsureProfile(ctx context.Context, store Store, u user.User, now time.Time) (user.Profile, error) {
	if u.UID == "" {
		return user.Profile{}, ErrUserRequired
	}

	profile, err := store.GetProfile(ctx, u.UID)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		profile = user.ProfileFor(u, now)
	case err != nil:
		return user.Profile{}, fmt.Errorf("load profile: %w", err)
	default:
		profile.Email = u.Email
		profile.DisplayName = u.DisplayName
		profile.PhotoURL = u.PhotoURL
		profile.LastActive = now
	}

	if err := store.UpsertProfile(ctx, profile); err != nil {
		return user.Profile{}, err
	}
	return store.GetProfile(ctx, u.UID)
}
