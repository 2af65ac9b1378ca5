package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/friday/backend/internal/model/chat"
	"github.com/zhouzirui/friday/backend/internal/model/user"
	"github.com/zhouzirui/friday/backend/internal/service/history"
)

type storeFactory func(t *testing.T) history.Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) history.Store {
			return history.NewMemoryStore()
		},
		"sqlite": func(t *testing.T) history.Store {
			store, err := history.OpenSQLite(filepath.Join(t.TempDir(), "nested", "history.db"))
			if err != nil {
				t.Fatalf("OpenSQLite err: %v", err)
			}
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, store history.Store)) {
	for name, factory := range factories() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	forEachStore(t, func(t *testing.T, store history.Store) {
		ctx := context.Background()

		id, err := store.Append(ctx, chat.Turn{UserID: "u1", Role: chat.RoleUser, Content: "hello"})
		if err != nil {
			t.Fatalf("Append err: %v", err)
		}
		if id == "" {
			t.Fatal("expected generated id")
		}

		turns, err := store.QueryRecent(ctx, "u1", 10)
		if err != nil {
			t.Fatalf("QueryRecent err: %v", err)
		}
		if len(turns) != 1 || turns[0].ID != id {
			t.Fatalf("unexpected turns: %+v", turns)
		}
		if turns[0].Timestamp.IsZero() || turns[0].Timestamp.Location() != time.UTC {
			t.Fatalf("expected UTC timestamp, got %v", turns[0].Timestamp)
		}
	})
}

func TestAppendValidates(t *testing.T) {
	forEachStore(t, func(t *testing.T, store history.Store) {
		ctx := context.Background()

		if _, err := store.Append(ctx, chat.Turn{Role: chat.RoleUser, Content: "x"}); !errors.Is(err, history.ErrUserRequired) {
			t.Fatalf("expected ErrUserRequired, got %v", err)
		}
		if _, err := store.Append(ctx, chat.Turn{UserID: "u", Role: "system", Content: "x"}); !errors.Is(err, history.ErrInvalidRole) {
			t.Fatalf("expected ErrInvalidRole, got %v", err)
		}
	})
}

func TestQueryRecentReturnsTrailingWindowOldestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store history.Store) {
		ctx := context.Background()
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		for i := 0; i < 15; i++ {
			role := chat.RoleUser
			if i%2 == 1 {
				role = chat.RoleAssistant
			}
			_, err := store.Append(ctx, chat.Turn{
				UserID:    "u1",
				Role:      role,
				Content:   string(rune('a' + i)),
				Timestamp: base.Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				t.Fatalf("Append %d err: %v", i, err)
			}
		}
		if _, err := store.Append(ctx, chat.Turn{UserID: "u2", Role: chat.RoleUser, Content: "other"}); err != nil {
			t.Fatalf("Append other user err: %v", err)
		}

		turns, err := store.QueryRecent(ctx, "u1", 10)
		if err != nil {
			t.Fatalf("QueryRecent err: %v", err)
		}
		if len(turns) != 10 {
			t.Fatalf("expected 10 turns, got %d", len(turns))
		}
		if turns[0].Content != "f" || turns[9].Content != "o" {
			t.Fatalf("unexpected window bounds: %q .. %q", turns[0].Content, turns[9].Content)
		}
		for i := 1; i < len(turns); i++ {
			if turns[i].Timestamp.Before(turns[i-1].Timestamp) {
				t.Fatalf("turns out of order at %d", i)
			}
		}
	})
}

func TestQueryRecentBreaksTimestampTiesByInsertion(t *testing.T) {
	forEachStore(t, func(t *testing.T, store history.Store) {
		ctx := context.Background()
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		for _, content := range []string{"first", "second", "third"} {
			if _, err := store.Append(ctx, chat.Turn{UserID: "u", Role: chat.RoleUser, Content: content, Timestamp: at}); err != nil {
				t.Fatalf("Append err: %v", err)
			}
		}

		turns, err := store.QueryRecent(ctx, "u", 2)
		if err != nil {
			t.Fatalf("QueryRecent err: %v", err)
		}
		if len(turns) != 2 || turns[0].Content != "second" || turns[1].Content != "third" {
			t.Fatalf("unexpected tie order: %+v", turns)
		}
	})
}

func TestQueryPageUsesCursor(t *testing.T) {
	forEachStore(t, func(t *testing.T, store history.Store) {
		ctx := context.Background()
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		for i := 0; i < 5; i++ {
			if _, err := store.Append(ctx, chat.Turn{
				UserID:    "u",
				Role:      chat.RoleUser,
				Content:   string(rune('a' + i)),
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			}); err != nil {
				t.Fatalf("Append err: %v", err)
			}
		}

		page, err := store.QueryPage(ctx, "u", 2, base.Add(3*time.Minute))
		if err != nil {
			t.Fatalf("QueryPage err: %v", err)
		}
		if len(page) != 2 || page[0].Content != "b" || page[1].Content != "c" {
			t.Fatalf("unexpected page: %+v", page)
		}

		empty, err := store.QueryPage(ctx, "u", 0, time.Time{})
		if err != nil || len(empty) != 0 {
			t.Fatalf("expected empty page, got %v %v", empty, err)
		}
	})
}

func TestQueryUnknownUserIsEmpty(t *testing.T) {
	forEachStore(t, func(t *testing.T, store history.Store) {
		turns, err := store.QueryRecent(context.Background(), "nobody", 10)
		if err != nil {
			t.Fatalf("QueryRecent err: %v", err)
		}
		if len(turns) != 0 {
			t.Fatalf("expected no turns, got %d", len(turns))
		}
	})
}

func TestConcurrentAppends(t *testing.T) {
	forEachStore(t, func(t *testing.T, store history.Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Append(ctx, chat.Turn{UserID: "u", Role: chat.RoleUser, Content: "x"}); err != nil {
					t.Errorf("Append err: %v", err)
				}
			}()
		}
		wg.Wait()

		turns, err := store.QueryRecent(ctx, "u", 100)
		if err != nil {
			t.Fatalf("QueryRecent err: %v", err)
		}
		if len(turns) != 20 {
			t.Fatalf("expected 20 turns, got %d", len(turns))
		}
	})
}

func TestEnsureProfileCreatesThenRefreshes(t *testing.T) {
	forEachStore(t, func(t *testing.T, store history.Store) {
		ctx := context.Background()
		first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		u := user.User{UID: "g-1", Email: "a@example.com", DisplayName: "Ada"}

		created, err := history.EnsureProfile(ctx, store, u, first)
		if err != nil {
			t.Fatalf("EnsureProfile err: %v", err)
		}
		if !created.CreatedAt.Equal(first) || !created.LastActive.Equal(first) {
			t.Fatalf("unexpected timestamps: %+v", created)
		}

		on := true
		created.Preferences.VoiceEnabled = &on
		created.Preferences.Theme = "dark"
		if err := store.UpsertProfile(ctx, created); err != nil {
			t.Fatalf("UpsertProfile err: %v", err)
		}

		later := first.Add(48 * time.Hour)
		u.DisplayName = "Ada L."
		refreshed, err := history.EnsureProfile(ctx, store, u, later)
		if err != nil {
			t.Fatalf("EnsureProfile err: %v", err)
		}
		if !refreshed.CreatedAt.Equal(first) {
			t.Fatalf("createdAt changed: %v", refreshed.CreatedAt)
		}
		if !refreshed.LastActive.Equal(later) {
			t.Fatalf("lastActive not refreshed: %v", refreshed.LastActive)
		}
		if refreshed.DisplayName != "Ada L." {
			t.Fatalf("display name not refreshed: %q", refreshed.DisplayName)
		}
		if refreshed.Preferences.VoiceEnabled == nil || !*refreshed.Preferences.VoiceEnabled || refreshed.Preferences.Theme != "dark" {
			t.Fatalf("preferences lost: %+v", refreshed.Preferences)
		}
	})
}

func TestGetProfileNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, store history.Store) {
		if _, err := store.GetProfile(context.Background(), "missing"); !errors.Is(err, history.ErrProfileNotFound) {
			t.Fatalf("expected ErrProfileNotFound, got %v", err)
		}
	})
}
