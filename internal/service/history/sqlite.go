package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zhouzirui/friday/backend/internal/model/chat"
	"github.com/zhouzirui/friday/backend/internal/model/user"
)

const schema = `
	CREATE TABLE IF NOT EXISTS turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_user_created ON turns(user_id, created_at, seq);

	CREATE TABLE IF NOT EXISTS profiles (
		uid TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		photo_url TEXT NOT NULL DEFAULT '',
		preferences TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		last_active INTEGER NOT NULL
	);
`

// SQLiteStore persists history in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path, ensuring the parent
// directory exists, and bootstraps the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db at %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Append inserts one turn.
func (s *SQLiteStore) Append(ctx context.Context, turn chat.Turn) (string, error) {
	prepared, err := prepareTurn(turn, s.now())
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO turns (id, user_id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		prepared.ID, prepared.UserID, prepared.SessionID, string(prepared.Role), prepared.Content,
		prepared.Timestamp.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert turn: %w", err)
	}
	return prepared.ID, nil
}

// QueryRecent returns the newest limit turns, oldest first.
func (s *SQLiteStore) QueryRecent(ctx context.Context, userID string, limit int) ([]chat.Turn, error) {
	return s.QueryPage(ctx, userID, limit, time.Time{})
}

// QueryPage returns up to limit turns created before the cursor, oldest first.
func (s *SQLiteStore) QueryPage(ctx context.Context, userID string, limit int, before time.Time) ([]chat.Turn, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if limit <= 0 {
		return []chat.Turn{}, nil
	}

	var (
		rows *sql.Rows
		err  error
	)
	if before.IsZero() {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, user_id, session_id, role, content, created_at FROM turns
			 WHERE user_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?`,
			userID, limit,
		)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, user_id, session_id, role, content, created_at FROM turns
			 WHERE user_id = ? AND created_at < ? ORDER BY created_at DESC, seq DESC LIMIT ?`,
			userID, before.UTC().UnixNano(), limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := make([]chat.Turn, 0, limit)
	for rows.Next() {
		var (
			turn    chat.Turn
			role    string
			created int64
		)
		if err := rows.Scan(&turn.ID, &turn.UserID, &turn.SessionID, &role, &turn.Content, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Role = chat.Role(role)
		turn.Timestamp = time.Unix(0, created).UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	reverse(turns)
	return turns, nil
}

// UpsertProfile inserts or updates a profile. created_at is written only on insert.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile user.Profile) error {
	if profile.UID == "" {
		return ErrUserRequired
	}

	prefs, err := json.Marshal(profile.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	now := s.now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.LastActive.IsZero() {
		profile.LastActive = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (uid, email, display_name, photo_url, preferences, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			photo_url = excluded.photo_url,
			preferences = excluded.preferences,
			last_active = excluded.last_active`,
		profile.UID, profile.Email, profile.DisplayName, profile.PhotoURL, string(prefs),
		profile.CreatedAt.UTC().UnixNano(), profile.LastActive.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// GetProfile loads a profile by uid.
func (s *SQLiteStore) GetProfile(ctx context.Context, uid string) (user.Profile, error) {
	var (
		profile           user.Profile
		prefs             string
		created, lastSeen int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT uid, email, display_name, photo_url, preferences, created_at, last_active
		 FROM profiles WHERE uid = ?`, uid,
	).Scan(&profile.UID, &profile.Email, &profile.DisplayName, &profile.PhotoURL, &prefs, &created, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return user.Profile{}, fmt.Errorf("query profile: %w", err)
	}

	if err := json.Unmarshal([]byte(prefs), &profile.Preferences); err != nil {
		return user.Profile{}, fmt.Errorf("decode preferences: %w", err)
	}
	profile.CreatedAt = time.Unix(0, created).UTC()
	profile.LastActive = time.Unix(0, lastSeen).UTC()
	return profile, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
