package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/friday/backend/internal/model/user"
)

var (
	ErrAuthDisabled = errors.New("sign-in is not configured")
	ErrInvalidState = errors.New("sign-in state is unknown or expired")
	ErrMissingCode  = errors.New("authorization code is required")
)

const (
	defaultSessionTTL = 24 * time.Hour
	defaultStateTTL   = 10 * time.Minute
)

// ChangeEvent is delivered to subscribers whenever a user signs in or out.
type ChangeEvent struct {
	User     user.User
	SignedIn bool
}

// Options tunes token lifetimes.
type Options struct {
	SessionTTL time.Duration
	StateTTL   time.Duration
}

type session struct {
	user    user.User
	expires time.Time
}

// Service tracks sign-in flows and signed-in sessions. Without an Identity it
// runs in disabled mode: sign-in fails and sign-out is a no-op.
type Service struct {
	identity   Identity
	sessionTTL time.Duration
	stateTTL   time.Duration
	now        func() time.Time

	mu       sync.Mutex
	states   map[string]time.Time
	sessions map[string]session

	subMu   sync.RWMutex
	nextSub uint64
	subs    map[uint64]func(ChangeEvent)
}

// NewService creates the auth service. A nil identity yields disabled mode.
func NewService(identity Identity, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.StateTTL <= 0 {
		opts.StateTTL = defaultStateTTL
	}
	return &Service{
		identity:   identity,
		sessionTTL: opts.SessionTTL,
		stateTTL:   opts.StateTTL,
		now:        time.Now,
		states:     make(map[string]time.Time),
		sessions:   make(map[string]session),
		subs:       make(map[uint64]func(ChangeEvent)),
	}
}

// Enabled reports whether a sign-in provider is configured.
func (s *Service) Enabled() bool {
	return s.identity != nil
}

// BeginSignIn starts a sign-in flow and returns the provider URL and its state.
func (s *Service) BeginSignIn() (string, string, error) {
	if !s.Enabled() {
		return "", "", ErrAuthDisabled
	}

	state := uuid.NewString()
	s.mu.Lock()
	s.states[state] = s.now().Add(s.stateTTL)
	s.mu.Unlock()

	return s.identity.AuthCodeURL(state), state, nil
}

// SignIn completes a flow started by BeginSignIn and opens a session.
func (s *Service) SignIn(ctx context.Context, state, code string) (user.User, string, error) {
	if !s.Enabled() {
		return user.User{}, "", ErrAuthDisabled
	}
	if code == "" {
		return user.User{}, "", ErrMissingCode
	}

	s.mu.Lock()
	expires, ok := s.states[state]
	delete(s.states, state)
	s.mu.Unlock()
	if !ok || s.now().After(expires) {
		return user.User{}, "", ErrInvalidState
	}

	u, err := s.identity.Exchange(ctx, code)
	if err != nil {
		return user.User{}, "", fmt.Errorf("sign in: %w", err)
	}
	if u.UID == "" {
		return user.User{}, "", errors.New("sign in: provider returned no user id")
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = session{user: u, expires: s.now().Add(s.sessionTTL)}
	s.mu.Unlock()

	log.Printf("[auth] signed in uid=%s", u.UID)
	s.notify(ChangeEvent{User: u, SignedIn: true})
	return u, token, nil
}

// SignOut closes the session. Unknown tokens and disabled mode are no-ops.
func (s *Service) SignOut(_ context.Context, token string) error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	sess, ok := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()

	if ok {
		log.Printf("[auth] signed out uid=%s", sess.user.UID)
		s.notify(ChangeEvent{User: sess.user, SignedIn: false})
	}
	return nil
}

// CurrentUser resolves a session token.
func (s *Service) CurrentUser(token string) (user.User, bool) {
	if token == "" {
		return user.User{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || s.now().After(sess.expires) {
		return user.User{}, false
	}
	return sess.user, true
}

// Subscribe registers fn for sign-in changes. The returned function removes
// the subscription and may be called any number of times.
func (s *Service) Subscribe(fn func(ChangeEvent)) func() {
	if !s.Enabled() || fn == nil {
		return func() {}
	}

	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Service) notify(event ChangeEvent) {
	s.subMu.RLock()
	handlers := make([]func(ChangeEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		handlers = append(handlers, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
}

// PurgeExpired drops expired sign-in states and sessions and returns how many
// entries were removed.
func (s *Service) PurgeExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, expires := range s.states {
		if now.After(expires) {
			delete(s.states, state)
			removed++
		}
	}
	for token, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}
