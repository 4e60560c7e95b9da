// Package auth emulates an authentication session lifecycle on top of a blob
// store, for use when no real identity provider is configured.
//
// There are two states. SIGNED_OUT is the absence of a persisted session;
// SIGNED_IN holds exactly one. Sign-in and sign-up always succeed and
// overwrite any existing session; sign-out removes it. Every transition is
// fanned out to subscribers synchronously, in registration order, before the
// next transition may persist. Callbacks must therefore not call SignIn,
// SignUp, SignOut or OnAuthStateChange; Unsubscribe is allowed.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevemurr/eden-shim/store"
)

// SessionKey is the blob key holding the current session.
const SessionKey = "eden_mock_session"

const (
	// MockUserID is the identity every email maps to unless derived
	// identities are enabled.
	MockUserID = "mock-user-123"

	// DefaultRole is the role marker carried by every mock user.
	DefaultRole = "authenticated"
)

// Namespace for email-derived user ids.
var identityNamespace = uuid.MustParse("6f1c2a8e-52a4-4d0b-9d55-0c3f4f7e2b11")

var (
	ErrEmailRequired = errors.New("auth: email is required")
	ErrPersist       = errors.New("auth: persist session failed")
)

// Event names a session transition.
type Event string

const (
	SignedIn  Event = "SIGNED_IN"
	SignedOut Event = "SIGNED_OUT"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Session struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

// Manager owns the persisted session and the subscriber registry.
type Manager struct {
	blobs         store.Store
	log           *zap.Logger
	signInDelay   time.Duration
	signUpDelay   time.Duration
	deriveIDs     bool
	subscriptions *registry

	// mu is held from persisting a transition until its fan-out returns,
	// and across a new subscriber's replay.
	mu sync.Mutex
}

type Option func(*Manager)

// WithLatency delays sign-in and sign-up before they take effect.
func WithLatency(signIn, signUp time.Duration) Option {
	return func(m *Manager) {
		m.signInDelay = signIn
		m.signUpDelay = signUp
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithDerivedIdentities gives every email its own stable user id instead of
// the shared MockUserID.
func WithDerivedIdentities() Option {
	return func(m *Manager) { m.deriveIDs = true }
}

func New(blobs store.Store, opts ...Option) *Manager {
	m := &Manager{
		blobs:         blobs,
		log:           zap.NewNop(),
		subscriptions: newRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetSession returns the persisted session, or nil when signed out. A
// corrupt session blob is treated as signed out.
func (m *Manager) GetSession(ctx context.Context) (*Session, error) {
	raw, err := m.blobs.Get(ctx, SessionKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		m.log.Warn("discarding corrupt session", zap.Error(err))
		return nil, nil
	}
	return &s, nil
}

// SignIn starts a session for email. The password is accepted but not
// verified.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*User, *Session, error) {
	return m.start(ctx, email, m.signInDelay)
}

// SignUp has the same contract as SignIn: registering always succeeds and
// leaves the user signed in.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*User, *Session, error) {
	return m.start(ctx, email, m.signUpDelay)
}

func (m *Manager) start(ctx context.Context, email string, delay time.Duration) (*User, *Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil, ErrEmailRequired
	}
	if err := sleep(ctx, delay); err != nil {
		return nil, nil, err
	}

	user := m.identity(email)
	session := &Session{User: user, AccessToken: "mock-token-" + uuid.NewString()}
	b, err := json.Marshal(session)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.blobs.Set(context.Background(), SessionKey, b); err != nil {
		m.log.Error("persist session", zap.Error(err))
		return nil, nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	m.log.Debug("signed in", zap.String("email", email), zap.String("user", user.ID))
	m.subscriptions.notify(SignedIn, session)
	return &user, session, nil
}

func (m *Manager) identity(email string) User {
	id := MockUserID
	if m.deriveIDs {
		id = uuid.NewSHA1(identityNamespace, []byte(strings.ToLower(email))).String()
	}
	return User{ID: id, Email: email, Role: DefaultRole}
}

// SignOut removes the persisted session and notifies subscribers.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.blobs.Remove(context.Background(), SessionKey); err != nil {
		m.log.Error("remove session", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	m.log.Debug("signed out")
	m.subscriptions.notify(SignedOut, nil)
	return nil
}

// OnAuthStateChange registers cb and immediately replays the current state to
// it: SIGNED_IN with the persisted session, or SIGNED_OUT with nil. The
// replay and every later event reach cb in the order they were persisted.
func (m *Manager) OnAuthStateChange(cb Callback) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.subscriptions.add(cb)
	session, err := m.GetSession(context.Background())
	if err != nil {
		m.log.Warn("replay auth state", zap.Error(err))
	}
	if session != nil {
		cb(SignedIn, session)
	} else {
		cb(SignedOut, nil)
	}
	return sub
}

// Subscribers reports the number of live subscriptions.
func (m *Manager) Subscribers() int {
	return m.subscriptions.len()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
