package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/recycle-ai/recycle/internal/redact"
)

// DefaultKey is the storage key the signed-in user is kept under.
const DefaultKey = "user"

// cookieSuffix names the record holding the transport cookies for a key.
const cookieSuffix = ".cookies"

// Terminator ends the session on the auth service.
type Terminator interface {
	Logout(ctx context.Context) error
}

// CookieJar is the transport state that must survive restarts together with
// the user record, such as the backend's session cookie.
type CookieJar interface {
	Cookies() []*http.Cookie
	RestoreCookies([]*http.Cookie)
	ClearCookies()
}

// NotifyError means the local sign-out completed but the auth service could
// not be told. Callers report it as a warning.
type NotifyError struct {
	Err error
}

func (e *NotifyError) Error() string { return "notify logout: " + e.Err.Error() }
func (e *NotifyError) Unwrap() error { return e.Err }

// Option configures a Manager.
type Option func(*Manager)

// WithCookies persists jar's cookies next to the user record.
func WithCookies(jar CookieJar) Option {
	return func(m *Manager) { m.jar = jar }
}

// Manager owns the current identity. It is the only writer of both the
// in-memory copy and the persisted record.
type Manager struct {
	storage Storage
	key     string
	term    Terminator
	jar     CookieJar

	mu      sync.RWMutex
	current *User
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewManager restores a persisted user, and its cookies when a jar is
// configured, before returning. A record that cannot be decoded is discarded.
func NewManager(ctx context.Context, storage Storage, key string, term Terminator, opts ...Option) (*Manager, error) {
	if storage == nil {
		return nil, errors.New("session storage is nil")
	}
	if key == "" {
		key = DefaultKey
	}
	m := &Manager{storage: storage, key: key, term: term}
	for _, opt := range opts {
		opt(m)
	}

	data, err := storage.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		m.dropCookies(ctx)
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("restore session: %w", err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		redact.Logf("session: discarding unreadable record: %v", err)
		if rmErr := storage.Remove(ctx, key); rmErr != nil {
			redact.Logf("session: remove unreadable record: %v", rmErr)
		}
		m.dropCookies(ctx)
		return m, nil
	}
	m.current = &u
	m.restoreCookies(ctx)
	return m, nil
}

// Current returns a snapshot of the signed-in user.
func (m *Manager) Current() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return User{}, false
	}
	return *m.current, true
}

// Login persists u and then makes it current. Cookies are written first so
// the user record is the last thing to land. A persistence failure leaves
// the previous identity in place.
func (m *Manager) Login(ctx context.Context, u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jar != nil {
		if err := m.saveCookies(ctx); err != nil {
			return fmt.Errorf("persist session cookies: %w", err)
		}
	}
	if err := m.storage.Set(ctx, m.key, data); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	m.current = &u
	return nil
}

// Logout removes the persisted record and then clears the local identity.
// If the record cannot be removed nothing changes and the error is returned,
// so memory and storage never disagree. Once local state is gone the auth
// service is notified; a failure there comes back as *NotifyError.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if err := m.storage.Remove(ctx, m.key); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("remove persisted session: %w", err)
	}
	m.current = nil
	m.mu.Unlock()

	var notifyErr error
	if m.term != nil {
		if err := m.term.Logout(ctx); err != nil {
			notifyErr = &NotifyError{Err: err}
		}
	}
	// The jar is cleared after the notification, which needs the cookie.
	m.dropCookies(ctx)
	return notifyErr
}

func (m *Manager) cookieKey() string { return m.key + cookieSuffix }

func (m *Manager) saveCookies(ctx context.Context) error {
	var stored []storedCookie
	for _, c := range m.jar.Cookies() {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return m.storage.Set(ctx, m.cookieKey(), data)
}

func (m *Manager) restoreCookies(ctx context.Context) {
	if m.jar == nil {
		return
	}
	data, err := m.storage.Get(ctx, m.cookieKey())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			redact.Logf("session: read cookies: %v", err)
		}
		return
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		redact.Logf("session: discarding unreadable cookies: %v", err)
		return
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	m.jar.RestoreCookies(cookies)
}

// dropCookies forgets cookies in the jar and in storage. A leftover cookie
// record without a user is harmless and is removed on the next start.
func (m *Manager) dropCookies(ctx context.Context) {
	if m.jar == nil {
		return
	}
	m.jar.ClearCookies()
	if err := m.storage.Remove(ctx, m.cookieKey()); err != nil {
		redact.Logf("session: remove cookies: %v", err)
	}
}
