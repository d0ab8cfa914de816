package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/al-bashkir/payroll-console/internal/obfuscate"
	"github.com/al-bashkir/payroll-console/internal/storage"
)

// Manager holds the session in memory and writes every change through to
// the Store. It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	store    storage.Store
	token    string
	profile  *Profile
	username string
	password string // obfuscated, as persisted
}

// NewManager creates an empty session backed by store. Call Load to restore
// a previous session.
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// Load restores the session from the store. A cached profile that no longer
// decodes is dropped rather than failing the load.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.token, _, err = m.store.Get(ctx, storage.KeyToken); err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if m.username, _, err = m.store.Get(ctx, storage.KeyUsername); err != nil {
		return fmt.Errorf("failed to load username: %w", err)
	}
	if m.password, _, err = m.store.Get(ctx, storage.KeyPassword); err != nil {
		return fmt.Errorf("failed to load password: %w", err)
	}

	raw, ok, err := m.store.Get(ctx, storage.KeyUser)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	m.profile = nil
	if ok && raw != "" && raw != "null" {
		var p Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			slog.Warn("dropping unreadable cached profile", "error", err)
		} else {
			m.profile = &p
		}
	}

	slog.Debug("session loaded",
		"has_token", m.token != "",
		"has_profile", m.profile != nil,
		"has_credentials", m.username != "" && m.password != "",
	)
	return nil
}

// Token returns the access token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Authenticated reports whether a token is present.
func (m *Manager) Authenticated() bool {
	return m.Token() != ""
}

// Profile returns the cached user profile.
func (m *Manager) Profile() (Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return Profile{}, false
	}
	return *m.profile, true
}

// Role returns the current user's role when a profile is cached.
func (m *Manager) Role() (Role, bool) {
	p, ok := m.Profile()
	if !ok || p.Role == "" {
		return "", false
	}
	return p.Role, true
}

// SetToken stores a new access token.
func (m *Manager) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	if err := m.store.Set(ctx, storage.KeyToken, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

// SetProfile replaces the cached profile.
func (m *Manager) SetProfile(ctx context.Context, p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.profile = &p
	if err := m.store.Set(ctx, storage.KeyUser, string(data)); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}
	return nil
}

// Remember keeps the credentials for automatic re-authentication. The
// password is stored obfuscated, which is not encryption.
func (m *Manager) Remember(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	encoded := obfuscate.Obfuscate(password)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.username = username
	m.password = encoded
	if err := m.store.Set(ctx, storage.KeyUsername, username); err != nil {
		return fmt.Errorf("failed to persist username: %w", err)
	}
	if err := m.store.Set(ctx, storage.KeyPassword, encoded); err != nil {
		return fmt.Errorf("failed to persist password: %w", err)
	}
	return nil
}

// Credentials returns the remembered username and the revealed password.
// ok is false when nothing usable is stored.
func (m *Manager) Credentials() (username, password string, ok bool) {
	m.mu.RLock()
	username, encoded := m.username, m.password
	m.mu.RUnlock()

	if username == "" || encoded == "" {
		return "", "", false
	}
	password, err := obfuscate.Reveal(encoded)
	if err != nil || password == "" {
		slog.Warn("stored password cannot be revealed", "error", err)
		return "", "", false
	}
	return username, password, true
}

// RememberedUsername returns the stored username, if any.
func (m *Manager) RememberedUsername() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.username
}

// Clear signs out: the token and the profile are removed, remembered
// credentials are kept.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	m.profile = nil
	if err := m.store.Delete(ctx, storage.KeyToken, storage.KeyUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// ClearCredentials forgets the remembered username and password.
func (m *Manager) ClearCredentials(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.username = ""
	m.password = ""
	if err := m.store.Delete(ctx, storage.KeyUsername, storage.KeyPassword); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the whole session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		Token:       m.token,
		Username:    m.username,
		HasPassword: m.password != "",
	}
	if m.profile != nil {
		p := *m.profile
		s.Profile = &p
	}
	return s
}
