// Package session persists browser session artifacts (cookies and
// localStorage snapshots) between runs so the sign-in flow can be skipped
// while the SSO session is still valid. It also surfaces the bearer token
// the portal stores under the "sso_token" localStorage key.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Gobusters/ectologger"
)

const (
	cookiesFile      = "sso_cookies.json"
	localStorageFile = "sso_localstorage.json"

	// TokenKey is the localStorage key holding the bearer token.
	TokenKey = "sso_token"
)

// ErrNoToken is returned when the localStorage snapshot has no bearer token.
var ErrNoToken = errors.New("sso_token not found in localStorage snapshot")

// Cookie is one persisted browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expiry,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// Store reads and writes session artifacts under one data directory.
type Store struct {
	dir    string
	logger ectologger.Logger
}

// NewStore creates a session store rooted at dir.
func NewStore(dir string, logger ectologger.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// CookiesPath returns the cookie snapshot path.
func (s *Store) CookiesPath() string {
	return filepath.Join(s.dir, cookiesFile)
}

// LocalStoragePath returns the localStorage snapshot path.
func (s *Store) LocalStoragePath() string {
	return filepath.Join(s.dir, localStorageFile)
}

// SaveCookies persists the cookie list.
func (s *Store) SaveCookies(cookies []Cookie) error {
	return s.writeJSON(s.CookiesPath(), cookies)
}

// LoadCookies reads the cookie snapshot. A missing file yields an empty list.
func (s *Store) LoadCookies() ([]Cookie, error) {
	var cookies []Cookie
	if err := s.readJSON(s.CookiesPath(), &cookies); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return cookies, nil
}

// SaveLocalStorage persists the key/value storage snapshot.
func (s *Store) SaveLocalStorage(items map[string]string) error {
	return s.writeJSON(s.LocalStoragePath(), items)
}

// LoadLocalStorage reads the storage snapshot. A missing file yields an
// empty map.
func (s *Store) LoadLocalStorage() (map[string]string, error) {
	items := make(map[string]string)
	if err := s.readJSON(s.LocalStoragePath(), &items); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return items, nil
}

// Token returns the bearer token from the localStorage snapshot. Implements
// the API client's TokenProvider.
func (s *Store) Token() (string, error) {
	items, err := s.LoadLocalStorage()
	if err != nil {
		return "", err
	}
	token := items[TokenKey]
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Clear removes both artifacts. Used when a run determines the persisted
// session is stale.
func (s *Store) Clear() error {
	for _, path := range []string{s.CookiesPath(), s.LocalStoragePath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	s.logger.Info("cleared persisted session artifacts")
	return nil
}

func (s *Store) writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode session artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session artifact: %w", err)
	}
	return nil
}

func (s *Store) readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode session artifact %s: %w", path, err)
	}
	return nil
}
