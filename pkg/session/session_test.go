package session

import (
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewStore(t.TempDir(), logger)
}

func TestCookiesRoundtrip(t *testing.T) {
	s := testStore(t)

	cookies := []Cookie{
		{Name: "AUTH_SESSION_ID", Value: "abc", Domain: "sso-siasn.bkn.go.id", Path: "/", Expires: 1767225600, HTTPOnly: true, Secure: true},
		{Name: "KC_RESTART", Value: "xyz", Domain: "sso-siasn.bkn.go.id", Path: "/auth"},
	}
	require.NoError(t, s.SaveCookies(cookies))

	loaded, err := s.LoadCookies()
	require.NoError(t, err)
	assert.Equal(t, cookies, loaded)
}

func TestLoadCookiesMissingFile(t *testing.T) {
	s := testStore(t)

	cookies, err := s.LoadCookies()
	require.NoError(t, err)
	assert.Nil(t, cookies)
}

func TestLocalStorageRoundtripAndToken(t *testing.T) {
	s := testStore(t)

	_, err := s.Token()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoToken))

	require.NoError(t, s.SaveLocalStorage(map[string]string{
		TokenKey: "bearer-abc",
		"other":  "value",
	}))

	token, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "bearer-abc", token)
}

func TestTokenEmptyValue(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveLocalStorage(map[string]string{TokenKey: ""}))

	_, err := s.Token()
	assert.True(t, errors.Is(err, ErrNoToken))
}

func TestClear(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveCookies([]Cookie{{Name: "a", Value: "b"}}))
	require.NoError(t, s.SaveLocalStorage(map[string]string{TokenKey: "tok"}))

	require.NoError(t, s.Clear())

	cookies, err := s.LoadCookies()
	require.NoError(t, err)
	assert.Nil(t, cookies)

	items, err := s.LoadLocalStorage()
	require.NoError(t, err)
	assert.Empty(t, items)

	// clearing an already-empty store is fine
	require.NoError(t, s.Clear())
}
