package auth

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// signedToken builds an HS256 token with the given expiry.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func newTestStore(t *testing.T) (*TokenStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewTokenStore(dir, testLogger())
	require.NoError(t, err)
	return store, dir
}

func TestSaveAndToken(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)
	raw := signedToken(t, time.Now().Add(time.Hour))

	require.NoError(t, store.Save(raw, "13800000000"))

	got, ok := store.Token()
	assert.True(t, ok)
	assert.Equal(t, raw, got)
	assert.True(t, store.Valid())

	info, err := os.Stat(filepath.Join(dir, ".token"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestExpiryFromClaim(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	require.NoError(t, store.Save(signedToken(t, exp), ""))

	got, err := store.ExpiresAt()
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), got.Unix())
}

func TestFallbackExpiryForOpaqueToken(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Save("not-a-jwt", ""))

	got, err := store.ExpiresAt()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), got, time.Minute)

	_, ok := store.Token()
	assert.True(t, ok)
}

func TestExpiredTokenCleared(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)
	require.NoError(t, store.Save(signedToken(t, time.Now().Add(-time.Hour)), ""))

	_, ok := store.Token()
	assert.False(t, ok)

	_, err := os.Stat(filepath.Join(dir, ".token"))
	assert.True(t, os.IsNotExist(err))
}

func TestTokenMissingFile(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	_, ok := store.Token()
	assert.False(t, ok)

	_, err := store.ExpiresAt()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestClear(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	require.NoError(t, store.Save(signedToken(t, time.Now().Add(time.Hour)), ""))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	_, ok := store.Token()
	assert.False(t, ok)
}

func TestCorruptTokenFile(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".token"), []byte("{broken"), 0o600))

	_, ok := store.Token()
	assert.False(t, ok)
}
