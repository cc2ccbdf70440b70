// Package auth manages the locally persisted session token used to
// authenticate with the remote service. Acquiring the token (the login
// flow) happens outside this program; this package stores it, checks its
// expiry, and hands it to the transport layer.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenFileName is the token store's file under the data directory.
const tokenFileName = ".token"

// defaultTokenTTL applies when a token carries no readable expiry claim.
const defaultTokenTTL = 24 * time.Hour

// ErrNoToken indicates no usable session token is stored.
var ErrNoToken = errors.New("no valid session token stored")

// tokenRecord is the on-disk shape of the stored token.
type tokenRecord struct {
	AccessToken string  `json:"access_token"`
	Phone       string  `json:"phone,omitempty"`
	SavedAt     float64 `json:"saved_at"`
	ExpiresAt   float64 `json:"expires_at"`
}

// TokenStore persists one session token in a mode-0600 JSON file and serves
// it to outgoing requests while it remains valid. Expired tokens are
// cleared on first read.
type TokenStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewTokenStore creates a token store rooted at dataDir.
func NewTokenStore(dataDir string, logger *slog.Logger) (*TokenStore, error) {
	if dataDir == "" {
		return nil, errors.New("data directory cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &TokenStore{
		path:   filepath.Join(dataDir, tokenFileName),
		logger: logger.With("component", "token_store"),
	}, nil
}

// Save stores a session token. The expiry is taken from the token's own exp
// claim when present, otherwise a 24 hour lifetime is assumed.
func (s *TokenStore) Save(accessToken, phone string) error {
	if accessToken == "" {
		return errors.New("access token cannot be empty")
	}

	now := time.Now()
	expiresAt := tokenExpiry(accessToken, now)

	record := tokenRecord{
		AccessToken: accessToken,
		Phone:       phone,
		SavedAt:     float64(now.Unix()),
		ExpiresAt:   float64(expiresAt.Unix()),
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	s.logger.Info("session token saved", "expires_at", expiresAt.Format(time.RFC3339))
	return nil
}

// Token returns the stored session token when one exists and has not
// expired. It implements the transport layer's token source. An expired
// token file is removed so stale credentials are never retried.
func (s *TokenStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.read()
	if err != nil {
		return "", false
	}

	if time.Now().Unix() >= int64(record.ExpiresAt) {
		s.logger.Info("session token expired, clearing")
		os.Remove(s.path)
		return "", false
	}

	return record.AccessToken, true
}

// Valid reports whether a usable token is currently stored.
func (s *TokenStore) Valid() bool {
	_, ok := s.Token()
	return ok
}

// ExpiresAt returns the stored token's expiry, or ErrNoToken.
func (s *TokenStore) ExpiresAt() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.read()
	if err != nil {
		return time.Time{}, ErrNoToken
	}
	return time.Unix(int64(record.ExpiresAt), 0), nil
}

// Clear removes the stored token file.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

func (s *TokenStore) read() (tokenRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return tokenRecord{}, err
	}

	var record tokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn("token file unreadable, clearing", "error", err)
		os.Remove(s.path)
		return tokenRecord{}, err
	}
	if record.AccessToken == "" {
		return tokenRecord{}, ErrNoToken
	}
	return record, nil
}

// tokenExpiry extracts the exp claim from a JWT without verifying its
// signature. Verification belongs to the remote service; here the claim
// only schedules local expiry.
func tokenExpiry(token string, now time.Time) time.Time {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return now.Add(defaultTokenTTL)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return now.Add(defaultTokenTTL)
	}
	return exp.Time
}
