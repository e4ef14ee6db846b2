package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyStore is returned when a credentials store has no entries.
var ErrEmptyStore = errors.New("credentials store must not be empty")

// Credentials are a username and plaintext password presented by a client.
type Credentials struct {
	Username string
	Password string
}

// cacheKey is unambiguous because a Basic username cannot contain a colon.
func (c Credentials) cacheKey() string {
	return c.Username + ":" + c.Password
}

// ParseBasic extracts credentials from an Authorization header value using
// the Basic scheme. It reports false for anything that is not well formed.
func ParseBasic(header string) (Credentials, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return Credentials{}, false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Credentials{}, false
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return Credentials{}, false
	}

	return Credentials{Username: username, Password: password}, true
}

// CredentialsStore maps usernames to bcrypt hashes. It is immutable once
// created and safe for concurrent use.
type CredentialsStore struct {
	usernames   []string
	hashes      map[string][]byte
	defaultHash []byte
}

// NewCredentialsStore validates every hash and prepares the default hash used
// for unknown usernames. The default hash uses the highest cost found in the
// store so that rejecting an unknown user costs as much as checking a known
// one.
func NewCredentialsStore(entries map[string]string) (*CredentialsStore, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyStore
	}

	store := &CredentialsStore{
		usernames: make([]string, 0, len(entries)),
		hashes:    make(map[string][]byte, len(entries)),
	}

	maxCost := bcrypt.MinCost
	for username, hash := range entries {
		cost, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			return nil, fmt.Errorf("invalid bcrypt hash for user %q: %w", username, err)
		}
		maxCost = max(maxCost, cost)

		store.usernames = append(store.usernames, username)
		store.hashes[username] = []byte(hash)
	}
	sort.Strings(store.usernames)

	// The password behind the default hash is discarded, nothing can match it.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating default hash: %w", err)
	}
	defaultHash, err := bcrypt.GenerateFromPassword(secret, maxCost)
	if err != nil {
		return nil, fmt.Errorf("generating default hash: %w", err)
	}
	store.defaultHash = defaultHash

	return store, nil
}

// Lookup returns the hash stored for username.
func (s *CredentialsStore) Lookup(username string) ([]byte, bool) {
	hash, ok := s.hashes[username]
	return hash, ok
}

// Usernames returns the configured usernames in sorted order.
func (s *CredentialsStore) Usernames() []string {
	return append([]string(nil), s.usernames...)
}

// DefaultHash returns the hash checked when a username is not found.
func (s *CredentialsStore) DefaultHash() []byte {
	return s.defaultHash
}
