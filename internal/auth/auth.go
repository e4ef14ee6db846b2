// Package auth implements the optional HTTP Basic authentication gate.
//
// Verification uses bcrypt. Results for known usernames are cached per
// presented (username, password) pair; successes are reused until evicted by
// capacity, cached denials are re-verified on the next attempt. Unknown
// usernames are checked against a default hash so that they take as long to
// reject as a wrong password.
package auth

import (
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/lstrojny/prometheus-weather-exporter/internal/cache"
)

// DefaultCacheSize bounds the number of cached verification results.
const DefaultCacheSize = 1_000_000

var (
	// ErrUnauthorized means credentials are required but none were presented.
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden means the presented credentials are invalid.
	ErrForbidden = errors.New("invalid credentials")
)

// Granted describes why a request was let through.
type Granted int

const (
	// GrantedNotRequired means no credentials store is configured.
	GrantedNotRequired Granted = iota + 1
	// GrantedSucceeded means the presented credentials were verified.
	GrantedSucceeded
)

func (g Granted) String() string {
	switch g {
	case GrantedNotRequired:
		return "not required"
	case GrantedSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// Authenticator verifies presented credentials against a store. A nil store
// disables authentication.
type Authenticator struct {
	store *CredentialsStore

	// results caches nil for a verified pair and ErrForbidden for a denial.
	results *cache.Cache[error]

	compare func(hash, password []byte) error
}

// NewAuthenticator creates an Authenticator. When results is nil a cache
// bounded to DefaultCacheSize entries is created.
func NewAuthenticator(store *CredentialsStore, results *cache.Cache[error]) *Authenticator {
	if results == nil {
		results = cache.New[error](cache.WithMaxSize(DefaultCacheSize))
	}

	return &Authenticator{
		store:   store,
		results: results,
		compare: bcrypt.CompareHashAndPassword,
	}
}

// Required reports whether credentials must be presented.
func (a *Authenticator) Required() bool {
	return a.store != nil
}

// Authenticate classifies presented credentials, which may be nil. It
// returns ErrUnauthorized or ErrForbidden on denial.
func (a *Authenticator) Authenticate(presented *Credentials) (Granted, error) {
	switch {
	case a.store == nil:
		slog.Debug("No credentials store configured, skipping authentication")
		return GrantedNotRequired, nil
	case presented == nil:
		slog.Debug("No credentials presented")
		return 0, ErrUnauthorized
	}

	hash, found := a.store.Lookup(presented.Username)
	if !found {
		// Keep the time spent constant so response timing does not reveal
		// whether the username exists.
		_ = a.compare(a.store.DefaultHash(), []byte(presented.Password))
		slog.Debug("Unknown username", "username", presented.Username)
		return 0, ErrForbidden
	}

	verdict, _ := a.results.GetOrComputeIf(
		presented.cacheKey(),
		0,
		func() (error, error) {
			return a.verify(presented.Username, hash, presented.Password), nil
		},
		func(cached error) bool { return cached != nil },
	)
	if verdict != nil {
		return 0, verdict
	}
	return GrantedSucceeded, nil
}

func (a *Authenticator) verify(username string, hash []byte, password string) error {
	err := a.compare(hash, []byte(password))
	switch {
	case err == nil:
		slog.Debug("Username successfully authenticated", "username", username)
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		slog.Debug("Invalid password", "username", username)
	default:
		slog.Error("Error verifying bcrypt hash", "username", username, "error", err)
	}
	return ErrForbidden
}

// MaybeAuthenticate classifies presented credentials with a, sharing its
// result cache across calls. A nil a requires no authentication.
func MaybeAuthenticate(a *Authenticator, presented *Credentials) (Granted, error) {
	if a == nil {
		return GrantedNotRequired, nil
	}
	return a.Authenticate(presented)
}
