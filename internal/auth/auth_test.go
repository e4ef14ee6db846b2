package auth

import (
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lstrojny/prometheus-weather-exporter/internal/cache"
)

func secretHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func joannaStore(t *testing.T) *CredentialsStore {
	t.Helper()
	store, err := NewCredentialsStore(map[string]string{"joanna": secretHash(t)})
	require.NoError(t, err)
	return store
}

// countingAuthenticator counts how often a hash comparison runs and against
// which hash.
func countingAuthenticator(store *CredentialsStore) (*Authenticator, *[][]byte) {
	a := NewAuthenticator(store, nil)
	var mu sync.Mutex
	var compared [][]byte
	compare := a.compare
	a.compare = func(hash, password []byte) error {
		mu.Lock()
		compared = append(compared, hash)
		mu.Unlock()
		return compare(hash, password)
	}
	return a, &compared
}

func TestMaybeAuthenticate(t *testing.T) {
	store := joannaStore(t)

	tests := []struct {
		name      string
		store     *CredentialsStore
		presented *Credentials
		want      Granted
		wantErr   error
	}{
		{
			name: "not required without store",
			want: GrantedNotRequired,
		},
		{
			name:      "not required without store even with credentials",
			presented: &Credentials{Username: "joanna", Password: "whatever"},
			want:      GrantedNotRequired,
		},
		{
			name:    "unauthorized without credentials",
			store:   store,
			wantErr: ErrUnauthorized,
		},
		{
			name:      "forbidden if username not found",
			store:     store,
			presented: &Credentials{Username: "unknown", Password: "secret"},
			wantErr:   ErrForbidden,
		},
		{
			name:      "forbidden if password incorrect",
			store:     store,
			presented: &Credentials{Username: "joanna", Password: "incorrect"},
			wantErr:   ErrForbidden,
		},
		{
			name:      "forbidden for empty password",
			store:     store,
			presented: &Credentials{Username: "joanna"},
			wantErr:   ErrForbidden,
		},
		{
			name:      "granted if authentication successful",
			store:     store,
			presented: &Credentials{Username: "joanna", Password: "secret"},
			want:      GrantedSucceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MaybeAuthenticate(NewAuthenticator(tt.store, nil), tt.presented)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaybeAuthenticateSharesCache(t *testing.T) {
	a, compared := countingAuthenticator(joannaStore(t))
	creds := &Credentials{Username: "joanna", Password: "secret"}

	for i := 0; i < 3; i++ {
		granted, err := MaybeAuthenticate(a, creds)
		require.NoError(t, err)
		assert.Equal(t, GrantedSucceeded, granted)
	}
	assert.Len(t, *compared, 1)

	granted, err := MaybeAuthenticate(nil, creds)
	require.NoError(t, err)
	assert.Equal(t, GrantedNotRequired, granted)
}

func TestSuccessIsCached(t *testing.T) {
	a, compared := countingAuthenticator(joannaStore(t))
	creds := &Credentials{Username: "joanna", Password: "secret"}

	for i := 0; i < 3; i++ {
		granted, err := a.Authenticate(creds)
		require.NoError(t, err)
		assert.Equal(t, GrantedSucceeded, granted)
	}
	assert.Len(t, *compared, 1)
}

func TestDenialIsReverified(t *testing.T) {
	a, compared := countingAuthenticator(joannaStore(t))
	creds := &Credentials{Username: "joanna", Password: "wrong"}

	for i := 0; i < 3; i++ {
		_, err := a.Authenticate(creds)
		assert.ErrorIs(t, err, ErrForbidden)
	}
	assert.Len(t, *compared, 3)
	assert.Equal(t, 1, a.results.Len(), "denial is stored for the presented pair")
}

func TestUnknownUserChecksDefaultHashAndBypassesCache(t *testing.T) {
	store := joannaStore(t)
	a, compared := countingAuthenticator(store)

	_, err := a.Authenticate(&Credentials{Username: "mallory", Password: "secret"})
	assert.ErrorIs(t, err, ErrForbidden)

	require.Len(t, *compared, 1)
	assert.Equal(t, store.DefaultHash(), (*compared)[0])
	assert.Equal(t, 0, a.results.Len())
}

func TestHashingErrorIsForbidden(t *testing.T) {
	a := NewAuthenticator(joannaStore(t), cache.New[error]())
	a.compare = func(_, _ []byte) error { return bcrypt.ErrHashTooShort }

	_, err := a.Authenticate(&Credentials{Username: "joanna", Password: "secret"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConcurrentVerificationsShareOneComparison(t *testing.T) {
	a, compared := countingAuthenticator(joannaStore(t))
	creds := &Credentials{Username: "joanna", Password: "secret"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := a.Authenticate(creds)
			assert.NoError(t, err)
			assert.Equal(t, GrantedSucceeded, granted)
		}()
	}
	wg.Wait()

	assert.Len(t, *compared, 1)
}

func TestNewCredentialsStore(t *testing.T) {
	_, err := NewCredentialsStore(nil)
	assert.ErrorIs(t, err, ErrEmptyStore)

	_, err = NewCredentialsStore(map[string]string{"joanna": "not-a-hash"})
	assert.Error(t, err)

	store, err := NewCredentialsStore(map[string]string{"zoe": secretHash(t), "adam": secretHash(t)})
	require.NoError(t, err)
	assert.Equal(t, []string{"adam", "zoe"}, store.Usernames())

	cost, err := bcrypt.Cost(store.DefaultHash())
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.Error(t, bcrypt.CompareHashAndPassword(store.DefaultHash(), []byte("")))
}

func TestParseBasic(t *testing.T) {
	encode := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		header string
		want   Credentials
		ok     bool
	}{
		{"Basic " + encode("joanna:secret"), Credentials{"joanna", "secret"}, true},
		{"basic " + encode("joanna:se:cret"), Credentials{"joanna", "se:cret"}, true},
		{"Basic " + encode("joanna:"), Credentials{"joanna", ""}, true},
		{"Basic " + encode("joanna"), Credentials{}, false},
		{"Basic !!!", Credentials{}, false},
		{"Bearer " + encode("joanna:secret"), Credentials{}, false},
		{"", Credentials{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseBasic(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}
