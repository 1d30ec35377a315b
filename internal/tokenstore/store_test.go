package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "tokens")),
		"sqlite": newSQLiteStore(t),
	}
}

func testToken(access string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: "refresh-" + access,
		Expiry:       time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
	}
}

func assertSameToken(t *testing.T, want, got *oauth2.Token) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.Equal(t, want.TokenType, got.TokenType)
	assert.True(t, want.Expiry.Equal(got.Expiry), "expiry %v != %v", want.Expiry, got.Expiry)
}

func TestStore_RoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, "user1", testToken("a1")))
			got, err := store.Load(ctx, "user1")
			require.NoError(t, err)
			assertSameToken(t, testToken("a1"), got)

			// Saving again replaces the previous token.
			require.NoError(t, store.Save(ctx, "user1", testToken("a2")))
			got, err = store.Load(ctx, "user1")
			require.NoError(t, err)
			assertSameToken(t, testToken("a2"), got)
		})
	}
}

func TestStore_UsersAreIsolated(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, "user1", testToken("one")))
			require.NoError(t, store.Save(ctx, "jane@example.com", testToken("two")))

			got, err := store.Load(ctx, "user1")
			require.NoError(t, err)
			assert.Equal(t, "one", got.AccessToken)

			got, err = store.Load(ctx, "jane@example.com")
			require.NoError(t, err)
			assert.Equal(t, "two", got.AccessToken)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Load(ctx, "nobody")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, store.Delete(ctx, "nobody"), ErrNotFound)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, "user1", testToken("a1")))
			require.NoError(t, store.Delete(ctx, "user1"))

			_, err := store.Load(ctx, "user1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_InvalidUserID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, id := range []string{"", "   "} {
				_, err := store.Load(ctx, id)
				assert.ErrorIs(t, err, ErrInvalidUserID)
				assert.ErrorIs(t, store.Save(ctx, id, testToken("x")), ErrInvalidUserID)
				assert.ErrorIs(t, store.Delete(ctx, id), ErrInvalidUserID)
			}
		})
	}
}

func TestStore_SaveNilToken(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.Save(context.Background(), "user1", nil))
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")
	store := NewFileStore(dir)

	require.NoError(t, store.Save(context.Background(), "a/b", testToken("a1")))

	path := store.Path("a/b")
	assert.Equal(t, filepath.Join(dir, "google-a%2Fb.token"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_CorruptFile(t *testing.T) {
	store := NewFileStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.Path("user1"), []byte("not json"), 0600))

	_, err := store.Load(context.Background(), "user1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewFileStore_DefaultDir(t *testing.T) {
	assert.Equal(t, DefaultDir, NewFileStore("").Dir)
}

func TestOpenSQLite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), "user1", testToken("a1")))
	require.NoError(t, s.Close())

	// Reopening runs the migrations again and keeps the data.
	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AccessToken)
}
