package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/freebusy/internal/google"
	"github.com/teemow/freebusy/internal/server"
	"github.com/teemow/freebusy/internal/tokenstore"
)

const testSecrets = `{
  "installed": {
    "client_id": "client-123.apps.googleusercontent.com",
    "client_secret": "shh",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost"]
  }
}`

// run executes a fresh command tree and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSecrets(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(testSecrets), 0o600))
	return path
}

func storeToken(t *testing.T, dir, user string) {
	t.Helper()
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
	require.NoError(t, tokenstore.NewFileStore(dir).Save(context.Background(), user, token))
}

func configFor(t *testing.T, args ...string) Config {
	t.Helper()
	root := newRootCmd()
	require.NoError(t, root.ParseFlags(args))
	v, err := newSettings(root)
	require.NoError(t, err)
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := configFor(t)

	assert.Equal(t, Config{
		TokenStore:   tokenStoreFile,
		TokensDir:    tokenstore.DefaultDir,
		CallbackPort: google.DefaultCallbackPort,
	}, cfg)
}

func TestLoadConfig_Precedence(t *testing.T) {
	t.Setenv("FREEBUSY_TOKEN_STORE", "sqlite")
	t.Setenv("FREEBUSY_CALLBACK_PORT", "9999")
	t.Setenv("FREEBUSY_DEBUG", "true")

	cfg := configFor(t, "--callback-port", "7777")

	assert.Equal(t, tokenStoreSQLite, cfg.TokenStore, "environment overrides the flag default")
	assert.Equal(t, 7777, cfg.CallbackPort, "explicit flag overrides the environment")
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "freebusy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token-store: sqlite\nsqlite-path: /var/lib/freebusy/tokens.db\ncallback-port: 9000\n"), 0o600))

	cfg := configFor(t, "--config", path)

	assert.Equal(t, tokenStoreSQLite, cfg.TokenStore)
	assert.Equal(t, "/var/lib/freebusy/tokens.db", cfg.SQLitePath)
	assert.Equal(t, 9000, cfg.CallbackPort)
}

func TestNewSettings_MissingConfigFile(t *testing.T) {
	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))

	_, err := newSettings(root)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown store", args: []string{"--token-store", "redis"}},
		{name: "negative port", args: []string{"--callback-port", "-1"}},
		{name: "port too large", args: []string{"--callback-port", "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			require.NoError(t, root.ParseFlags(tt.args))
			v, err := newSettings(root)
			require.NoError(t, err)

			_, err = loadConfig(v)
			assert.Error(t, err)
		})
	}
}

func TestOpenTokenStore(t *testing.T) {
	dir := t.TempDir()

	store, closeStore, err := openTokenStore(Config{TokenStore: tokenStoreFile, TokensDir: dir})
	require.NoError(t, err)
	fileStore, ok := store.(*tokenstore.FileStore)
	require.True(t, ok)
	assert.Equal(t, dir, fileStore.Dir)
	assert.NoError(t, closeStore())

	store, closeStore, err = openTokenStore(Config{TokenStore: tokenStoreSQLite, SQLitePath: filepath.Join(dir, "db", "tokens.db")})
	require.NoError(t, err)
	_, ok = store.(*tokenstore.SQLiteStore)
	assert.True(t, ok)
	assert.NoError(t, closeStore())
	assert.FileExists(t, filepath.Join(dir, "db", "tokens.db"))
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "freebusy version "+version+"\n", out)
}

func TestQuickstart_MissingCredentials(t *testing.T) {
	_, err := run(t, "quickstart", "--tokens-dir", t.TempDir())
	assert.ErrorIs(t, err, google.ErrConfigurationMissing)
}

func TestQuickstart_StoredToken(t *testing.T) {
	tokens := t.TempDir()
	storeToken(t, tokens, defaultUser)

	out, err := run(t, "quickstart", "--credentials", writeSecrets(t), "--tokens-dir", tokens)
	require.NoError(t, err)
	assert.Equal(t, "Authorized user1; calendar client ready\n", out)
}

func TestAuth_Forget(t *testing.T) {
	tokens := t.TempDir()
	secrets := writeSecrets(t)

	out, err := run(t, "auth", "--forget", "--user", "alice", "--credentials", secrets, "--tokens-dir", tokens)
	require.NoError(t, err)
	assert.Equal(t, "No token stored for alice\n", out)

	storeToken(t, tokens, "alice")
	out, err = run(t, "auth", "--forget", "--user", "alice", "--credentials", secrets, "--tokens-dir", tokens)
	require.NoError(t, err)
	assert.Equal(t, "Forgot token for alice\n", out)

	_, err = tokenstore.NewFileStore(tokens).Load(context.Background(), "alice")
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestCommands_RejectBadInputBeforeAuthorizing(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "availability without ids", args: []string{"availability", "--id", " , "}, wantErr: "at least one --id is required"},
		{name: "availability bad hours", args: []string{"availability", "--id", "a", "--work-start", "18:00", "--work-end", "09:00"}, wantErr: "invalid working hours"},
		{name: "availability bad zone", args: []string{"availability", "--id", "a", "--tz", "Nowhere/Town"}, wantErr: "unknown time zone"},
		{name: "busy bad window", args: []string{"busy", "--start", "later"}, wantErr: "invalid time window"},
		{name: "busy bad zone", args: []string{"busy", "--tz", "Nowhere/Town"}, wantErr: "unknown time zone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"alice", "bob", "carol"}, splitIDs([]string{" alice, bob", "", "carol,"}))
	assert.Empty(t, splitIDs([]string{" , "}))
}

func TestListenAndServe_ReadyOnlyWhileBound(t *testing.T) {
	health := server.NewHealthChecker()
	err := listenAndServe(&http.Server{Addr: "256.0.0.1:0"}, health)
	assert.ErrorContains(t, err, "failed to listen")
	assert.False(t, health.IsReady(), "a failed bind leaves the server not ready")

	health = server.NewHealthChecker()
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- listenAndServe(srv, health) }()

	require.Eventually(t, health.IsReady, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, <-done)
}
