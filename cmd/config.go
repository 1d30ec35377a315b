package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teemow/freebusy/internal/google"
	"github.com/teemow/freebusy/internal/logging"
	"github.com/teemow/freebusy/internal/tokenstore"
)

const envPrefix = "FREEBUSY"

// Setting keys. Each is a flag name and, upper-cased with the FREEBUSY_
// prefix, an environment variable.
const (
	keyDebug        = "debug"
	keyConfig       = "config"
	keyCredentials  = "credentials"
	keyTokenStore   = "token-store"
	keyTokensDir    = "tokens-dir"
	keySQLitePath   = "sqlite-path"
	keyCallbackPort = "callback-port"
)

const (
	tokenStoreFile   = "file"
	tokenStoreSQLite = "sqlite"
)

// settings is the viper instance populated by initSettings before every command.
var settings = viper.New()

func addPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.Bool(keyDebug, false, "Enable debug logging")
	flags.String(keyConfig, "", "Path to a config file (yaml, json or toml)")
	flags.String(keyCredentials, "", "Path to a client secrets JSON file. Defaults to the embedded credentials.json")
	flags.String(keyTokenStore, tokenStoreFile, "Token store: file or sqlite")
	flags.String(keyTokensDir, tokenstore.DefaultDir, "Directory for the file token store")
	flags.String(keySQLitePath, "", "Path of the SQLite token store. Defaults to the XDG data directory")
	flags.Int(keyCallbackPort, google.DefaultCallbackPort, "Port of the local OAuth callback listener")
}

// initSettings binds cmd's flags, the FREEBUSY_ environment and the optional
// config file into settings. Flags win over the environment, which wins over
// the file.
func initSettings(cmd *cobra.Command) error {
	v, err := newSettings(cmd)
	if err != nil {
		return err
	}
	settings = v
	return nil
}

func newSettings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if path := v.GetString(keyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return v, nil
}

// Config is the resolved configuration shared by all commands.
type Config struct {
	Debug        bool
	Credentials  string
	TokenStore   string
	TokensDir    string
	SQLitePath   string
	CallbackPort int
}

func loadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Debug:        v.GetBool(keyDebug),
		Credentials:  strings.TrimSpace(v.GetString(keyCredentials)),
		TokenStore:   strings.ToLower(strings.TrimSpace(v.GetString(keyTokenStore))),
		TokensDir:    strings.TrimSpace(v.GetString(keyTokensDir)),
		SQLitePath:   strings.TrimSpace(v.GetString(keySQLitePath)),
		CallbackPort: v.GetInt(keyCallbackPort),
	}

	switch cfg.TokenStore {
	case "":
		cfg.TokenStore = tokenStoreFile
	case tokenStoreFile, tokenStoreSQLite:
	default:
		return Config{}, fmt.Errorf("unknown token store %q (want %s or %s)", cfg.TokenStore, tokenStoreFile, tokenStoreSQLite)
	}

	if cfg.TokensDir == "" {
		cfg.TokensDir = tokenstore.DefaultDir
	}
	if cfg.CallbackPort < 0 || cfg.CallbackPort > 65535 {
		return Config{}, fmt.Errorf("invalid callback port %d", cfg.CallbackPort)
	}
	return cfg, nil
}

// openTokenStore returns the configured store and a func releasing it.
func openTokenStore(cfg Config) (tokenstore.Store, func() error, error) {
	if cfg.TokenStore == tokenStoreFile {
		return tokenstore.NewFileStore(cfg.TokensDir), func() error { return nil }, nil
	}

	path := cfg.SQLitePath
	if path == "" {
		var err error
		if path, err = tokenstore.DefaultSQLitePath(); err != nil {
			return nil, nil, err
		}
	}
	store, err := tokenstore.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// newAuthorizer loads the client secrets and wires the loopback receiver.
func newAuthorizer(cfg Config, store tokenstore.Store, logger *slog.Logger, opts ...google.Option) (*google.Authorizer, error) {
	oauthConfig, err := google.LoadClientSecretsFile(cfg.Credentials, google.DefaultOAuthScopes...)
	if err != nil {
		return nil, err
	}

	opts = append([]google.Option{
		google.WithReceiver(google.NewLocalServerReceiver(cfg.CallbackPort)),
		google.WithLogger(logger),
	}, opts...)
	return google.NewAuthorizer(oauthConfig, store, opts...), nil
}

func newCLILogger(w io.Writer, cfg Config) *slog.Logger {
	return logging.NewLogger(w, logging.FormatText, cfg.Debug)
}
