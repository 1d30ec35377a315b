package google

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CredentialsResource is the name of the bundled client secrets file.
const CredentialsResource = "credentials.json"

// ErrConfigurationMissing is returned when the client secrets cannot be found.
var ErrConfigurationMissing = errors.New("client secrets configuration missing")

//go:embed all:resources
var resources embed.FS

// Resources returns the files bundled into the binary at build time.
// Drop a credentials.json into internal/google/resources before building
// to ship client secrets with the binary.
func Resources() fs.FS {
	sub, err := fs.Sub(resources, "resources")
	if err != nil {
		panic(fmt.Sprintf("google: embedded resources: %v", err))
	}
	return sub
}

// LoadClientSecrets parses the installed-app client secrets stored as name
// in fsys.
func LoadClientSecrets(fsys fs.FS, name string, scopes ...string) (*oauth2.Config, error) {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: resource not found: %s", ErrConfigurationMissing, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets: %w", err)
	}

	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}
	return config, nil
}

// LoadClientSecretsFile reads the client secrets from path when it is set and
// from the bundled resources otherwise.
func LoadClientSecretsFile(path string, scopes ...string) (*oauth2.Config, error) {
	if path == "" {
		return LoadClientSecrets(Resources(), CredentialsResource, scopes...)
	}
	return LoadClientSecrets(os.DirFS(filepath.Dir(path)), filepath.Base(path), scopes...)
}
